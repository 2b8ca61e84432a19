package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"propdial/internal/calls"
)

// TwilioCallForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml
type TwilioCallForm struct {
	CallSid      string
	AccountSid   string
	From         string
	To           string
	Direction    string
	CallStatus   string
	CallDuration int
	AnsweredBy   string
}

// ParseTwilioCallForm reads both POST bodies and GET query strings, since the
// answer URL may be configured with either method.
func ParseTwilioCallForm(r *http.Request) (TwilioCallForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioCallForm{}, err
	}
	f := TwilioCallForm{
		CallSid:    strings.TrimSpace(r.FormValue("CallSid")),
		AccountSid: strings.TrimSpace(r.FormValue("AccountSid")),
		From:       strings.TrimSpace(r.FormValue("From")),
		To:         strings.TrimSpace(r.FormValue("To")),
		Direction:  r.FormValue("Direction"),
		CallStatus: strings.ToLower(strings.TrimSpace(r.FormValue("CallStatus"))),
		AnsweredBy: strings.ToLower(strings.TrimSpace(r.FormValue("AnsweredBy"))),
	}
	if d := strings.TrimSpace(r.FormValue("CallDuration")); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			f.CallDuration = n
		}
	}
	return f, nil
}

// MapCallStatus translates a Twilio call status into the call-log vocabulary.
// Answering-machine detection wins over the raw status.
func MapCallStatus(callStatus, answeredBy string) (calls.Status, bool) {
	if strings.HasPrefix(answeredBy, "machine") || answeredBy == "fax" {
		return calls.StatusVoicemail, true
	}
	switch callStatus {
	case "completed":
		return calls.StatusCompleted, true
	case "busy":
		return calls.StatusBusy, true
	case "no-answer":
		return calls.StatusNoAnswer, true
	case "failed", "canceled":
		return calls.StatusFailed, true
	case "in-progress", "answered":
		return calls.StatusInProgress, true
	case "queued", "initiated", "ringing":
		return calls.StatusRinging, true
	default:
		return "", false
	}
}
