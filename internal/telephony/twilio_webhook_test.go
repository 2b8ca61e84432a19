package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"propdial/internal/calls"
)

func TestParseTwilioCallForm(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=%2B15551234567&To=%2B919876543210&CallStatus=Completed&CallDuration=37&AnsweredBy=human")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioCallForm(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.From != "+15551234567" || form.To != "+919876543210" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.CallStatus != "completed" || form.CallDuration != 37 || form.AnsweredBy != "human" {
		t.Fatalf("unexpected status fields: %+v", form)
	}
}

func TestParseTwilioCallFormQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/webhooks/twilio/answer?CallSid=CA9&CallDuration=abc", nil)
	form, err := ParseTwilioCallForm(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA9" || form.CallDuration != 0 {
		t.Fatalf("unexpected form: %+v", form)
	}
}

func TestMapCallStatus(t *testing.T) {
	cases := []struct {
		status, answeredBy string
		want               calls.Status
	}{
		{"completed", "", calls.StatusCompleted},
		{"busy", "", calls.StatusBusy},
		{"no-answer", "", calls.StatusNoAnswer},
		{"failed", "", calls.StatusFailed},
		{"canceled", "", calls.StatusFailed},
		{"in-progress", "", calls.StatusInProgress},
		{"ringing", "", calls.StatusRinging},
		{"completed", "machine_end_beep", calls.StatusVoicemail},
	}
	for _, tc := range cases {
		got, ok := MapCallStatus(tc.status, tc.answeredBy)
		if !ok || got != tc.want {
			t.Fatalf("%s/%s: got %q ok=%v, want %q", tc.status, tc.answeredBy, got, ok, tc.want)
		}
	}
	if _, ok := MapCallStatus("exploded", ""); ok {
		t.Fatalf("unknown status should not map")
	}
}
