package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"propdial/internal/calls"
	"propdial/internal/campaigns"
	"propdial/pkg/logger"
)

// MediaStreamPath is where the voice bridge accepts Twilio media streams.
const MediaStreamPath = "/media-stream"

// AnswerHandler answers an outbound call placed by the dialing worker and
// points Twilio at the voice bridge. No business logic here.
type AnswerHandler struct {
	// PublicBaseURL is the externally reachable http(s) origin of this service.
	PublicBaseURL string
}

// StreamURL builds the bridge websocket URL carrying the routing parameters.
func StreamURL(publicBaseURL, leadID, campaignID, callSID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", errors.New("telephony: public base url must be http(s)")
	}
	u.Path = strings.TrimRight(u.Path, "/") + MediaStreamPath
	q := url.Values{}
	q.Set("leadId", leadID)
	q.Set("campaignId", campaignID)
	q.Set("callSid", callSID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (h AnswerHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioCallForm(c.Request)
	if err != nil {
		log.Warn("twilio answer parse failed", "err", err)
		writeHangup(c, "")
		return
	}
	leadID := strings.TrimSpace(c.Request.FormValue("leadId"))
	campaignID := strings.TrimSpace(c.Request.FormValue("campaignId"))
	if leadID == "" || campaignID == "" || form.CallSid == "" {
		log.Warn("twilio answer missing routing params", "call_sid", form.CallSid, "lead_id", leadID, "campaign_id", campaignID)
		writeHangup(c, "")
		return
	}

	streamURL, err := StreamURL(h.PublicBaseURL, leadID, campaignID, form.CallSid)
	if err != nil {
		log.Error("stream url build failed", "err", err)
		writeHangup(c, "")
		return
	}
	twiml, err := RenderStreamTwiML(StreamInstruction{
		URL: streamURL,
		Parameters: []StreamParameter{
			{Name: "leadId", Value: leadID},
			{Name: "campaignId", Value: campaignID},
			{Name: "callSid", Value: form.CallSid},
		},
	})
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}

	log.Info("call answered", "call_sid", form.CallSid, "lead_id", leadID, "campaign_id", campaignID)
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

func writeHangup(c *gin.Context, message string) {
	twiml, err := RenderHangupTwiML(message)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

// CallCompleter finalizes call logs; implemented by campaigns.Service.
type CallCompleter interface {
	CompleteCall(ctx context.Context, out campaigns.CallOutcome) (calls.Log, error)
}

// StatusHandler receives Twilio status callbacks for dialed calls.
type StatusHandler struct {
	Completer CallCompleter
}

func (h StatusHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Completer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call completer not configured"})
		return
	}

	form, err := ParseTwilioCallForm(c.Request)
	if err != nil || form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	st, ok := MapCallStatus(form.CallStatus, form.AnsweredBy)
	if !ok {
		log.Info("twilio status ignored", "call_sid", form.CallSid, "call_status", form.CallStatus)
		c.Status(http.StatusNoContent)
		return
	}

	ctx := logger.With(c.Request.Context(), log)
	l, err := h.Completer.CompleteCall(ctx, campaigns.CallOutcome{
		CallSID:         form.CallSid,
		Status:          st,
		DurationSeconds: form.CallDuration,
	})
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		// Not one of ours, or the bridge never created the row.
		log.Warn("status for unknown call", "call_sid", form.CallSid)
		c.Status(http.StatusNoContent)
		return
	case err != nil:
		log.Error("call completion failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "completion failed"})
		return
	}

	log.Info("call status recorded", "call_sid", l.CallSID, "call_status", string(l.Status))
	c.Status(http.StatusNoContent)
}
