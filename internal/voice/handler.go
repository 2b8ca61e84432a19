package voice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"propdial/pkg/logger"
)

// Handler upgrades Twilio media-stream requests and hands them to the bridge.
type Handler struct {
	bridge   *Bridge
	upgrader websocket.Upgrader
}

func NewHandler(b *Bridge) *Handler {
	return &Handler{
		bridge: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio does not send an Origin header; requests are authenticated
			// by the call routing parameters instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		log.Warn("media stream upgrade failed", "err", err)
		return
	}

	params := RoutingParams{
		LeadID:     strings.TrimSpace(c.Query("leadId")),
		CampaignID: strings.TrimSpace(c.Query("campaignId")),
		CallSID:    strings.TrimSpace(c.Query("callSid")),
	}
	ctx := logger.With(c.Request.Context(), log)
	h.bridge.Serve(ctx, conn, params)
}
