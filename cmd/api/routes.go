package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"propdial/internal/auth"
	"propdial/internal/config"
	"propdial/internal/httpapi"
	"propdial/internal/rbac"
	"propdial/internal/telephony"
	"propdial/internal/voice"
	"propdial/pkg/logger"
	"propdial/pkg/utils"
)

type routeDeps struct {
	cfg       config.Config
	db        utils.Pinger
	authMW    gin.HandlerFunc
	handlers  httpapi.Handlers
	completer telephony.CallCompleter
	media     *voice.Handler
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public, signed by Twilio).
	hooks := r.Group("/webhooks/twilio")
	hooks.Use(telephony.VerifyTwilioSignature(d.cfg.Twilio.AuthToken, d.cfg.App.PublicBaseURL))
	{
		answer := telephony.AnswerHandler{PublicBaseURL: d.cfg.App.PublicBaseURL}
		hooks.POST("/answer", answer.Handle)
		hooks.GET("/answer", answer.Handle)

		status := telephony.StatusHandler{Completer: d.completer}
		hooks.POST("/status", status.Handle)
	}

	// Twilio media streams carry no signature; the session validates its
	// routing parameters against storage before dialing the speech provider.
	r.GET(telephony.MediaStreamPath, d.media.Handle)

	v1 := r.Group("/v1")
	if d.cfg.App.Env == "local" || d.cfg.App.Env == "dev" {
		v1.POST("/auth/dev-token", d.handlers.IssueDevToken)
	}

	protected := v1.Group("")
	protected.Use(d.authMW, rbac.RequireOrganization())
	{
		protected.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			oid, _ := auth.OrganizationID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "organization_id": oid, "role": role})
		})

		// Role checks for campaign start happen in the handler so missing
		// permission is reported in-band.
		protected.POST("/campaigns/:id/start", d.handlers.StartCampaign)

		protected.GET("/campaigns/:id/report",
			rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst),
			d.handlers.CampaignReport,
		)
	}
}
