package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"propdial/internal/auth"
	"propdial/internal/campaigns"
	"propdial/internal/rbac"
	"propdial/internal/reporting"
	"propdial/pkg/logger"
)

// CampaignStarter is satisfied by *campaigns.Service.
type CampaignStarter interface {
	StartCampaign(ctx context.Context, req campaigns.StartRequest) (campaigns.StartResult, error)
}

// CallsReporter is satisfied by *reporting.Service.
type CallsReporter interface {
	CallsSummary(ctx context.Context, req reporting.CallsSummaryRequest) (reporting.CallsSummary, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Campaigns CampaignStarter
	Reports   CallsReporter
}

// --- Auth ---

type devTokenRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// IssueDevToken issues a JWT pair without checking credentials. Only routed
// in local and dev environments.
func (h Handlers) IssueDevToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrganizationID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, organization_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrganizationID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Campaigns ---

// StartCampaign runs the dispatch engine for one campaign.
// Missing permission is reported in-band with 200 so UI flows stay simple.
func (h Handlers) StartCampaign(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaigns not configured"})
		return
	}
	ctx := c.Request.Context()
	orgID, err := auth.OrganizationID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if !rbac.HasAnyRole(role, rbac.CampaignOperators...) {
		c.JSON(http.StatusOK, gin.H{"success": false, "forbidden": true, "error": "you do not have permission to start campaigns"})
		return
	}

	batchSize := 0
	if v := strings.TrimSpace(c.Query("batchSize")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "batchSize must be an integer"})
			return
		}
		batchSize = n
	}
	mode, err := campaigns.ParseRetryMode(c.Query("retryMode"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Campaigns.StartCampaign(logger.With(ctx, log), campaigns.StartRequest{
		OrganizationID: orgID,
		ActorUserID:    userID,
		ActorRole:      role,
		IPAddress:      c.ClientIP(),
		CampaignID:     c.Param("id"),
		BatchSize:      batchSize,
		RetryMode:      mode,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error("campaign start failed", "campaign_id", c.Param("id"), "err", err)
			c.AbortWithStatusJSON(status, gin.H{"error": "failed to start campaign"})
			return
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}

	summary := gin.H{"totalLeads": res.TotalLeads, "message": res.Message}
	if res.Mode == campaigns.ModeSimulated {
		summary["totalCalls"] = res.TotalCalls
		summary["transferredCalls"] = res.TransferredCalls
	} else {
		summary["queued"] = res.Queued
		summary["failedValidation"] = res.FailedValidation
		summary["skipped"] = res.Skipped
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"mode":    res.Mode,
		"campaign": gin.H{
			"id":     res.Campaign.ID,
			"name":   res.Campaign.Name,
			"status": res.Campaign.Status,
		},
		"summary": summary,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, campaigns.ErrOutOfWindow),
		errors.Is(err, campaigns.ErrNoLeads),
		errors.Is(err, campaigns.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CampaignReport returns call outcome totals for one campaign.
// Optional from/to query values are RFC 3339 timestamps.
func (h Handlers) CampaignReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	orgID, err := auth.OrganizationID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}

	var rng reporting.TimeRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		v := strings.TrimSpace(c.Query(p.name))
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": p.name + " must be an RFC 3339 timestamp"})
			return
		}
		*p.dst = t
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		OrganizationID: orgID,
		CampaignID:     c.Param("id"),
		Range:          rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("campaign report failed", "campaign_id", c.Param("id"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}
