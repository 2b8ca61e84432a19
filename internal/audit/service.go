package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// DispatchCounts is the metadata payload of a campaign start record.
type DispatchCounts struct {
	Mode             string `json:"mode"`
	RetryMode        string `json:"retry_mode"`
	TotalLeads       int    `json:"total_leads"`
	Queued           int    `json:"queued"`
	FailedValidation int    `json:"failed_validation"`
	TotalCalls       int    `json:"total_calls,omitempty"`
	TransferredCalls int    `json:"transferred_calls,omitempty"`
}

// LogCampaignStarted records the queued/failed counts of one dispatch.
func (s *Service) LogCampaignStarted(ctx context.Context, orgID, actorUserID, actorRole, ip, campaignID string, counts DispatchCounts) error {
	meta, _ := json.Marshal(counts)
	typ := EventTypeCampaignStarted
	if counts.Mode == "simulated" {
		typ = EventTypeCampaignSimulated
	}
	return s.Append(ctx, Event{
		OrganizationID: orgID,
		Type:           typ,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		CampaignID:     campaignID,
		Message:        "campaign started",
		Metadata:       string(meta),
	})
}

// LogCallSessionClosed records the end of one voice bridge session.
func (s *Service) LogCallSessionClosed(ctx context.Context, orgID, campaignID, leadID, callSID, reason string, transcriptLines int) error {
	meta, _ := json.Marshal(map[string]any{"reason": reason, "transcript_lines": transcriptLines})
	return s.Append(ctx, Event{
		OrganizationID: orgID,
		Type:           EventTypeCallSessionClosed,
		CampaignID:     campaignID,
		LeadID:         leadID,
		CallSID:        callSID,
		Message:        "call session closed",
		Metadata:       string(meta),
	})
}
