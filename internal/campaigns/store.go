package campaigns

import (
	"context"
	"time"

	"propdial/internal/calls"
)

// Store is the persistence facade consumed by dispatch, simulation and the
// call-completion path. Lookups return ErrNotFound for missing rows.
type Store interface {
	GetOrganization(ctx context.Context, orgID string) (Organization, error)
	GetCampaign(ctx context.Context, campaignID string) (Campaign, error)
	GetLead(ctx context.Context, leadID string) (Lead, error)

	// ListLeads returns up to limit leads of a project in a stable order.
	ListLeads(ctx context.Context, orgID, projectID string, limit int) ([]Lead, error)
	UpdateLeadPhone(ctx context.Context, leadID, phone string) error
	MarkLeadContacted(ctx context.Context, leadID string, at time.Time, transferred bool) error

	QueuedLeadIDs(ctx context.Context, campaignID string) (map[string]struct{}, error)
	AttemptedLeadIDs(ctx context.Context, campaignID string, statuses []calls.Status) (map[string]struct{}, error)
	// EnqueueCalls inserts entries, silently skipping (campaign, lead) pairs
	// that already have a queued entry. It returns the number inserted.
	EnqueueCalls(ctx context.Context, entries []calls.QueueEntry) (int, error)
	PendingQueueCount(ctx context.Context, campaignID string) (int, error)

	SetCampaignStatus(ctx context.Context, campaignID string, status Status) error
	UpdateCampaignCounters(ctx context.Context, campaignID string, c Counters) error
	CampaignCallStats(ctx context.Context, campaignID string) (Counters, error)

	CreateCallLog(ctx context.Context, l calls.Log) error
	GetCallLogBySID(ctx context.Context, callSID string) (calls.Log, error)
	UpdateCallLog(ctx context.Context, callSID string, u CallLogUpdate) (calls.Log, error)
}

// CallLogUpdate finalizes a call-log row. Nil fields are left untouched.
type CallLogUpdate struct {
	Status              calls.Status
	Transcript          *string
	DurationSeconds     *int
	Transferred         *bool
	TransferredToUserID string
	TransferredToPhone  string
}

func conversionRate(total, transferred int) float64 {
	if total == 0 {
		return 0
	}
	r := float64(transferred) / float64(total) * 100
	return float64(int64(r*100+0.5)) / 100
}
