package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"propdial/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
// It enforces organization isolation on reads.
type MemoryRepo struct {
	mu   sync.Mutex
	Logs []calls.Log
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCallLogs(ctx context.Context, orgID, campaignID string, from, to time.Time) ([]calls.Log, error) {
	if orgID == "" {
		return nil, errors.New("organization_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Log, 0)
	for _, l := range r.Logs {
		if l.OrganizationID != orgID || l.CampaignID != campaignID {
			continue
		}
		if !from.IsZero() && l.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !l.CreatedAt.Before(to) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
