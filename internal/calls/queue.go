package calls

import "time"

// QueueEntry is a durable (campaign, lead) pair awaiting an outbound attempt.
//
// Invariant: at most one queued entry per (campaign_id, lead_id), enforced by
// the composite unique key and an insert that ignores conflicts.
// The dialing worker consumes entries; this module only creates them.
type QueueEntry struct {
	ID             string      `json:"id" db:"id"`
	OrganizationID string      `json:"organization_id" db:"organization_id"`
	CampaignID     string      `json:"campaign_id" db:"campaign_id"`
	LeadID         string      `json:"lead_id" db:"lead_id"`
	Phone          string      `json:"phone" db:"phone"`
	Status         QueueStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusDone       QueueStatus = "done"
)

// Key identifies the composite uniqueness constraint of the call queue.
func (e QueueEntry) Key() string {
	return e.CampaignID + "/" + e.LeadID
}
