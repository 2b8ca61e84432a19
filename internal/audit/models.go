package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - organization_id is required for tenancy isolation.
// - Writes are best-effort; callers never block the audited operation on them.
type Event struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Type EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	LeadID     string `json:"lead_id,omitempty" db:"lead_id"`
	CallSID    string `json:"call_sid,omitempty" db:"call_sid"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCampaignStarted   EventType = "campaign_started"
	EventTypeCampaignSimulated EventType = "campaign_simulated"
	EventTypeCallSessionClosed EventType = "call_session_closed"
)
