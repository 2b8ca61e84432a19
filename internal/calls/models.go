package calls

import "time"

// Log is one row per call attempt. Several rows may exist per lead across retries.
//
// Created in_progress when a call begins (by the voice bridge or the dialing
// worker) and finalized with status + transcript when the call ends.
type Log struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	CampaignID     string `json:"campaign_id" db:"campaign_id"`
	LeadID         string `json:"lead_id" db:"lead_id"`

	// CallSID is the telephony provider's call identifier.
	CallSID string `json:"call_sid" db:"call_sid"`

	Status      Status `json:"call_status" db:"call_status"`
	Transferred bool   `json:"transferred" db:"transferred"`

	DurationSeconds int    `json:"duration" db:"duration"`
	Transcript      string `json:"conversation_transcript,omitempty" db:"conversation_transcript"`

	TransferredToUserID string `json:"transferred_to_user_id,omitempty" db:"transferred_to_user_id"`
	TransferredToPhone  string `json:"transferred_to_phone,omitempty" db:"transferred_to_phone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusCompleted   Status = "completed"
	StatusTransferred Status = "transferred"
	StatusVoicemail   Status = "voicemail"
	StatusNoAnswer    Status = "no_answer"
	StatusFailed      Status = "failed"
	StatusBusy        Status = "busy"
	StatusInProgress  Status = "in_progress"
	StatusRinging     Status = "ringing"
)

// Valid reports whether s belongs to the fixed call-log vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusTransferred, StatusVoicemail, StatusNoAnswer,
		StatusFailed, StatusBusy, StatusInProgress, StatusRinging:
		return true
	default:
		return false
	}
}

// Terminal reports whether the attempt has finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusInProgress, StatusRinging:
		return false
	default:
		return s.Valid()
	}
}

// Conversation reports whether the callee actually spoke with the agent.
func (s Status) Conversation() bool {
	return s == StatusCompleted || s == StatusTransferred
}

// TerminalStatuses lists every terminal outcome in a stable order.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusTransferred, StatusVoicemail, StatusNoAnswer, StatusFailed, StatusBusy}
}
