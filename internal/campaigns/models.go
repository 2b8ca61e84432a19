package campaigns

import "time"

// Organization owns projects, campaigns and leads.
type Organization struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// TimeZone is an IANA zone name; empty falls back to the dialer default.
	TimeZone string `json:"time_zone,omitempty" db:"time_zone"`
}

// Campaign is a scheduled outbound-calling effort tied to one project.
// It is never deleted by this module.
type Campaign struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	ProjectID      string `json:"project_id" db:"project_id"`
	Name           string `json:"name" db:"name"`
	Status         Status `json:"status" db:"status"`

	// StartDate/EndDate are calendar dates (YYYY-MM-DD), inclusive, optional.
	StartDate string `json:"start_date,omitempty" db:"start_date"`
	EndDate   string `json:"end_date,omitempty" db:"end_date"`
	// TimeStart/TimeEnd bound the daily calling window (HH:MM), inclusive, optional.
	TimeStart string `json:"time_start,omitempty" db:"time_start"`
	TimeEnd   string `json:"time_end,omitempty" db:"time_end"`

	AIScript string `json:"ai_script,omitempty" db:"ai_script"`
	Voice    string `json:"voice,omitempty" db:"voice"`

	TotalCalls       int     `json:"total_calls" db:"total_calls"`
	TransferredCalls int     `json:"transferred_calls" db:"transferred_calls"`
	ConversionRate   float64 `json:"conversion_rate" db:"conversion_rate"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Lead is a contact the campaign may dial. Phone is normalized in place.
type Lead struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	ProjectID      string `json:"project_id" db:"project_id"`

	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`
	Email string `json:"email,omitempty" db:"email"`

	LastContactedAt    *time.Time `json:"last_contacted_at,omitempty" db:"last_contacted_at"`
	TransferredToHuman bool       `json:"transferred_to_human" db:"transferred_to_human"`
}

// Counters are the aggregate call statistics kept on a campaign.
type Counters struct {
	TotalCalls       int     `json:"total_calls"`
	TransferredCalls int     `json:"transferred_calls"`
	ConversionRate   float64 `json:"conversion_rate"`
}
