package reporting

import "time"

// TimeRange bounds a report by call creation time. A zero bound is open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call outcomes for one campaign.
// Organization isolation: OrganizationID is required.
type CallsSummaryRequest struct {
	OrganizationID string    `json:"organization_id"`
	CampaignID     string    `json:"campaign_id"`
	Range          TimeRange `json:"range"`
}

type CallsSummary struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id"`

	TotalCalls       int `json:"total_calls"`
	CompletedCalls   int `json:"completed_calls"`
	TransferredCalls int `json:"transferred_calls"`
	VoicemailCalls   int `json:"voicemail_calls"`
	NoAnswerCalls    int `json:"no_answer_calls"`
	BusyCalls        int `json:"busy_calls"`
	FailedCalls      int `json:"failed_calls"`
	InProgressCalls  int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// Rates are percentages of finished calls, rounded to two decimals.
	ConnectionRate float64 `json:"connection_rate"`
	ConversionRate float64 `json:"conversion_rate"`

	TranscribedCalls int `json:"transcribed_calls"`
}
