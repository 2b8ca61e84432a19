package reporting

import (
	"context"
	"errors"
	"time"

	"propdial/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations must
// filter by organization.
type Repository interface {
	ListCallLogs(ctx context.Context, orgID, campaignID string, from, to time.Time) ([]calls.Log, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.OrganizationID == "" || req.CampaignID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if !req.Range.From.IsZero() && !req.Range.To.IsZero() && !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCallLogs(ctx, req.OrganizationID, req.CampaignID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{OrganizationID: req.OrganizationID, CampaignID: req.CampaignID}
	finished, connected, converted := 0, 0, 0
	for _, l := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += l.DurationSeconds
		if l.Transcript != "" {
			out.TranscribedCalls++
		}
		switch l.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusTransferred:
			out.TransferredCalls++
		case calls.StatusVoicemail:
			out.VoicemailCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusInProgress, calls.StatusRinging:
			out.InProgressCalls++
		}
		if !l.Status.Terminal() {
			continue
		}
		finished++
		if l.Status.Conversation() {
			connected++
		}
		if l.Transferred || l.Status == calls.StatusTransferred {
			converted++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	out.ConnectionRate = percent(connected, finished)
	out.ConversionRate = percent(converted, finished)
	return out, nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	r := float64(n) / float64(total) * 100
	return float64(int64(r*100+0.5)) / 100
}
