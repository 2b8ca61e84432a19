package campaigns

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"propdial/internal/calls"
	"propdial/pkg/logger"
)

type weightedOutcome struct {
	status calls.Status
	weight int
}

// simulatedOutcomes roughly matches observed answer rates for cold property leads.
var simulatedOutcomes = []weightedOutcome{
	{calls.StatusCompleted, 35},
	{calls.StatusTransferred, 15},
	{calls.StatusNoAnswer, 25},
	{calls.StatusVoicemail, 10},
	{calls.StatusBusy, 10},
	{calls.StatusFailed, 5},
}

func (s *Service) pickOutcome() calls.Status {
	var total int
	for _, o := range simulatedOutcomes {
		total += o.weight
	}
	r := s.rng.Intn(total)
	var acc int
	for _, o := range simulatedOutcomes {
		acc += o.weight
		if r < acc {
			return o.status
		}
	}
	return calls.StatusFailed
}

func (s *Service) simulatedDuration(st calls.Status) int {
	switch st {
	case calls.StatusCompleted, calls.StatusTransferred:
		return 30 + s.rng.Intn(150)
	case calls.StatusVoicemail:
		return 5 + s.rng.Intn(20)
	default:
		return 0
	}
}

// simulate writes one finished call log per valid lead instead of queueing.
// Used when real calls are disabled so the CRM flows can be exercised
// without a telephony account.
func (s *Service) simulate(ctx context.Context, req StartRequest, c Campaign, valid []Lead, res StartResult) (StartResult, error) {
	res.Mode = ModeSimulated
	log := logger.From(ctx).With("campaign_id", c.ID, "mode", string(ModeSimulated))

	now := s.now().UTC()
	for _, l := range valid {
		st := s.pickOutcome()
		transferred := st == calls.StatusTransferred
		entry := calls.Log{
			ID:              uuid.NewString(),
			OrganizationID:  c.OrganizationID,
			CampaignID:      c.ID,
			LeadID:          l.ID,
			CallSID:         "SIM-" + uuid.NewString(),
			Status:          st,
			Transferred:     transferred,
			DurationSeconds: s.simulatedDuration(st),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if st.Conversation() {
			entry.Transcript = fmt.Sprintf("AI: Hello %s, this is a simulated call about %s.\nLead: (simulated reply)", l.Name, c.Name)
		}
		if err := s.store.CreateCallLog(ctx, entry); err != nil {
			return StartResult{}, fmt.Errorf("%w: call log: %v", ErrPersistence, err)
		}
		if err := s.store.MarkLeadContacted(ctx, l.ID, now, transferred); err != nil {
			log.Warn("lead contact update failed", "lead_id", l.ID, "err", err)
		}
		res.TotalCalls++
		if transferred {
			res.TransferredCalls++
		}
	}

	if len(valid) > 0 {
		counters, err := s.store.CampaignCallStats(ctx, c.ID)
		if err != nil {
			return StartResult{}, fmt.Errorf("%w: call stats: %v", ErrPersistence, err)
		}
		if err := s.store.UpdateCampaignCounters(ctx, c.ID, counters); err != nil {
			return StartResult{}, fmt.Errorf("%w: counters: %v", ErrPersistence, err)
		}
		if err := s.store.SetCampaignStatus(ctx, c.ID, StatusCompleted); err != nil {
			return StartResult{}, fmt.Errorf("%w: campaign status: %v", ErrPersistence, err)
		}
		c.Status = StatusCompleted
		c.TotalCalls = counters.TotalCalls
		c.TransferredCalls = counters.TransferredCalls
		c.ConversionRate = counters.ConversionRate
	}

	res.Campaign = c
	res.Message = fmt.Sprintf("Simulated %d calls for %s, %d transferred to an agent", res.TotalCalls, c.Name, res.TransferredCalls)
	s.audit(ctx, req, c, res)
	log.Info("campaign simulated",
		"total_calls", res.TotalCalls,
		"transferred_calls", res.TransferredCalls,
		"failed_validation", res.FailedValidation,
	)
	return res, nil
}
