package campaigns

import (
	"context"
	"errors"
	"fmt"

	"propdial/internal/calls"
	"propdial/pkg/logger"
)

// CallOutcome is the final report for one dialed call, usually from the
// telephony status callback.
type CallOutcome struct {
	CallSID         string
	Status          calls.Status
	DurationSeconds int

	Transferred         bool
	TransferredToUserID string
	TransferredToPhone  string
}

// CompleteCall finalizes the call log for CallSID and rolls the result up
// into the lead and campaign. Non-terminal statuses only update the log.
func (s *Service) CompleteCall(ctx context.Context, out CallOutcome) (calls.Log, error) {
	if out.CallSID == "" {
		return calls.Log{}, fmt.Errorf("%w: call sid required", ErrInvalidArgument)
	}
	if !out.Status.Valid() {
		return calls.Log{}, fmt.Errorf("%w: call status %q", ErrInvalidArgument, out.Status)
	}

	existing, err := s.store.GetCallLogBySID(ctx, out.CallSID)
	if err != nil {
		return calls.Log{}, err
	}

	// A provider "completed" must not overwrite an outcome the bridge already
	// classified more precisely. A bridged call that never reached the AI
	// stays failed so it can be retried.
	st := out.Status
	if st == calls.StatusCompleted && (existing.Status == calls.StatusTransferred || existing.Status == calls.StatusVoicemail || existing.Status == calls.StatusFailed) {
		st = existing.Status
	}
	if out.Transferred {
		st = calls.StatusTransferred
	}

	u := CallLogUpdate{
		Status:              st,
		TransferredToUserID: out.TransferredToUserID,
		TransferredToPhone:  out.TransferredToPhone,
	}
	if out.DurationSeconds > 0 {
		d := out.DurationSeconds
		u.DurationSeconds = &d
	}
	if out.Transferred {
		t := true
		u.Transferred = &t
	}

	l, err := s.store.UpdateCallLog(ctx, out.CallSID, u)
	if err != nil {
		return calls.Log{}, err
	}
	if !l.Status.Terminal() {
		return l, nil
	}

	log := logger.From(ctx).With("call_sid", l.CallSID, "campaign_id", l.CampaignID)
	transferred := l.Transferred || l.Status == calls.StatusTransferred
	if err := s.store.MarkLeadContacted(ctx, l.LeadID, s.now().UTC(), transferred); err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn("lead contact update failed", "lead_id", l.LeadID, "err", err)
	}

	if l.CampaignID == "" {
		return l, nil
	}
	counters, err := s.store.CampaignCallStats(ctx, l.CampaignID)
	if err != nil {
		return l, fmt.Errorf("%w: call stats: %v", ErrPersistence, err)
	}
	if err := s.store.UpdateCampaignCounters(ctx, l.CampaignID, counters); err != nil {
		return l, fmt.Errorf("%w: counters: %v", ErrPersistence, err)
	}

	pending, err := s.store.PendingQueueCount(ctx, l.CampaignID)
	if err != nil {
		return l, fmt.Errorf("%w: pending queue: %v", ErrPersistence, err)
	}
	if pending == 0 {
		if err := s.store.SetCampaignStatus(ctx, l.CampaignID, StatusCompleted); err != nil {
			return l, fmt.Errorf("%w: campaign status: %v", ErrPersistence, err)
		}
		log.Info("campaign completed", "total_calls", counters.TotalCalls, "transferred_calls", counters.TransferredCalls)
	}
	return l, nil
}
