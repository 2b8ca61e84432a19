package campaigns

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
	_ "time/tzdata" // organization zones must resolve in minimal images

	"github.com/google/uuid"

	"propdial/internal/audit"
	"propdial/internal/calls"
	"propdial/internal/phone"
	"propdial/pkg/logger"
)

const (
	DefaultBatchSize = 50
	MaxBatchSize     = 1000
)

type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// Auditor is the subset of audit.Service used by dispatch.
type Auditor interface {
	LogCampaignStarted(ctx context.Context, orgID, actorUserID, actorRole, ip, campaignID string, counts audit.DispatchCounts) error
}

type Options struct {
	Store   Store
	Auditor Auditor
	Phones  *phone.Validator

	// DefaultLocation is used when the organization has no time zone.
	DefaultLocation *time.Location

	// RealCalls=false switches StartCampaign to simulated outcomes.
	RealCalls bool

	RNG *rand.Rand
	Now func() time.Time
}

// Service decides who to call. It never places calls itself.
type Service struct {
	store   Store
	auditor Auditor
	phones  *phone.Validator
	loc     *time.Location

	realCalls bool
	rng       *rand.Rand
	now       func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("campaigns: store required")
	}
	if opts.Phones == nil {
		return nil, errors.New("campaigns: phone validator required")
	}
	s := &Service{
		store:     opts.Store,
		auditor:   opts.Auditor,
		phones:    opts.Phones,
		loc:       opts.DefaultLocation,
		realCalls: opts.RealCalls,
		rng:       opts.RNG,
		now:       opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

type StartRequest struct {
	OrganizationID string
	ActorUserID    string
	ActorRole      string
	IPAddress      string

	CampaignID string
	BatchSize  int
	RetryMode  RetryMode
}

// LeadFailure explains why a lead was not enqueued.
type LeadFailure struct {
	LeadID string `json:"lead_id"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

type StartResult struct {
	Mode      Mode      `json:"mode"`
	Campaign  Campaign  `json:"campaign"`
	RetryMode RetryMode `json:"retry_mode"`

	TotalLeads       int `json:"total_leads"`
	Eligible         int `json:"eligible"`
	Skipped          int `json:"skipped"`
	Queued           int `json:"queued"`
	FailedValidation int `json:"failed_validation"`

	// Simulated mode only.
	TotalCalls       int `json:"total_calls,omitempty"`
	TransferredCalls int `json:"transferred_calls,omitempty"`

	Failures []LeadFailure `json:"failures,omitempty"`
	Message  string        `json:"message"`
}

// lookupCache holds per-request lookups so one dispatch resolves each
// organization once.
type lookupCache struct {
	orgs map[string]Organization
}

func newLookupCache() *lookupCache { return &lookupCache{orgs: map[string]Organization{}} }

func (s *Service) organization(ctx context.Context, lc *lookupCache, orgID string) (Organization, error) {
	if o, ok := lc.orgs[orgID]; ok {
		return o, nil
	}
	o, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return Organization{}, err
	}
	lc.orgs[orgID] = o
	return o, nil
}

func (s *Service) location(o Organization) *time.Location {
	if o.TimeZone == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return s.loc
	}
	return loc
}

func clampBatch(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

// StartCampaign validates and enqueues a batch of leads for a campaign.
//
// Re-invoking it is safe: leads already queued for the campaign are skipped
// and the queue write ignores existing (campaign, lead) rows.
func (s *Service) StartCampaign(ctx context.Context, req StartRequest) (StartResult, error) {
	if req.OrganizationID == "" || req.CampaignID == "" {
		return StartResult{}, fmt.Errorf("%w: organization and campaign required", ErrInvalidArgument)
	}
	mode := req.RetryMode
	if mode == "" {
		mode = RetryNone
	}
	batch := clampBatch(req.BatchSize)
	log := logger.From(ctx).With("campaign_id", req.CampaignID, "organization_id", req.OrganizationID)
	lc := newLookupCache()

	c, err := s.store.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return StartResult{}, err
	}
	if c.OrganizationID != req.OrganizationID {
		return StartResult{}, ErrNotFound
	}

	org, err := s.organization(ctx, lc, c.OrganizationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return StartResult{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := CheckWindow(c, s.now(), s.location(org)); err != nil {
		return StartResult{}, err
	}

	leads, err := s.store.ListLeads(ctx, c.OrganizationID, c.ProjectID, batch)
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: list leads: %v", ErrPersistence, err)
	}
	if len(leads) == 0 {
		return StartResult{}, ErrNoLeads
	}

	queued, err := s.store.QueuedLeadIDs(ctx, c.ID)
	if err != nil {
		return StartResult{}, fmt.Errorf("%w: queued leads: %v", ErrPersistence, err)
	}
	attempted := map[string]struct{}{}
	if excluded := ExcludedStatuses(mode); len(excluded) > 0 {
		attempted, err = s.store.AttemptedLeadIDs(ctx, c.ID, excluded)
		if err != nil {
			return StartResult{}, fmt.Errorf("%w: attempted leads: %v", ErrPersistence, err)
		}
	}
	eligible := FilterEligible(leads, queued, attempted, mode)

	res := StartResult{
		Mode:       ModeLive,
		RetryMode:  mode,
		TotalLeads: len(leads),
		Eligible:   len(eligible),
		Skipped:    len(leads) - len(eligible),
	}

	valid := make([]Lead, 0, len(eligible))
	for _, l := range eligible {
		r, err := s.phones.Normalize(l.Phone)
		if err != nil {
			res.FailedValidation++
			res.Failures = append(res.Failures, LeadFailure{LeadID: l.ID, Phone: l.Phone, Reason: err.Error()})
			continue
		}
		if r.Changed {
			if err := s.store.UpdateLeadPhone(ctx, l.ID, r.Canonical); err != nil {
				log.Warn("lead phone rewrite failed", "lead_id", l.ID, "err", err)
			}
		}
		l.Phone = r.Canonical
		valid = append(valid, l)
	}

	if !s.realCalls {
		return s.simulate(ctx, req, c, valid, res)
	}

	if len(valid) > 0 {
		now := s.now().UTC()
		entries := make([]calls.QueueEntry, 0, len(valid))
		for _, l := range valid {
			entries = append(entries, calls.QueueEntry{
				ID:             uuid.NewString(),
				OrganizationID: c.OrganizationID,
				CampaignID:     c.ID,
				LeadID:         l.ID,
				Phone:          l.Phone,
				Status:         calls.QueueStatusQueued,
				CreatedAt:      now,
			})
		}
		n, err := s.store.EnqueueCalls(ctx, entries)
		if err != nil {
			return StartResult{}, fmt.Errorf("%w: enqueue: %v", ErrPersistence, err)
		}
		res.Queued = n
	}

	if res.Queued > 0 && c.Status != StatusRunning {
		if err := s.store.SetCampaignStatus(ctx, c.ID, StatusRunning); err != nil {
			return StartResult{}, fmt.Errorf("%w: campaign status: %v", ErrPersistence, err)
		}
		c.Status = StatusRunning
	}
	res.Campaign = c
	res.Message = fmt.Sprintf("Queued %d calls for %s", res.Queued, c.Name)
	if res.FailedValidation > 0 {
		res.Message += fmt.Sprintf(" (%d leads with invalid phone numbers)", res.FailedValidation)
	}

	s.audit(ctx, req, c, res)
	log.Info("campaign dispatched",
		"retry_mode", string(mode),
		"total_leads", res.TotalLeads,
		"queued", res.Queued,
		"failed_validation", res.FailedValidation,
	)
	return res, nil
}

func (s *Service) audit(ctx context.Context, req StartRequest, c Campaign, res StartResult) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.LogCampaignStarted(ctx, c.OrganizationID, req.ActorUserID, req.ActorRole, req.IPAddress, c.ID, audit.DispatchCounts{
		Mode:             string(res.Mode),
		RetryMode:        string(res.RetryMode),
		TotalLeads:       res.TotalLeads,
		Queued:           res.Queued,
		FailedValidation: res.FailedValidation,
		TotalCalls:       res.TotalCalls,
		TransferredCalls: res.TransferredCalls,
	})
	if err != nil {
		logger.From(ctx).Warn("audit write failed", "campaign_id", c.ID, "err", err)
	}
}
