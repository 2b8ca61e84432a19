package campaigns

import (
	"context"
	"sync"
	"time"

	"propdial/internal/calls"
)

// MemoryStore is an in-memory Store used by tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu sync.Mutex

	orgs      map[string]Organization
	campaigns map[string]Campaign
	leads     map[string]Lead
	leadOrder []string

	queue []calls.QueueEntry
	logs  []calls.Log

	updates map[string]int
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:      map[string]Organization{},
		campaigns: map[string]Campaign{},
		leads:     map[string]Lead{},
		updates:   map[string]int{},
		clock:     time.Now,
	}
}

func (s *MemoryStore) AddOrganization(o Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *MemoryStore) AddCampaign(c Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	s.campaigns[c.ID] = c
}

func (s *MemoryStore) AddLead(l Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[l.ID]; !ok {
		s.leadOrder = append(s.leadOrder, l.ID)
	}
	s.leads[l.ID] = l
}

// QueueEntries returns a copy of the call queue.
func (s *MemoryStore) QueueEntries() []calls.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.QueueEntry, len(s.queue))
	copy(out, s.queue)
	return out
}

// SetQueueStatus lets tests play the dialing worker.
func (s *MemoryStore) SetQueueStatus(campaignID, leadID string, st calls.QueueStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].CampaignID == campaignID && s.queue[i].LeadID == leadID {
			s.queue[i].Status = st
		}
	}
}

// CallLogs returns a copy of all call-log rows.
func (s *MemoryStore) CallLogs() []calls.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// UpdateCount reports how many times a call-log row was updated.
func (s *MemoryStore) UpdateCount(callSID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[callSID]
}

func (s *MemoryStore) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetLead(ctx context.Context, leadID string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) ListLeads(ctx context.Context, orgID, projectID string, limit int) ([]Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Lead
	for _, id := range s.leadOrder {
		l := s.leads[id]
		if l.OrganizationID != orgID || l.ProjectID != projectID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateLeadPhone(ctx context.Context, leadID, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	l.Phone = phone
	s.leads[leadID] = l
	return nil
}

func (s *MemoryStore) MarkLeadContacted(ctx context.Context, leadID string, at time.Time, transferred bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	t := at
	l.LastContactedAt = &t
	if transferred {
		l.TransferredToHuman = true
	}
	s.leads[leadID] = l
	return nil
}

func (s *MemoryStore) QueuedLeadIDs(ctx context.Context, campaignID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]struct{}{}
	for _, e := range s.queue {
		if e.CampaignID == campaignID && e.Status == calls.QueueStatusQueued {
			out[e.LeadID] = struct{}{}
		}
	}
	return out, nil
}

func (s *MemoryStore) AttemptedLeadIDs(ctx context.Context, campaignID string, statuses []calls.Status) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[calls.Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	out := map[string]struct{}{}
	for _, l := range s.logs {
		if l.CampaignID != campaignID {
			continue
		}
		if _, ok := want[l.Status]; ok {
			out[l.LeadID] = struct{}{}
		}
	}
	return out, nil
}

func (s *MemoryStore) EnqueueCalls(ctx context.Context, entries []calls.QueueEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := map[string]struct{}{}
	for _, e := range s.queue {
		if e.Status == calls.QueueStatusQueued {
			active[e.Key()] = struct{}{}
		}
	}
	inserted := 0
	for _, e := range entries {
		if _, ok := active[e.Key()]; ok {
			continue
		}
		if e.Status == "" {
			e.Status = calls.QueueStatusQueued
		}
		s.queue = append(s.queue, e)
		active[e.Key()] = struct{}{}
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) PendingQueueCount(ctx context.Context, campaignID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.queue {
		if e.CampaignID == campaignID && e.Status != calls.QueueStatusDone {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SetCampaignStatus(ctx context.Context, campaignID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = s.clock().UTC()
	s.campaigns[campaignID] = c
	return nil
}

func (s *MemoryStore) UpdateCampaignCounters(ctx context.Context, campaignID string, ct Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	c.TotalCalls = ct.TotalCalls
	c.TransferredCalls = ct.TransferredCalls
	c.ConversionRate = ct.ConversionRate
	c.UpdatedAt = s.clock().UTC()
	s.campaigns[campaignID] = c
	return nil
}

func (s *MemoryStore) CampaignCallStats(ctx context.Context, campaignID string) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ct Counters
	for _, l := range s.logs {
		if l.CampaignID != campaignID || !l.Status.Terminal() {
			continue
		}
		ct.TotalCalls++
		if l.Transferred || l.Status == calls.StatusTransferred {
			ct.TransferredCalls++
		}
	}
	ct.ConversionRate = conversionRate(ct.TotalCalls, ct.TransferredCalls)
	return ct, nil
}

func (s *MemoryStore) CreateCallLog(ctx context.Context, l calls.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
	return nil
}

func (s *MemoryStore) GetCallLogBySID(ctx context.Context, callSID string) (calls.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].CallSID == callSID {
			return s.logs[i], nil
		}
	}
	return calls.Log{}, ErrNotFound
}

func (s *MemoryStore) UpdateCallLog(ctx context.Context, callSID string, u CallLogUpdate) (calls.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].CallSID != callSID {
			continue
		}
		l := &s.logs[i]
		if u.Status != "" {
			l.Status = u.Status
		}
		if u.Transcript != nil {
			l.Transcript = *u.Transcript
		}
		if u.DurationSeconds != nil {
			l.DurationSeconds = *u.DurationSeconds
		}
		if u.Transferred != nil {
			l.Transferred = *u.Transferred
		}
		if u.TransferredToUserID != "" {
			l.TransferredToUserID = u.TransferredToUserID
		}
		if u.TransferredToPhone != "" {
			l.TransferredToPhone = u.TransferredToPhone
		}
		l.UpdatedAt = s.clock().UTC()
		s.updates[callSID]++
		return *l, nil
	}
	return calls.Log{}, ErrNotFound
}
