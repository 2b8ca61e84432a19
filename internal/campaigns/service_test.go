package campaigns

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"propdial/internal/audit"
	"propdial/internal/calls"
	"propdial/internal/phone"
)

type fixture struct {
	store   *MemoryStore
	auditRp *audit.MemoryRepo
	svc     *Service
}

func newFixture(t *testing.T, realCalls bool, now time.Time) fixture {
	t.Helper()
	st := NewMemoryStore()
	st.AddOrganization(Organization{ID: "org1", Name: "Skyline Realty"})
	st.AddCampaign(Campaign{
		ID:             "c1",
		OrganizationID: "org1",
		ProjectID:      "p1",
		Name:           "Launch",
		TimeStart:      "09:00",
		TimeEnd:        "18:00",
	})

	v, err := phone.NewValidator("91")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	rp := audit.NewMemoryRepo()
	svc, err := NewService(Options{
		Store:           st,
		Auditor:         audit.NewService(rp),
		Phones:          v,
		DefaultLocation: time.UTC,
		RealCalls:       realCalls,
		RNG:             rand.New(rand.NewSource(1)),
		Now:             func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return fixture{store: st, auditRp: rp, svc: svc}
}

var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func startReq() StartRequest {
	return StartRequest{OrganizationID: "org1", ActorUserID: "u1", ActorRole: "owner", CampaignID: "c1"}
}

func TestStartCampaign_EnqueuesValidLeads(t *testing.T) {
	f := newFixture(t, true, noon)
	f.store.AddLead(Lead{ID: "L1", OrganizationID: "org1", ProjectID: "p1", Name: "Asha", Phone: "9876543210"})
	f.store.AddLead(Lead{ID: "L2", OrganizationID: "org1", ProjectID: "p1", Name: "Ravi", Phone: "12345"})

	res, err := f.svc.StartCampaign(context.Background(), startReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Queued != 1 || res.FailedValidation != 1 {
		t.Fatalf("expected queued=1 failed=1, got %+v", res)
	}
	if res.Mode != ModeLive || res.Campaign.Status != StatusRunning {
		t.Fatalf("expected live/running, got %s/%s", res.Mode, res.Campaign.Status)
	}

	q := f.store.QueueEntries()
	if len(q) != 1 || q[0].LeadID != "L1" || q[0].Phone != "+919876543210" {
		t.Fatalf("unexpected queue: %+v", q)
	}
	l, _ := f.store.GetLead(context.Background(), "L1")
	if l.Phone != "+919876543210" {
		t.Fatalf("expected lead phone rewritten to canonical, got %q", l.Phone)
	}
	c, _ := f.store.GetCampaign(context.Background(), "c1")
	if c.Status != StatusRunning {
		t.Fatalf("expected stored campaign running, got %s", c.Status)
	}

	ev := f.auditRp.Events()
	if len(ev) != 1 || ev[0].Type != audit.EventTypeCampaignStarted || ev[0].CampaignID != "c1" {
		t.Fatalf("expected one campaign_started event, got %+v", ev)
	}
}

func TestStartCampaign_IsIdempotent(t *testing.T) {
	f := newFixture(t, true, noon)
	f.store.AddLead(Lead{ID: "L1", OrganizationID: "org1", ProjectID: "p1", Phone: "+919876543210"})
	f.store.AddLead(Lead{ID: "L2", OrganizationID: "org1", ProjectID: "p1", Phone: "+918765432109"})

	first, err := f.svc.StartCampaign(context.Background(), startReq())
	if err != nil || first.Queued != 2 {
		t.Fatalf("first run: %+v %v", first, err)
	}
	second, err := f.svc.StartCampaign(context.Background(), startReq())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Queued != 0 || second.Skipped != 2 {
		t.Fatalf("second run should queue nothing, got %+v", second)
	}
	if n := len(f.store.QueueEntries()); n != 2 {
		t.Fatalf("expected 2 queue rows total, got %d", n)
	}
}

func TestStartCampaign_RetryModes(t *testing.T) {
	for _, tc := range []struct {
		mode RetryMode
		want int
	}{
		{RetryNone, 1},
		{RetryFailed, 2},
		{RetryAll, 3},
	} {
		f := newFixture(t, true, noon)
		for _, id := range []string{"A", "B", "C"} {
			f.store.AddLead(Lead{ID: id, OrganizationID: "org1", ProjectID: "p1", Phone: "+919876543210"})
		}
		_ = f.store.CreateCallLog(context.Background(), calls.Log{ID: "1", CampaignID: "c1", LeadID: "A", CallSID: "CA1", Status: calls.StatusCompleted})
		_ = f.store.CreateCallLog(context.Background(), calls.Log{ID: "2", CampaignID: "c1", LeadID: "B", CallSID: "CA2", Status: calls.StatusNoAnswer})

		req := startReq()
		req.RetryMode = tc.mode
		res, err := f.svc.StartCampaign(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: %v", tc.mode, err)
		}
		if res.Queued != tc.want {
			t.Fatalf("%s: expected %d queued, got %d", tc.mode, tc.want, res.Queued)
		}
	}
}

func TestStartCampaign_BatchSize(t *testing.T) {
	f := newFixture(t, true, noon)
	for _, id := range []string{"A", "B", "C"} {
		f.store.AddLead(Lead{ID: id, OrganizationID: "org1", ProjectID: "p1", Phone: "+919876543210"})
	}
	req := startReq()
	req.BatchSize = 2
	res, err := f.svc.StartCampaign(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.TotalLeads != 2 || res.Queued != 2 {
		t.Fatalf("expected batch of 2, got %+v", res)
	}
	if clampBatch(0) != DefaultBatchSize || clampBatch(5000) != MaxBatchSize {
		t.Fatalf("unexpected batch clamping")
	}
}

func TestStartCampaign_OutOfWindowWritesNothing(t *testing.T) {
	f := newFixture(t, true, time.Date(2025, 3, 10, 18, 1, 0, 0, time.UTC))
	f.store.AddLead(Lead{ID: "L1", OrganizationID: "org1", ProjectID: "p1", Phone: "+919876543210"})

	_, err := f.svc.StartCampaign(context.Background(), startReq())
	if !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected ErrOutOfWindow, got %v", err)
	}
	if len(f.store.QueueEntries()) != 0 || len(f.auditRp.Events()) != 0 {
		t.Fatalf("rejected start must not write anything")
	}
}

func TestStartCampaign_OrganizationTimeZone(t *testing.T) {
	f := newFixture(t, true, time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC))
	f.store.AddOrganization(Organization{ID: "org1", Name: "Skyline Realty", TimeZone: "Etc/GMT-8"})
	f.store.AddLead(Lead{ID: "L1", OrganizationID: "org1", ProjectID: "p1", Phone: "+919876543210"})

	// 02:00 UTC is 10:00 at GMT+8.
	if _, err := f.svc.StartCampaign(context.Background(), startReq()); err != nil {
		t.Fatalf("expected start inside organization hours, got %v", err)
	}
}

func TestStartCampaign_NotFoundAndNoLeads(t *testing.T) {
	f := newFixture(t, true, noon)

	req := startReq()
	req.CampaignID = "missing"
	if _, err := f.svc.StartCampaign(context.Background(), req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	req = startReq()
	req.OrganizationID = "other-org"
	if _, err := f.svc.StartCampaign(context.Background(), req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-tenant lookup to be ErrNotFound, got %v", err)
	}

	if _, err := f.svc.StartCampaign(context.Background(), startReq()); !errors.Is(err, ErrNoLeads) {
		t.Fatalf("expected ErrNoLeads, got %v", err)
	}
}

func TestStartCampaign_AllInvalidLeavesStatus(t *testing.T) {
	f := newFixture(t, true, noon)
	f.store.AddLead(Lead{ID: "L1", OrganizationID: "org1", ProjectID: "p1", Phone: "abc"})

	res, err := f.svc.StartCampaign(context.Background(), startReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Queued != 0 || res.FailedValidation != 1 || len(res.Failures) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Campaign.Status != StatusScheduled {
		t.Fatalf("campaign should stay scheduled, got %s", res.Campaign.Status)
	}
}

func TestStartCampaign_AuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, true, noon)
	f.auditRp.Err = errors.New("audit down")
	f.store.AddLead(Lead{ID: "L1", OrganizationID: "org1", ProjectID: "p1", Phone: "+919876543210"})

	res, err := f.svc.StartCampaign(context.Background(), startReq())
	if err != nil || res.Queued != 1 {
		t.Fatalf("expected dispatch to succeed despite audit failure: %+v %v", res, err)
	}
}

func TestStartCampaign_Simulated(t *testing.T) {
	f := newFixture(t, false, noon)
	for _, id := range []string{"A", "B", "C", "D"} {
		f.store.AddLead(Lead{ID: id, OrganizationID: "org1", ProjectID: "p1", Name: id, Phone: "+919876543210"})
	}
	f.store.AddLead(Lead{ID: "bad", OrganizationID: "org1", ProjectID: "p1", Phone: "1"})

	res, err := f.svc.StartCampaign(context.Background(), startReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Mode != ModeSimulated || res.TotalCalls != 4 || res.FailedValidation != 1 {
		t.Fatalf("unexpected simulated result %+v", res)
	}
	if len(f.store.QueueEntries()) != 0 {
		t.Fatalf("simulated mode must not enqueue")
	}

	logs := f.store.CallLogs()
	if len(logs) != 4 {
		t.Fatalf("expected 4 call logs, got %d", len(logs))
	}
	transferred := 0
	for _, l := range logs {
		if !l.Status.Terminal() {
			t.Fatalf("simulated outcome %q must be terminal", l.Status)
		}
		if l.Status == calls.StatusTransferred {
			transferred++
		}
	}
	if transferred != res.TransferredCalls {
		t.Fatalf("transferred count mismatch: logs=%d result=%d", transferred, res.TransferredCalls)
	}

	c, _ := f.store.GetCampaign(context.Background(), "c1")
	if c.Status != StatusCompleted || c.TotalCalls != 4 || c.TransferredCalls != transferred {
		t.Fatalf("unexpected campaign after simulation %+v", c)
	}
	if c.ConversionRate != conversionRate(4, transferred) {
		t.Fatalf("unexpected conversion rate %v", c.ConversionRate)
	}
	l, _ := f.store.GetLead(context.Background(), "A")
	if l.LastContactedAt == nil {
		t.Fatalf("expected lead contact time to be set")
	}
	ev := f.auditRp.Events()
	if len(ev) != 1 || ev[0].Type != audit.EventTypeCampaignSimulated {
		t.Fatalf("expected campaign_simulated event, got %+v", ev)
	}
}

func TestConversionRate(t *testing.T) {
	if conversionRate(0, 0) != 0 {
		t.Fatalf("zero calls should yield zero rate")
	}
	if got := conversionRate(3, 1); got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
	if got := conversionRate(8, 3); got != 37.5 {
		t.Fatalf("expected 37.5, got %v", got)
	}
}
