package audit

import (
	"context"
	"encoding/json"
	"testing"
)

func TestService_AppendRequiresOrganizationAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeCampaignStarted}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{OrganizationID: "org"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("invalid events must not be stored")
	}
}

func TestService_LogCampaignStartedCapturesCounts(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogCampaignStarted(context.Background(), "org", "u", "owner", "1.2.3.4", "camp", DispatchCounts{
		Mode:             "live",
		RetryMode:        "none",
		TotalLeads:       2,
		Queued:           1,
		FailedValidation: 1,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].Type != EventTypeCampaignStarted || evs[0].CampaignID != "camp" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned")
	}

	var counts DispatchCounts
	if err := json.Unmarshal([]byte(evs[0].Metadata), &counts); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if counts.Queued != 1 || counts.FailedValidation != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestService_SimulatedModeUsesOwnType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCampaignStarted(context.Background(), "org", "", "", "", "camp", DispatchCounts{Mode: "simulated"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := repo.Events()[0].Type; got != EventTypeCampaignSimulated {
		t.Fatalf("expected campaign_simulated, got %q", got)
	}
}

func TestService_NilServiceReportsError(t *testing.T) {
	var svc *Service
	if err := svc.Append(context.Background(), Event{OrganizationID: "o", Type: EventTypeCallSessionClosed}); err == nil {
		t.Fatalf("expected error from nil service")
	}
}
