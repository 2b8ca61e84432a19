package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"propdial/internal/calls"
)

func TestReporting_OrganizationIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Logs = []calls.Log{
		{ID: "1", OrganizationID: "o1", CampaignID: "camp", Status: calls.StatusCompleted, DurationSeconds: 30, CreatedAt: now},
		{ID: "2", OrganizationID: "o2", CampaignID: "camp", Status: calls.StatusCompleted, DurationSeconds: 50, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{OrganizationID: "o1", CampaignID: "camp"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 || out.TotalDurationSeconds != 30 {
		t.Fatalf("expected only o1 calls, got %+v", out)
	}
}

func TestReporting_Aggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Logs = []calls.Log{
		{ID: "1", OrganizationID: "o", CampaignID: "c", Status: calls.StatusCompleted, DurationSeconds: 60, Transcript: "AI: Hi", CreatedAt: now},
		{ID: "2", OrganizationID: "o", CampaignID: "c", Status: calls.StatusTransferred, Transferred: true, DurationSeconds: 120, Transcript: "AI: Hi", CreatedAt: now},
		{ID: "3", OrganizationID: "o", CampaignID: "c", Status: calls.StatusNoAnswer, CreatedAt: now},
		{ID: "4", OrganizationID: "o", CampaignID: "c", Status: calls.StatusVoicemail, CreatedAt: now},
		{ID: "5", OrganizationID: "o", CampaignID: "c", Status: calls.StatusInProgress, CreatedAt: now},
		{ID: "6", OrganizationID: "o", CampaignID: "c", Status: calls.StatusBusy, CreatedAt: now.Add(-48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		OrganizationID: "o",
		CampaignID:     "c",
		Range:          TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 5 || out.BusyCalls != 0 {
		t.Fatalf("range must exclude old calls, got %+v", out)
	}
	if out.CompletedCalls != 1 || out.TransferredCalls != 1 || out.NoAnswerCalls != 1 || out.VoicemailCalls != 1 || out.InProgressCalls != 1 {
		t.Fatalf("unexpected breakdown %+v", out)
	}
	if out.AverageDurationSeconds != 36 || out.TranscribedCalls != 2 {
		t.Fatalf("unexpected durations %+v", out)
	}
	// 4 finished calls: 2 connected, 1 transferred.
	if out.ConnectionRate != 50 || out.ConversionRate != 25 {
		t.Fatalf("unexpected rates %v %v", out.ConnectionRate, out.ConversionRate)
	}
}

func TestReporting_InvalidRequest(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()
	cases := []CallsSummaryRequest{
		{CampaignID: "c"},
		{OrganizationID: "o"},
		{OrganizationID: "o", CampaignID: "c", Range: TimeRange{From: now, To: now.Add(-time.Hour)}},
	}
	for _, req := range cases {
		if _, err := svc.CallsSummary(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected ErrInvalidRequest, got %v", req, err)
		}
	}
}
