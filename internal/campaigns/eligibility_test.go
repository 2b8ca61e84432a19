package campaigns

import (
	"errors"
	"testing"
)

func ids(leads []Lead) []string {
	out := make([]string, 0, len(leads))
	for _, l := range leads {
		out = append(out, l.ID)
	}
	return out
}

func set(v ...string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, s := range v {
		out[s] = struct{}{}
	}
	return out
}

func TestFilterEligible_RetryModes(t *testing.T) {
	// A completed, B no_answer, C never called.
	leads := []Lead{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	history := map[RetryMode]map[string]struct{}{
		RetryNone:   set("A", "B"),
		RetryFailed: set("A"),
		RetryAll:    set(),
	}
	want := map[RetryMode][]string{
		RetryNone:   {"C"},
		RetryFailed: {"B", "C"},
		RetryAll:    {"A", "B", "C"},
	}
	for mode, attempted := range history {
		got := ids(FilterEligible(leads, set(), attempted, mode))
		if len(got) != len(want[mode]) {
			t.Fatalf("%s: got %v want %v", mode, got, want[mode])
		}
		for i := range got {
			if got[i] != want[mode][i] {
				t.Fatalf("%s: got %v want %v", mode, got, want[mode])
			}
		}
	}
}

func TestFilterEligible_QueuedAlwaysExcluded(t *testing.T) {
	leads := []Lead{{ID: "A"}, {ID: "B"}}
	got := ids(FilterEligible(leads, set("B"), set(), RetryAll))
	if len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected queued lead to be skipped even in all mode, got %v", got)
	}
}

func TestParseRetryMode(t *testing.T) {
	if m, err := ParseRetryMode(""); err != nil || m != RetryNone {
		t.Fatalf("empty should map to none, got %q %v", m, err)
	}
	if m, err := ParseRetryMode(" FAILED "); err != nil || m != RetryFailed {
		t.Fatalf("expected failed, got %q %v", m, err)
	}
	if _, err := ParseRetryMode("sometimes"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestExcludedStatuses(t *testing.T) {
	if len(ExcludedStatuses(RetryAll)) != 0 {
		t.Fatalf("all mode excludes nothing")
	}
	if len(ExcludedStatuses(RetryNone)) != 6 {
		t.Fatalf("none mode excludes every terminal outcome")
	}
	if len(ExcludedStatuses(RetryFailed)) != 2 {
		t.Fatalf("failed mode excludes completed and transferred only")
	}
}
