package campaigns

import (
	"fmt"
	"strings"

	"propdial/internal/calls"
)

// RetryMode controls which previously contacted leads may be dialed again.
type RetryMode string

const (
	// RetryNone skips every lead with any terminal outcome.
	RetryNone RetryMode = "none"
	// RetryFailed re-dials leads that never reached a conversation.
	RetryFailed RetryMode = "failed"
	// RetryAll ignores call history.
	RetryAll RetryMode = "all"
)

// ParseRetryMode maps a request parameter to a mode; empty means none.
func ParseRetryMode(s string) (RetryMode, error) {
	switch RetryMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RetryNone:
		return RetryNone, nil
	case RetryFailed:
		return RetryFailed, nil
	case RetryAll:
		return RetryAll, nil
	default:
		return "", fmt.Errorf("%w: retry mode %q", ErrInvalidArgument, s)
	}
}

// ExcludedStatuses returns the call-log outcomes that make a lead ineligible.
func ExcludedStatuses(mode RetryMode) []calls.Status {
	switch mode {
	case RetryAll:
		return nil
	case RetryFailed:
		return []calls.Status{calls.StatusCompleted, calls.StatusTransferred}
	default:
		return calls.TerminalStatuses()
	}
}

// FilterEligible removes actively queued leads and, depending on mode,
// previously attempted ones. Input order is preserved; the function is pure.
func FilterEligible(leads []Lead, queued, attempted map[string]struct{}, mode RetryMode) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if _, ok := queued[l.ID]; ok {
			continue
		}
		if mode != RetryAll {
			if _, ok := attempted[l.ID]; ok {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}
