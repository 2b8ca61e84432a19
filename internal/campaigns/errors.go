package campaigns

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("campaigns: not found")
	ErrOutOfWindow     = errors.New("campaigns: outside scheduled window")
	ErrNoLeads         = errors.New("campaigns: no leads found for campaign project")
	ErrInvalidArgument = errors.New("campaigns: invalid argument")
	ErrPersistence     = errors.New("campaigns: persistence failure")
)

// WindowError describes which scheduling bound rejected a start request.
type WindowError struct {
	Reason   string
	Now      string
	TimeZone string

	StartDate string
	EndDate   string
	TimeStart string
	TimeEnd   string
}

func (e *WindowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "campaign cannot start now (%s %s): %s", e.Now, e.TimeZone, e.Reason)
	if e.StartDate != "" || e.EndDate != "" {
		fmt.Fprintf(&b, "; dates %s..%s", orDash(e.StartDate), orDash(e.EndDate))
	}
	if e.TimeStart != "" || e.TimeEnd != "" {
		fmt.Fprintf(&b, "; hours %s..%s", orDash(e.TimeStart), orDash(e.TimeEnd))
	}
	return b.String()
}

func (e *WindowError) Is(target error) bool { return target == ErrOutOfWindow }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
