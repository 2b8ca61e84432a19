package campaigns

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// CheckWindow rejects a start outside the campaign's date range or daily hours.
//
// Both ranges are inclusive. Hours compare at minute granularity, so a
// 09:00-18:00 window accepts 18:00:59 and rejects 18:01. A daily range whose
// start is after its end wraps midnight.
func CheckWindow(c Campaign, now time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	werr := &WindowError{
		Now:       local.Format("2006-01-02 15:04"),
		TimeZone:  loc.String(),
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		TimeStart: c.TimeStart,
		TimeEnd:   c.TimeEnd,
	}

	today := local.Format(dateLayout)
	if c.StartDate != "" {
		if _, err := time.Parse(dateLayout, c.StartDate); err != nil {
			return fmt.Errorf("%w: start_date %q", ErrInvalidArgument, c.StartDate)
		}
		if today < c.StartDate {
			werr.Reason = "campaign has not started yet"
			return werr
		}
	}
	if c.EndDate != "" {
		if _, err := time.Parse(dateLayout, c.EndDate); err != nil {
			return fmt.Errorf("%w: end_date %q", ErrInvalidArgument, c.EndDate)
		}
		if today > c.EndDate {
			werr.Reason = "campaign has ended"
			return werr
		}
	}

	if c.TimeStart == "" && c.TimeEnd == "" {
		return nil
	}
	minute := local.Hour()*60 + local.Minute()

	start, end := -1, -1
	if c.TimeStart != "" {
		m, err := parseClock(c.TimeStart)
		if err != nil {
			return err
		}
		start = m
	}
	if c.TimeEnd != "" {
		m, err := parseClock(c.TimeEnd)
		if err != nil {
			return err
		}
		end = m
	}

	var inside bool
	switch {
	case start >= 0 && end >= 0 && start <= end:
		inside = minute >= start && minute <= end
	case start >= 0 && end >= 0:
		inside = minute >= start || minute <= end
	case start >= 0:
		inside = minute >= start
	default:
		inside = minute <= end
	}
	if !inside {
		werr.Reason = "outside daily calling hours"
		return werr
	}
	return nil
}

// parseClock accepts HH:MM or HH:MM:SS and returns minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidArgument, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidArgument, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidArgument, s)
	}
	return h*60 + m, nil
}
