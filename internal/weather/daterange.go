package weather

import (
	"errors"
	"fmt"
	"time"
)

// QuickRange names a preset date window ending now.
type QuickRange string

const (
	RangeDay   QuickRange = "day"
	RangeWeek  QuickRange = "week"
	RangeMonth QuickRange = "month"
)

// QuickRanges lists the presets in display order.
var QuickRanges = []QuickRange{RangeDay, RangeWeek, RangeMonth}

// ErrUnknownRange is returned for an unrecognised preset name.
var ErrUnknownRange = errors.New("unknown quick range")

// quickRangeTolerance is how far a selection may drift and still count as the preset.
const quickRangeTolerance = 24 * time.Hour

// ParseQuickRange validates a preset name.
func ParseQuickRange(s string) (QuickRange, error) {
	switch r := QuickRange(s); r {
	case RangeDay, RangeWeek, RangeMonth:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
	}
}

// Duration returns the preset's look-back window.
func (r QuickRange) Duration() time.Duration {
	switch r {
	case RangeDay:
		return 24 * time.Hour
	case RangeWeek:
		return 7 * 24 * time.Hour
	case RangeMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Window computes the preset's start and end. The end never passes the
// latest observation and the start never precedes the earliest one.
func (r QuickRange) Window(bounds DateBounds, now time.Time) (start, end time.Time, err error) {
	if r.Duration() == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRange, string(r))
	}
	now = now.UTC()

	end = now
	if !bounds.Max.IsZero() && bounds.Max.Before(now) {
		end = bounds.Max
	}
	start = now.Add(-r.Duration())
	if !bounds.Min.IsZero() && start.Before(bounds.Min) {
		start = bounds.Min
	}
	return start, end, nil
}

// IsActive reports whether start/end match the preset within one day.
func (r QuickRange) IsActive(start, end *time.Time, bounds DateBounds, now time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	wantStart, wantEnd, err := r.Window(bounds, now)
	if err != nil {
		return false
	}
	return absDuration(start.Sub(wantStart)) < quickRangeTolerance &&
		absDuration(end.Sub(wantEnd)) < quickRangeTolerance
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
