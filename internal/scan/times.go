// Package scan generates the canonical scan timestamps for a run window.
package scan

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyRange is returned when a window produces no scan times.
var ErrEmptyRange = errors.New("no scan times in range")

// Times returns every cadence-aligned UTC instant from floor(start) through
// end inclusive. The boundaries may be given in either order; both are
// normalized to UTC and the earlier one is floored to the nearest step
// boundary. The result is strictly increasing and unique.
func Times(start, end time.Time, step time.Duration) ([]time.Time, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive, got %v", ErrEmptyRange, step)
	}

	t0 := start.UTC()
	t1 := end.UTC()
	if t1.Before(t0) {
		t0, t1 = t1, t0
	}

	t0 = t0.Truncate(step)

	var times []time.Time
	for t := t0; !t.After(t1); t = t.Add(step) {
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: %s to %s at %v", ErrEmptyRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339), step)
	}
	return times, nil
}
