package calendar

import "time"

// DefaultMaxSlotIterations bounds FindSlot when no explicit cap is given.
const DefaultMaxSlotIterations = 100

// Interval is a booked half-open window [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Ref   string    `json:"ref,omitempty"` // owning entry id, informational
}

// Overlaps reports whether the interval intersects [start, end).
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && end.After(iv.Start)
}

// Slot is the outcome of a slot search.
type Slot struct {
	Start      time.Time
	End        time.Time
	Iterations int
	// Capped is true when the iteration cap was hit; Start/End then hold the
	// last candidate examined and may still overlap a booking.
	Capped bool
}

// FindSlot returns the earliest in-window start at or after earliest whose
// booking of duration d overlaps none of the busy lists. When a candidate
// collides, the search restarts from the colliding interval's end.
func (c Calendar) FindSlot(earliest time.Time, d time.Duration, maxIter int, busy ...[]Interval) Slot {
	if maxIter <= 0 {
		maxIter = DefaultMaxSlotIterations
	}
	cand := c.Snap(earliest)
	for i := 1; i <= maxIter; i++ {
		end := c.EndTime(cand, d)
		blocker, hit := firstOverlap(cand, end, busy)
		if !hit {
			return Slot{Start: cand, End: end, Iterations: i}
		}
		cand = c.Snap(blocker.End)
	}
	return Slot{Start: cand, End: c.EndTime(cand, d), Iterations: maxIter, Capped: true}
}

func firstOverlap(start, end time.Time, lists [][]Interval) (Interval, bool) {
	for _, list := range lists {
		for _, iv := range list {
			if iv.Overlaps(start, end) {
				return iv, true
			}
		}
	}
	return Interval{}, false
}
