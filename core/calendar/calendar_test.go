package calendar

import (
	"testing"
	"time"
)

const (
	workStart = 8
	workEnd   = 18
)

func day(d, h, m int) time.Time {
	return time.Date(2026, 3, d, h, m, 0, 0, time.UTC)
}

func TestNewRejectsInvalidWindow(t *testing.T) {
	for _, w := range [][2]int{{18, 8}, {8, 8}, {-1, 10}, {8, 25}} {
		if _, err := New(w[0], w[1]); err == nil {
			t.Fatalf("expected error for window %v", w)
		}
	}
}

func TestSnap(t *testing.T) {
	c := MustNew(workStart, workEnd)
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"before open", day(2, 6, 30), day(2, workStart, 0)},
		{"inside", day(2, 10, 15), day(2, 10, 15)},
		{"at close", day(2, workEnd, 0), day(3, workStart, 0)},
		{"after close", day(2, 22, 0), day(3, workStart, 0)},
	}
	for _, tt := range tests {
		if got := c.Snap(tt.in); !got.Equal(tt.want) {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestEndTimeZeroDuration(t *testing.T) {
	c := MustNew(workStart, workEnd)
	start := day(2, 20, 0)
	if got := c.EndTime(start, 0); !got.Equal(c.Snap(start)) {
		t.Fatalf("zero duration: got %v want %v", got, c.Snap(start))
	}
}

func TestEndTimeWithinOneDay(t *testing.T) {
	c := MustNew(workStart, workEnd)
	start := day(2, 9, 0)
	d := 3*time.Hour + 30*time.Minute
	if got := c.EndTime(start, d); !got.Equal(start.Add(d)) {
		t.Fatalf("got %v want %v", got, start.Add(d))
	}
}

func TestEndTimeSpanningDays(t *testing.T) {
	c := MustNew(workStart, workEnd)
	start := day(2, workStart, 0)
	n := 3
	r := 4 * time.Hour
	d := time.Duration(n)*c.Length() + r
	got := c.EndTime(start, d)
	want := day(2+n, workStart, 0).Add(r)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEndTimeTwelveHoursFromFourPM(t *testing.T) {
	c := MustNew(workStart, workEnd)
	start := day(2, 16, 0)
	firstDay := time.Duration(workEnd-16) * time.Hour
	remaining := 12*time.Hour - firstDay
	got := c.EndTime(start, 12*time.Hour)
	want := day(3, workStart, 0).Add(remaining)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEndTimeFillsExactlyToClose(t *testing.T) {
	c := MustNew(workStart, workEnd)
	got := c.EndTime(day(2, 16, 0), 2*time.Hour)
	if !got.Equal(day(2, workEnd, 0)) {
		t.Fatalf("got %v", got)
	}
}

func TestWorkingBetween(t *testing.T) {
	c := MustNew(workStart, workEnd)
	a := day(2, 16, 0)
	b := day(4, 10, 0)
	want := 2*time.Hour + c.Length() + 2*time.Hour
	if got := c.WorkingBetween(a, b); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := c.WorkingBetween(b, a); got != 0 {
		t.Fatalf("reverse range should be zero, got %v", got)
	}
	start := day(2, 9, 0)
	d := 27 * time.Hour
	if got := c.WorkingBetween(start, c.EndTime(start, d)); got != d {
		t.Fatalf("round trip got %v want %v", got, d)
	}
}

func TestFindSlotFreeTimeline(t *testing.T) {
	c := MustNew(workStart, workEnd)
	s := c.FindSlot(day(2, 7, 0), 4*time.Hour, 0)
	if !s.Start.Equal(day(2, workStart, 0)) || !s.End.Equal(day(2, workStart+4, 0)) {
		t.Fatalf("unexpected slot %+v", s)
	}
	if s.Capped || s.Iterations != 1 {
		t.Fatalf("unexpected search stats %+v", s)
	}
}

func TestFindSlotSkipsBookings(t *testing.T) {
	c := MustNew(workStart, workEnd)
	equipment := []Interval{{Start: day(2, 8, 0), End: day(2, 12, 0)}}
	worker := []Interval{{Start: day(2, 12, 0), End: day(2, 15, 0)}}
	s := c.FindSlot(day(2, 8, 0), 2*time.Hour, 0, equipment, worker)
	if !s.Start.Equal(day(2, 15, 0)) || !s.End.Equal(day(2, 17, 0)) {
		t.Fatalf("unexpected slot %+v", s)
	}
}

func TestFindSlotTouchingEndpointsAllowed(t *testing.T) {
	c := MustNew(workStart, workEnd)
	busy := []Interval{{Start: day(2, 10, 0), End: day(2, 12, 0)}}
	s := c.FindSlot(day(2, 8, 0), 2*time.Hour, 0, busy)
	if !s.Start.Equal(day(2, 8, 0)) {
		t.Fatalf("slot ending at booking start should be accepted, got %+v", s)
	}
}

func TestFindSlotRollsToNextDay(t *testing.T) {
	c := MustNew(workStart, workEnd)
	busy := []Interval{{Start: day(2, 8, 0), End: day(2, 17, 0)}}
	s := c.FindSlot(day(2, 8, 0), 3*time.Hour, 0, busy)
	// 17:00 start is free and spills one hour into the next morning
	if !s.Start.Equal(day(2, 17, 0)) || !s.End.Equal(day(3, 10, 0)) {
		t.Fatalf("unexpected slot %+v", s)
	}
}

func TestFindSlotIterationCap(t *testing.T) {
	c := MustNew(workStart, workEnd)
	var busy []Interval
	cur := day(2, 8, 0)
	for i := 0; i < 10; i++ {
		busy = append(busy, Interval{Start: cur, End: cur.Add(time.Hour)})
		cur = cur.Add(time.Hour)
	}
	s := c.FindSlot(day(2, 8, 0), 2*time.Hour, 3, busy)
	if !s.Capped || s.Iterations != 3 {
		t.Fatalf("expected capped search, got %+v", s)
	}
	if !s.Start.Equal(day(2, 11, 0)) {
		t.Fatalf("expected last candidate 11:00, got %v", s.Start)
	}
}
