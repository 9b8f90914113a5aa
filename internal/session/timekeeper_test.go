package session

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRemainingNeverNegative(t *testing.T) {
	clock := newFakeClock()
	tk := NewTimekeeper(time.Hour, clock.Now(), clock.Now)

	clock.Advance(2 * time.Hour)
	if got := tk.Remaining(); got != 0 {
		t.Errorf("Remaining = %v, want 0", got)
	}
}

func TestRemainingFromWallClock(t *testing.T) {
	// A session reloaded with a start instant 40 minutes in the past and
	// a 60 minute duration has about 20 minutes left.
	clock := newFakeClock()
	start := clock.Now().Add(-40 * time.Minute)
	tk := NewTimekeeper(60*time.Minute, start, clock.Now)

	if got := tk.Remaining(); got != 20*time.Minute {
		t.Errorf("Remaining = %v, want 20m", got)
	}
}

func TestWarningsFireExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	tk := NewTimekeeper(10*time.Minute, clock.Now(), clock.Now)

	counts := map[TimeEvent]int{}
	// Poll every second for the full duration plus a few extra ticks.
	for i := 0; i < 10*60+5; i++ {
		for _, ev := range tk.Poll() {
			counts[ev]++
		}
		clock.Advance(time.Second)
	}

	if counts[EventFiveMinuteWarning] != 1 {
		t.Errorf("five minute warning fired %d times", counts[EventFiveMinuteWarning])
	}
	if counts[EventOneMinuteWarning] != 1 {
		t.Errorf("one minute warning fired %d times", counts[EventOneMinuteWarning])
	}
	if counts[EventExpired] != 1 {
		t.Errorf("expiry fired %d times", counts[EventExpired])
	}
}

func TestExpiryDebounced(t *testing.T) {
	clock := newFakeClock()
	tk := NewTimekeeper(time.Minute, clock.Now(), clock.Now)

	clock.Advance(time.Minute)
	first := tk.Poll()
	second := tk.Poll()
	third := tk.Poll()

	if len(first) != 1 || first[0] != EventExpired {
		t.Fatalf("first poll = %v, want [expired]", first)
	}
	if len(second) != 0 || len(third) != 0 {
		t.Errorf("repeated polls after expiry fired again: %v %v", second, third)
	}
	if !tk.Expired() {
		t.Error("Expired() should report true")
	}
}

func TestSuspensionJumpSkipsStraightToExpiry(t *testing.T) {
	// A suspended machine can wake up past every threshold at once; only
	// expiry should fire then.
	clock := newFakeClock()
	tk := NewTimekeeper(time.Hour, clock.Now(), clock.Now)

	clock.Advance(90 * time.Minute)
	events := tk.Poll()
	if len(events) != 1 || events[0] != EventExpired {
		t.Errorf("events = %v, want only [expired]", events)
	}
}

func TestJumpIntoWarningWindowFiresSkippedWarnings(t *testing.T) {
	clock := newFakeClock()
	tk := NewTimekeeper(time.Hour, clock.Now(), clock.Now)

	// Jump directly into the one-minute window: both warnings are due.
	clock.Advance(59*time.Minute + 30*time.Second)
	events := tk.Poll()
	if len(events) != 2 {
		t.Fatalf("events = %v, want both warnings", events)
	}
	if events[0] != EventFiveMinuteWarning || events[1] != EventOneMinuteWarning {
		t.Errorf("events = %v", events)
	}
}
