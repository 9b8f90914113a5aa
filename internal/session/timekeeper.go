package session

import "time"

// TimeEvent is a one-shot clock notification.
type TimeEvent string

const (
	EventFiveMinuteWarning TimeEvent = "five_minute_warning"
	EventOneMinuteWarning  TimeEvent = "one_minute_warning"
	EventExpired           TimeEvent = "expired"
)

const (
	firstWarningAt  = 5 * time.Minute
	secondWarningAt = 1 * time.Minute
)

// Timekeeper derives remaining time from the recorded start instant and
// the wall clock, so its correctness does not depend on tick frequency.
// It is not safe for concurrent use; the controller serializes access.
type Timekeeper struct {
	duration time.Duration
	start    time.Time
	now      func() time.Time

	warnedFive bool
	warnedOne  bool
	expired    bool
}

// NewTimekeeper creates a clock for a session that started at start.
// A nil now falls back to time.Now.
func NewTimekeeper(duration time.Duration, start time.Time, now func() time.Time) *Timekeeper {
	if now == nil {
		now = time.Now
	}
	return &Timekeeper{duration: duration, start: start, now: now}
}

// Start returns the recorded start instant.
func (t *Timekeeper) Start() time.Time { return t.start }

// Elapsed returns time since start, never negative.
func (t *Timekeeper) Elapsed() time.Duration {
	d := t.now().Sub(t.start)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining returns the time left, never negative.
func (t *Timekeeper) Remaining() time.Duration {
	r := t.duration - t.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether the expiry event has already fired.
func (t *Timekeeper) Expired() bool { return t.expired }

// Poll returns the events that became due since the last poll. Each
// warning fires at most once per session; expiry fires exactly once even
// if several ticks land on zero. A clock that jumped past a threshold
// (e.g. after suspension) still fires the skipped events.
func (t *Timekeeper) Poll() []TimeEvent {
	var events []TimeEvent
	remaining := t.Remaining()

	if remaining <= 0 {
		if !t.expired {
			t.expired = true
			// Suppress warnings that would fire in the same poll as expiry.
			t.warnedFive = true
			t.warnedOne = true
			events = append(events, EventExpired)
		}
		return events
	}

	if !t.warnedFive && remaining <= firstWarningAt {
		t.warnedFive = true
		events = append(events, EventFiveMinuteWarning)
	}
	if !t.warnedOne && remaining <= secondWarningAt {
		t.warnedOne = true
		events = append(events, EventOneMinuteWarning)
	}
	return events
}
