package session

import (
	"time"

	"github.com/pavelanni/invigilator/internal/behavior"
	"github.com/pavelanni/invigilator/internal/model"
)

const (
	// Tab switches beyond this count escalate to MULTIPLE_TAB_SWITCHES.
	tabSwitchThreshold = 3
	// Focus regained later than this after a blur counts as extended absence.
	extendedAbsenceAfter = 30 * time.Second
	// Answer saves without an intervening violation before FOCUSED_ANSWERING.
	focusedStreakLength = 5
	// Violations inside this window before SUSPICIOUS_PATTERN fires.
	patternWindow     = time.Minute
	patternViolations = 5
)

// Directives are instructions for the exam client produced while
// observing a signal. They are decoupled from scoring.
type Directives struct {
	RequestFullscreen bool `json:"request_fullscreen,omitempty"`
}

// IntegrityMonitor consumes typed environment signals and accumulates the
// session's action log. Every discrete signal yields one logged action;
// the only extra entries are the documented escalations. The monitor is
// not safe for concurrent use; the controller serializes access.
type IntegrityMonitor struct {
	actions []model.StudentAction

	tabSwitches    int
	answerStreak   int
	violationTimes []time.Time
	patternFlagged bool
	lastBlurAt     time.Time
	stopped        bool
}

// NewIntegrityMonitor creates an empty monitor.
func NewIntegrityMonitor() *IntegrityMonitor {
	return &IntegrityMonitor{}
}

// Restore preloads a persisted action log when resuming a session, so
// escalation counters continue from where the interrupted attempt left off.
func (m *IntegrityMonitor) Restore(actions []model.StudentAction) {
	m.actions = append(m.actions, actions...)
	for _, a := range actions {
		if a.Type == model.ActionTabSwitch {
			m.tabSwitches++
		}
		if a.Type == model.ActionSuspiciousPattern {
			m.patternFlagged = true
		}
		if behavior.IsViolation(a.Severity) {
			m.violationTimes = append(m.violationTimes, a.Timestamp)
		}
	}
}

// Observe classifies one raw signal into zero or more logged actions and
// returns them together with any client directives. Historic points are
// never recomputed.
func (m *IntegrityMonitor) Observe(sig model.EnvironmentSignal) ([]model.StudentAction, Directives) {
	if m.stopped {
		return nil, Directives{}
	}
	at := sig.At
	if at.IsZero() {
		at = time.Now()
	}

	var logged []model.StudentAction
	var dir Directives
	add := func(t model.ActionType, details string) {
		a := behavior.NewAction(t, at, details)
		m.actions = append(m.actions, a)
		logged = append(logged, a)
		if behavior.IsViolation(a.Severity) {
			m.answerStreak = 0
			m.violationTimes = append(m.violationTimes, at)
		}
	}

	switch sig.Kind {
	case model.SignalFocusLost:
		m.lastBlurAt = at
		add(model.ActionWindowBlur, detailOr(sig, "Window lost focus"))

	case model.SignalTabHidden:
		m.lastBlurAt = at
		m.tabSwitches++
		add(model.ActionTabSwitch, detailOr(sig, "Switched away from the exam tab"))
		if m.tabSwitches == tabSwitchThreshold+1 {
			add(model.ActionMultipleTabSwitches, "Repeated tab switching beyond the allowed threshold")
		}

	case model.SignalFocusGained:
		if !m.lastBlurAt.IsZero() && at.Sub(m.lastBlurAt) > extendedAbsenceAfter {
			add(model.ActionExtendedAbsence, "Returned after a prolonged absence")
		}
		m.lastBlurAt = time.Time{}

	case model.SignalFullscreenExit:
		add(model.ActionFullscreenExit, detailOr(sig, "Exited fullscreen mode"))
		// One automatic re-request per exit, never scored.
		dir.RequestFullscreen = true

	case model.SignalFullscreenEnter:
		// Re-entry success is not scored.

	case model.SignalCopy:
		add(model.ActionCopyAttempt, detailOr(sig, "Attempted to copy exam content"))

	case model.SignalPaste:
		add(model.ActionPasteAttempt, detailOr(sig, "Attempted to paste into the exam"))

	case model.SignalRightClick:
		add(model.ActionRightClick, detailOr(sig, "Right-click blocked"))

	case model.SignalKeyCombination:
		add(model.ActionKeyCombination, detailOr(sig, "Blocked keyboard shortcut"))

	case model.SignalDevTools:
		add(model.ActionDeveloperTools, detailOr(sig, "Developer tools detected"))

	case model.SignalAnswerSaved:
		add(model.ActionAnswerChange, detailOr(sig, "Answer saved"))
		m.answerStreak++
		if m.answerStreak == focusedStreakLength {
			m.answerStreak = 0
			add(model.ActionFocusedAnswering, "Sustained answering without violations")
		}

	case model.SignalNavigation:
		add(model.ActionQuestionNavigation, detailOr(sig, "Navigated between questions"))

	case model.SignalWarningAck:
		add(model.ActionTimeWarningAck, detailOr(sig, "Acknowledged time warning"))
	}

	if !m.patternFlagged && m.violationsWithin(patternWindow, at) >= patternViolations {
		m.patternFlagged = true
		add(model.ActionSuspiciousPattern, "Burst of violations in a short interval")
	}

	return logged, dir
}

func (m *IntegrityMonitor) violationsWithin(window time.Duration, now time.Time) int {
	count := 0
	for _, ts := range m.violationTimes {
		if now.Sub(ts) <= window {
			count++
		}
	}
	return count
}

// Stop freezes the log. A session that logged no violations earns a final
// NO_VIOLATIONS entry before the freeze. Stop is idempotent; the extra
// entry is returned so the caller can persist it.
func (m *IntegrityMonitor) Stop(at time.Time) []model.StudentAction {
	if m.stopped {
		return nil
	}
	m.stopped = true
	if len(m.violationTimes) == 0 {
		a := behavior.NewAction(model.ActionNoViolations, at, "Completed the exam without violations")
		m.actions = append(m.actions, a)
		return []model.StudentAction{a}
	}
	return nil
}

// Log returns the accumulated action log.
func (m *IntegrityMonitor) Log() []model.StudentAction { return m.actions }

// TabSwitchCount returns how many tab switches were observed.
func (m *IntegrityMonitor) TabSwitchCount() int { return m.tabSwitches }

func detailOr(sig model.EnvironmentSignal, fallback string) string {
	if sig.Detail != "" {
		return sig.Detail
	}
	return fallback
}
