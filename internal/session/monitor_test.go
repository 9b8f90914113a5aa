package session

import (
	"testing"
	"time"

	"github.com/pavelanni/invigilator/internal/model"
)

func sigAt(kind model.SignalKind, at time.Time) model.EnvironmentSignal {
	return model.EnvironmentSignal{Kind: kind, At: at}
}

func TestObserveClassification(t *testing.T) {
	tests := []struct {
		kind     model.SignalKind
		action   model.ActionType
		severity model.Severity
		points   int
	}{
		{model.SignalFocusLost, model.ActionWindowBlur, model.SeverityMinor, -1},
		{model.SignalTabHidden, model.ActionTabSwitch, model.SeverityModerate, -2},
		{model.SignalFullscreenExit, model.ActionFullscreenExit, model.SeverityModerate, -2},
		{model.SignalCopy, model.ActionCopyAttempt, model.SeverityModerate, -3},
		{model.SignalPaste, model.ActionPasteAttempt, model.SeverityModerate, -3},
		{model.SignalRightClick, model.ActionRightClick, model.SeverityMinor, -1},
		{model.SignalKeyCombination, model.ActionKeyCombination, model.SeverityModerate, -2},
		{model.SignalDevTools, model.ActionDeveloperTools, model.SeveritySevere, -10},
		{model.SignalNavigation, model.ActionQuestionNavigation, model.SeverityNeutral, 0},
		{model.SignalWarningAck, model.ActionTimeWarningAck, model.SeverityNeutral, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			m := NewIntegrityMonitor()
			logged, _ := m.Observe(sigAt(tt.kind, time.Now()))
			if len(logged) != 1 {
				t.Fatalf("logged %d actions, want 1", len(logged))
			}
			a := logged[0]
			if a.Type != tt.action {
				t.Errorf("type = %q, want %q", a.Type, tt.action)
			}
			if a.Severity != tt.severity {
				t.Errorf("severity = %q, want %q", a.Severity, tt.severity)
			}
			if a.Points != tt.points {
				t.Errorf("points = %d, want %d", a.Points, tt.points)
			}
		})
	}
}

func TestTabSwitchEscalation(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		logged, _ := m.Observe(sigAt(model.SignalTabHidden, at.Add(time.Duration(i)*10*time.Second)))
		if len(logged) != 1 {
			t.Fatalf("switch %d: logged %d actions, want 1", i+1, len(logged))
		}
	}

	// The fourth switch crosses the threshold: base action plus escalation.
	logged, _ := m.Observe(sigAt(model.SignalTabHidden, at.Add(40*time.Second)))
	if len(logged) != 2 {
		t.Fatalf("fourth switch logged %d actions, want 2", len(logged))
	}
	if logged[0].Type != model.ActionTabSwitch {
		t.Errorf("first = %q, want tab_switch", logged[0].Type)
	}
	if logged[1].Type != model.ActionMultipleTabSwitches {
		t.Errorf("second = %q, want multiple_tab_switches", logged[1].Type)
	}

	// Further switches keep logging the base action only.
	logged, _ = m.Observe(sigAt(model.SignalTabHidden, at.Add(50*time.Second)))
	if len(logged) != 1 || logged[0].Type != model.ActionTabSwitch {
		t.Errorf("fifth switch logged %v", logged)
	}

	if m.TabSwitchCount() != 5 {
		t.Errorf("TabSwitchCount = %d, want 5", m.TabSwitchCount())
	}
}

func TestExtendedAbsence(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("long absence logged", func(t *testing.T) {
		m := NewIntegrityMonitor()
		m.Observe(sigAt(model.SignalFocusLost, at))
		logged, _ := m.Observe(sigAt(model.SignalFocusGained, at.Add(45*time.Second)))
		if len(logged) != 1 || logged[0].Type != model.ActionExtendedAbsence {
			t.Errorf("logged %v, want extended_absence", logged)
		}
	})

	t.Run("short absence not logged", func(t *testing.T) {
		m := NewIntegrityMonitor()
		m.Observe(sigAt(model.SignalFocusLost, at))
		logged, _ := m.Observe(sigAt(model.SignalFocusGained, at.Add(5*time.Second)))
		if len(logged) != 0 {
			t.Errorf("logged %v, want nothing", logged)
		}
	})
}

func TestFocusedAnsweringStreak(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		logged, _ := m.Observe(sigAt(model.SignalAnswerSaved, at.Add(time.Duration(i)*time.Minute)))
		if len(logged) != 1 || logged[0].Type != model.ActionAnswerChange {
			t.Fatalf("save %d logged %v", i+1, logged)
		}
	}

	logged, _ := m.Observe(sigAt(model.SignalAnswerSaved, at.Add(5*time.Minute)))
	if len(logged) != 2 {
		t.Fatalf("fifth save logged %d actions, want answer change plus focused answering", len(logged))
	}
	if logged[1].Type != model.ActionFocusedAnswering {
		t.Errorf("second = %q, want focused_answering", logged[1].Type)
	}
}

func TestViolationResetsAnswerStreak(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		m.Observe(sigAt(model.SignalAnswerSaved, at.Add(time.Duration(i)*time.Minute)))
	}
	m.Observe(sigAt(model.SignalCopy, at.Add(4*time.Minute)))

	logged, _ := m.Observe(sigAt(model.SignalAnswerSaved, at.Add(5*time.Minute)))
	for _, a := range logged {
		if a.Type == model.ActionFocusedAnswering {
			t.Error("streak should have been reset by the violation")
		}
	}
}

func TestSuspiciousPatternFiresOnce(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	patterns := 0
	// Seven violations inside one minute; the pattern flag must appear
	// exactly once.
	for i := 0; i < 7; i++ {
		logged, _ := m.Observe(sigAt(model.SignalCopy, at.Add(time.Duration(i)*5*time.Second)))
		for _, a := range logged {
			if a.Type == model.ActionSuspiciousPattern {
				patterns++
			}
		}
	}
	if patterns != 1 {
		t.Errorf("suspicious pattern logged %d times, want 1", patterns)
	}
}

func TestSpreadViolationsDoNotFlagPattern(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		logged, _ := m.Observe(sigAt(model.SignalCopy, at.Add(time.Duration(i)*2*time.Minute)))
		for _, a := range logged {
			if a.Type == model.ActionSuspiciousPattern {
				t.Fatal("pattern flagged for violations spread over time")
			}
		}
	}
}

func TestFullscreenRedirective(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	_, dir := m.Observe(sigAt(model.SignalFullscreenExit, at))
	if !dir.RequestFullscreen {
		t.Error("expected fullscreen re-request after exit")
	}

	// Re-entry is not scored and produces no directive.
	logged, dir := m.Observe(sigAt(model.SignalFullscreenEnter, at.Add(time.Second)))
	if len(logged) != 0 {
		t.Errorf("re-entry logged %v", logged)
	}
	if dir.RequestFullscreen {
		t.Error("re-entry should not request fullscreen")
	}

	// A second exit earns its own single re-request.
	_, dir = m.Observe(sigAt(model.SignalFullscreenExit, at.Add(2*time.Second)))
	if !dir.RequestFullscreen {
		t.Error("expected re-request after second exit")
	}
}

func TestBurstsLogEveryDiscreteSignal(t *testing.T) {
	m := NewIntegrityMonitor()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	// Rapid focus flicker: no deduplication, one action per signal.
	for i := 0; i < 10; i++ {
		m.Observe(sigAt(model.SignalFocusLost, at.Add(time.Duration(i)*100*time.Millisecond)))
	}
	if got := len(m.Log()); got != 10 {
		t.Errorf("logged %d actions, want 10", got)
	}
}

func TestStopAppendsNoViolations(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("clean session", func(t *testing.T) {
		m := NewIntegrityMonitor()
		m.Observe(sigAt(model.SignalAnswerSaved, at))
		extra := m.Stop(at.Add(time.Hour))
		if len(extra) != 1 || extra[0].Type != model.ActionNoViolations {
			t.Errorf("Stop returned %v, want no_violations", extra)
		}
		// Stop is idempotent and the log is frozen.
		if again := m.Stop(at.Add(time.Hour)); again != nil {
			t.Errorf("second Stop returned %v", again)
		}
		if logged, _ := m.Observe(sigAt(model.SignalCopy, at.Add(2*time.Hour))); logged != nil {
			t.Errorf("Observe after Stop logged %v", logged)
		}
	})

	t.Run("session with violations", func(t *testing.T) {
		m := NewIntegrityMonitor()
		m.Observe(sigAt(model.SignalCopy, at))
		if extra := m.Stop(at.Add(time.Hour)); extra != nil {
			t.Errorf("Stop returned %v for a dirty session", extra)
		}
	})
}

func TestRestoreContinuesCounters(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	first := NewIntegrityMonitor()
	for i := 0; i < 3; i++ {
		first.Observe(sigAt(model.SignalTabHidden, at.Add(time.Duration(i)*time.Second)))
	}

	resumed := NewIntegrityMonitor()
	resumed.Restore(first.Log())
	logged, _ := resumed.Observe(sigAt(model.SignalTabHidden, at.Add(time.Minute)))
	if len(logged) != 2 || logged[1].Type != model.ActionMultipleTabSwitches {
		t.Errorf("resumed monitor lost the tab switch count: %v", logged)
	}
}
