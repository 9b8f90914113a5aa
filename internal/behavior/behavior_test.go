package behavior

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/invigilator/internal/model"
)

func actionsOf(types ...model.ActionType) []model.StudentAction {
	var actions []model.StudentAction
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, t := range types {
		actions = append(actions, NewAction(t, at.Add(time.Duration(i)*time.Second), ""))
	}
	return actions
}

func TestNewActionAssignsPointsAndSeverity(t *testing.T) {
	at := time.Now()
	a := NewAction(model.ActionCopyAttempt, at, "copy blocked")
	if a.Points != -3 {
		t.Errorf("expected -3 points, got %d", a.Points)
	}
	if a.Severity != model.SeverityModerate {
		t.Errorf("expected moderate severity, got %q", a.Severity)
	}
	if a.ID == "" {
		t.Error("expected non-empty action ID")
	}
	if !a.Timestamp.Equal(at) {
		t.Errorf("expected timestamp %v, got %v", at, a.Timestamp)
	}
}

func TestTotalPointsIsSumOfLog(t *testing.T) {
	actions := actionsOf(
		model.ActionTabSwitch,
		model.ActionCopyAttempt,
		model.ActionFocusedAnswering,
		model.ActionDeveloperTools,
		model.ActionAnswerChange,
	)
	want := 0
	for _, a := range actions {
		want += a.Points
	}
	got := Analyze(actions).TotalPoints
	if got != want {
		t.Errorf("TotalPoints = %d, want sum of log %d", got, want)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	actions := actionsOf(
		model.ActionTabSwitch,
		model.ActionWindowBlur,
		model.ActionFocusedAnswering,
		model.ActionCopyAttempt,
	)
	first := Analyze(actions)
	second := Analyze(actions)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Analyze not deterministic:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestRatingDecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		types      []model.ActionType
		rating     model.BehaviorRating
		risk       model.RiskLevel
		points     int
		violations int
	}{
		{
			name: "focused session is excellent",
			types: []model.ActionType{
				model.ActionFocusedAnswering, model.ActionFocusedAnswering,
				model.ActionFocusedAnswering, model.ActionFocusedAnswering,
				model.ActionFocusedAnswering, model.ActionFocusedAnswering,
				model.ActionNoViolations,
			},
			rating: model.RatingExcellent, risk: model.RiskLow,
			points: 15, violations: 0,
		},
		{
			name: "one violation with enough points is good",
			types: []model.ActionType{
				model.ActionFocusedAnswering, model.ActionFocusedAnswering,
				model.ActionFocusedAnswering, model.ActionFocusedAnswering,
				model.ActionCopyAttempt,
			},
			rating: model.RatingGood, risk: model.RiskLow,
			points: 5, violations: 1,
		},
		{
			name:   "empty log is fair",
			types:  nil,
			rating: model.RatingFair, risk: model.RiskMedium,
			points: 0, violations: 0,
		},
		{
			name:   "single copy attempt is poor",
			types:  []model.ActionType{model.ActionCopyAttempt},
			rating: model.RatingPoor, risk: model.RiskMedium,
			points: -3, violations: 1,
		},
		{
			name: "heavy switching is suspicious",
			types: []model.ActionType{
				model.ActionTabSwitch, model.ActionTabSwitch,
				model.ActionTabSwitch, model.ActionTabSwitch,
			},
			rating: model.RatingSuspicious, risk: model.RiskHigh,
			points: -8, violations: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(actionsOf(tt.types...))
			if got.Rating != tt.rating {
				t.Errorf("rating = %q, want %q", got.Rating, tt.rating)
			}
			if got.RiskLevel != tt.risk {
				t.Errorf("risk = %q, want %q", got.RiskLevel, tt.risk)
			}
			if got.TotalPoints != tt.points {
				t.Errorf("points = %d, want %d", got.TotalPoints, tt.points)
			}
			if got.ViolationCount != tt.violations {
				t.Errorf("violations = %d, want %d", got.ViolationCount, tt.violations)
			}
		})
	}
}

func TestRecommendationFlags(t *testing.T) {
	t.Run("excessive tab switching", func(t *testing.T) {
		got := Analyze(actionsOf(
			model.ActionTabSwitch, model.ActionTabSwitch,
			model.ActionTabSwitch, model.ActionTabSwitch,
		))
		if !hasRecommendation(got.Recommendations, "Excessive tab switching") {
			t.Errorf("missing excessive-switching flag in %v", got.Recommendations)
		}
	})

	t.Run("clipboard review", func(t *testing.T) {
		got := Analyze(actionsOf(model.ActionCopyAttempt))
		if !hasRecommendation(got.Recommendations, "academic dishonesty") {
			t.Errorf("missing academic-dishonesty flag in %v", got.Recommendations)
		}
	})

	t.Run("clean session has no flags", func(t *testing.T) {
		got := Analyze(actionsOf(model.ActionFocusedAnswering))
		if hasRecommendation(got.Recommendations, "Excessive tab switching") ||
			hasRecommendation(got.Recommendations, "academic dishonesty") {
			t.Errorf("unexpected flag in %v", got.Recommendations)
		}
	})
}

func hasRecommendation(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestSummaryMentionsPointsAndViolations(t *testing.T) {
	got := Analyze(actionsOf(model.ActionCopyAttempt))
	if !strings.Contains(got.Summary, "-3") {
		t.Errorf("summary %q does not mention point total", got.Summary)
	}
}

func TestScoreTableCoversAllSeverities(t *testing.T) {
	for typ := range ActionScores {
		if SeverityOf(typ) == "" {
			t.Errorf("type %q has points but no severity", typ)
		}
	}
	for typ := range actionSeverities {
		if _, ok := ActionScores[typ]; !ok {
			t.Errorf("type %q has severity but no points entry", typ)
		}
	}
}
