// Package behavior scores integrity-relevant student actions and derives
// a trust rating for a finished exam session.
package behavior

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/invigilator/internal/model"
)

// ActionScores is the fixed type→points table. Points are looked up once
// at action creation and never recomputed for historic entries.
var ActionScores = map[model.ActionType]int{
	model.ActionFocusedAnswering: 2,
	model.ActionQuickResponse:    1,
	model.ActionConsistentPace:   1,
	model.ActionNoViolations:     3,

	model.ActionQuestionNavigation: 0,
	model.ActionAnswerChange:       0,
	model.ActionTimeWarningAck:     0,

	model.ActionTabSwitch:      -2,
	model.ActionWindowBlur:     -1,
	model.ActionRightClick:     -1,
	model.ActionCopyAttempt:    -3,
	model.ActionPasteAttempt:   -3,
	model.ActionKeyCombination: -2,
	model.ActionFullscreenExit: -2,

	model.ActionMultipleTabSwitches: -5,
	model.ActionExtendedAbsence:     -4,
	model.ActionDeveloperTools:      -10,
	model.ActionSuspiciousPattern:   -8,
}

var actionSeverities = map[model.ActionType]model.Severity{
	model.ActionFocusedAnswering: model.SeverityPositive,
	model.ActionQuickResponse:    model.SeverityPositive,
	model.ActionConsistentPace:   model.SeverityPositive,
	model.ActionNoViolations:     model.SeverityPositive,

	model.ActionQuestionNavigation: model.SeverityNeutral,
	model.ActionAnswerChange:       model.SeverityNeutral,
	model.ActionTimeWarningAck:     model.SeverityNeutral,

	model.ActionTabSwitch:      model.SeverityModerate,
	model.ActionWindowBlur:     model.SeverityMinor,
	model.ActionRightClick:     model.SeverityMinor,
	model.ActionCopyAttempt:    model.SeverityModerate,
	model.ActionPasteAttempt:   model.SeverityModerate,
	model.ActionKeyCombination: model.SeverityModerate,
	model.ActionFullscreenExit: model.SeverityModerate,

	model.ActionMultipleTabSwitches: model.SeveritySevere,
	model.ActionExtendedAbsence:     model.SeveritySevere,
	model.ActionDeveloperTools:      model.SeveritySevere,
	model.ActionSuspiciousPattern:   model.SeveritySevere,
}

// SeverityOf returns the severity band for an action type.
func SeverityOf(t model.ActionType) model.Severity {
	return actionSeverities[t]
}

// IsViolation reports whether a severity counts toward the violation total.
func IsViolation(s model.Severity) bool {
	return s == model.SeverityModerate || s == model.SeveritySevere
}

// NewAction builds a StudentAction with its points and severity assigned
// from the fixed tables.
func NewAction(t model.ActionType, at time.Time, details string) model.StudentAction {
	return model.StudentAction{
		ID:        uuid.NewString(),
		Timestamp: at,
		Type:      t,
		Severity:  actionSeverities[t],
		Points:    ActionScores[t],
		Details:   details,
	}
}

// Analyze derives a BehaviorAnalysis from a frozen action log. It is a
// pure function: the same log always yields the same analysis.
func Analyze(actions []model.StudentAction) model.BehaviorAnalysis {
	var totalPoints, violations, positives int
	for _, a := range actions {
		totalPoints += a.Points
		if IsViolation(a.Severity) {
			violations++
		}
		if a.Severity == model.SeverityPositive {
			positives++
		}
	}

	var rating model.BehaviorRating
	var risk model.RiskLevel
	switch {
	case totalPoints >= 10 && violations == 0:
		rating, risk = model.RatingExcellent, model.RiskLow
	case totalPoints >= 5 && violations <= 1:
		rating, risk = model.RatingGood, model.RiskLow
	case totalPoints >= 0 && violations <= 3:
		rating, risk = model.RatingFair, model.RiskMedium
	case totalPoints >= -5 && violations <= 5:
		rating, risk = model.RatingPoor, model.RiskMedium
	default:
		rating, risk = model.RatingSuspicious, model.RiskHigh
	}

	return model.BehaviorAnalysis{
		Rating:          rating,
		TotalPoints:     totalPoints,
		ViolationCount:  violations,
		PositiveActions: positives,
		RiskLevel:       risk,
		Summary:         summary(rating, totalPoints, violations),
		Recommendations: recommendations(rating, actions),
	}
}

func summary(rating model.BehaviorRating, points, violations int) string {
	switch rating {
	case model.RatingExcellent:
		return fmt.Sprintf("Outstanding exam behavior with %d positive points and no violations detected.", points)
	case model.RatingGood:
		return fmt.Sprintf("Good exam conduct with %d points and minimal violations (%d).", points, violations)
	case model.RatingFair:
		return fmt.Sprintf("Average behavior with %d points and %d minor violations.", points, violations)
	case model.RatingPoor:
		return fmt.Sprintf("Below average conduct with %d points and %d violations requiring attention.", points, violations)
	case model.RatingSuspicious:
		return fmt.Sprintf("Highly suspicious behavior detected with %d points and %d serious violations.", points, violations)
	default:
		return "Behavior analysis unavailable."
	}
}

func recommendations(rating model.BehaviorRating, actions []model.StudentAction) []string {
	var recs []string
	switch rating {
	case model.RatingExcellent:
		recs = append(recs,
			"Maintain current focus and exam discipline",
			"Consider this student as a model for exam conduct")
	case model.RatingGood:
		recs = append(recs,
			"Good overall performance with room for minor improvements",
			"Continue monitoring for consistency")
	case model.RatingFair:
		recs = append(recs,
			"Provide additional guidance on exam protocols",
			"Monitor more closely in future exams")
	case model.RatingPoor:
		recs = append(recs,
			"Require exam conduct counseling before next exam",
			"Implement stricter monitoring protocols",
			"Consider seating arrangement changes")
	case model.RatingSuspicious:
		recs = append(recs,
			"Immediate review of exam session required",
			"Consider exam invalidation if violations are severe",
			"Mandatory academic integrity meeting",
			"Enhanced supervision for future exams")
	}

	var tabSwitches, clipboard int
	for _, a := range actions {
		switch a.Type {
		case model.ActionTabSwitch:
			tabSwitches++
		case model.ActionCopyAttempt, model.ActionPasteAttempt:
			clipboard++
		}
	}
	if tabSwitches > 3 {
		recs = append(recs, fmt.Sprintf("Excessive tab switching detected (%d times) - investigate potential cheating", tabSwitches))
	}
	if clipboard > 0 {
		recs = append(recs, "Copy/paste attempts detected - review exam content for potential academic dishonesty")
	}

	return recs
}
