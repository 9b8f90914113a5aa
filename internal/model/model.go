package model

import "time"

// SessionPhase represents where a session is in its lifecycle.
type SessionPhase string

const (
	PhaseIdle       SessionPhase = "idle"
	PhaseBriefed    SessionPhase = "briefed"
	PhaseInProgress SessionPhase = "in_progress"
	PhaseSubmitted  SessionPhase = "submitted"
)

// StudentInfo identifies the student taking an exam.
// Department is required only for senior (SS) classes.
type StudentInfo struct {
	Name       string `json:"name"`
	Class      string `json:"class"`
	Department string `json:"department,omitempty"`
	Subject    string `json:"subject"`
}

// QuestionType represents the format of a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// Question is one item of an exam paper. CorrectAnswer is a letter code
// for choice types ("A".."D", "True"/"False") and free text for short
// answers, compared exactly and case-sensitively.
type Question struct {
	ID            int64        `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Class         string       `json:"class"`
	Department    string       `json:"department,omitempty"`
	Subject       string       `json:"subject"`
}

// SignalKind is a raw environment signal reported by the exam client.
type SignalKind string

const (
	SignalFocusLost       SignalKind = "focus_lost"
	SignalFocusGained     SignalKind = "focus_gained"
	SignalTabHidden       SignalKind = "tab_hidden"
	SignalFullscreenExit  SignalKind = "fullscreen_exit"
	SignalFullscreenEnter SignalKind = "fullscreen_enter"
	SignalCopy            SignalKind = "copy"
	SignalPaste           SignalKind = "paste"
	SignalRightClick      SignalKind = "right_click"
	SignalKeyCombination  SignalKind = "key_combination"
	SignalDevTools        SignalKind = "devtools"
	SignalAnswerSaved     SignalKind = "answer_saved"
	SignalNavigation      SignalKind = "navigation"
	SignalWarningAck      SignalKind = "warning_ack"
)

// EnvironmentSignal is one inbound message on the monitoring boundary.
type EnvironmentSignal struct {
	Kind   SignalKind `json:"kind"`
	At     time.Time  `json:"at"`
	Detail string     `json:"detail,omitempty"`
}

// ActionType classifies a logged student action.
type ActionType string

const (
	// Positive actions.
	ActionFocusedAnswering ActionType = "focused_answering"
	ActionQuickResponse    ActionType = "quick_response"
	ActionConsistentPace   ActionType = "consistent_pace"
	ActionNoViolations     ActionType = "no_violations"

	// Neutral actions.
	ActionQuestionNavigation ActionType = "question_navigation"
	ActionAnswerChange       ActionType = "answer_change"
	ActionTimeWarningAck     ActionType = "time_warning_acknowledged"

	// Suspicious actions.
	ActionTabSwitch      ActionType = "tab_switch"
	ActionWindowBlur     ActionType = "window_blur"
	ActionRightClick     ActionType = "right_click_attempt"
	ActionCopyAttempt    ActionType = "copy_attempt"
	ActionPasteAttempt   ActionType = "paste_attempt"
	ActionKeyCombination ActionType = "key_combination"
	ActionFullscreenExit ActionType = "fullscreen_exit"

	// Severe violations.
	ActionMultipleTabSwitches ActionType = "multiple_tab_switches"
	ActionExtendedAbsence     ActionType = "extended_absence"
	ActionDeveloperTools      ActionType = "developer_tools"
	ActionSuspiciousPattern   ActionType = "suspicious_pattern"
)

// Severity bands action types for violation counting.
type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityNeutral  Severity = "neutral"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// StudentAction is one classified, scored entry in the session log.
// Points are assigned from the score table at creation time and never
// recomputed afterwards.
type StudentAction struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Type      ActionType `json:"type"`
	Severity  Severity   `json:"severity"`
	Points    int        `json:"points"`
	Details   string     `json:"details"`
}

// BehaviorRating is the categorical trust verdict for a session.
type BehaviorRating string

const (
	RatingExcellent  BehaviorRating = "excellent"
	RatingGood       BehaviorRating = "good"
	RatingFair       BehaviorRating = "fair"
	RatingPoor       BehaviorRating = "poor"
	RatingSuspicious BehaviorRating = "suspicious"
)

// RiskLevel is the coarse triage signal derived alongside the rating.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// BehaviorAnalysis is a pure projection of the frozen action log.
type BehaviorAnalysis struct {
	Rating          BehaviorRating `json:"rating"`
	TotalPoints     int            `json:"total_points"`
	ViolationCount  int            `json:"violation_count"`
	PositiveActions int            `json:"positive_actions"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
}

// ExamResult is the immutable record of one finished attempt.
type ExamResult struct {
	ID               int64            `json:"id"`
	SessionID        string           `json:"session_id"`
	Student          StudentInfo      `json:"student"`
	Answers          map[int64]string `json:"answers"`
	Score            int              `json:"score"`
	TotalQuestions   int              `json:"total_questions"`
	TimeTakenSeconds int              `json:"time_taken_seconds"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	TabSwitchCount   int              `json:"tab_switch_count"`
	Behavior         BehaviorAnalysis `json:"behavior"`
	Actions          []StudentAction  `json:"actions"`
}

// Percentage returns the score as a percentage of total questions.
func (r ExamResult) Percentage() float64 {
	if r.TotalQuestions == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.TotalQuestions) * 100
}

// GradeLetter maps the percentage to the A-F banding used on reports.
func (r ExamResult) GradeLetter() string {
	p := r.Percentage()
	switch {
	case p >= 90:
		return "A"
	case p >= 80:
		return "B"
	case p >= 70:
		return "C"
	case p >= 60:
		return "D"
	default:
		return "F"
	}
}

// SessionState is the persisted snapshot of a running session. Answers
// and actions are written on every mutation so a reload can resume;
// StartedAt lets remaining time be recomputed from the wall clock
// instead of a possibly stale countdown value.
type SessionState struct {
	ID              string
	Student         StudentInfo
	Phase           SessionPhase
	QuestionIDs     []int64
	Answers         map[int64]string
	Actions         []StudentAction
	StartedAt       time.Time
	DurationSeconds int
}

// ExamConfig holds runtime exam parameters set via CLI flags.
type ExamConfig struct {
	DurationSeconds int  // per-paper time limit
	NumQuestions    int  // 0 means all available
	Shuffle         bool // randomize question order
	TeacherClicks   int  // logo clicks required before the key prompt
}
