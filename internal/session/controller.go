package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/invigilator/internal/behavior"
	"github.com/pavelanni/invigilator/internal/grader"
	"github.com/pavelanni/invigilator/internal/model"
	"github.com/pavelanni/invigilator/internal/subjects"
)

var (
	// ErrMissingPrerequisite means required student info is absent; the
	// caller should return to the information capture step.
	ErrMissingPrerequisite = errors.New("missing student information")
	// ErrInvalidPhase means the operation is not valid in the session's
	// current lifecycle phase.
	ErrInvalidPhase = errors.New("operation not valid in current session phase")
	// ErrUnknownQuestion means an answer referenced a question that is
	// not part of the active paper.
	ErrUnknownQuestion = errors.New("answer references unknown question")
)

// Repository persists session state so a reload can resume a running
// attempt. Writes are best-effort: a failure must never block the
// session, which stays authoritative in memory.
type Repository interface {
	SaveState(model.SessionState) error
	SaveAnswer(sessionID string, questionID int64, value string) error
	AppendAction(sessionID string, a model.StudentAction) error
	Load(sessionID string) (*model.SessionState, error)
	Clear(sessionID string) error
}

// ResultAppender receives the finalized result exactly once per session.
type ResultAppender interface {
	AppendResult(model.ExamResult) (int64, error)
}

// Controller drives one student's attempt through
// Idle → Briefed → InProgress → Submitted. All mutating entry points are
// serialized on one mutex, so timer expiry and a manual submit can race
// without producing a second result.
type Controller struct {
	mu sync.Mutex

	id      string
	phase   model.SessionPhase
	student model.StudentInfo

	questions []model.Question
	byID      map[int64]model.Question

	answers *AnswerStore
	clock   *Timekeeper
	monitor *IntegrityMonitor

	repo    Repository
	results ResultAppender
	now     func() time.Time

	durationSeconds int
	warnings        []TimeEvent
	result          *model.ExamResult
}

// NewController creates an Idle session. A nil now falls back to time.Now.
func NewController(id string, durationSeconds int, repo Repository, results ResultAppender, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		id:              id,
		phase:           model.PhaseIdle,
		answers:         NewAnswerStore(),
		monitor:         NewIntegrityMonitor(),
		repo:            repo,
		results:         results,
		now:             now,
		durationSeconds: durationSeconds,
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() model.SessionPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Student returns the captured student info.
func (c *Controller) Student() model.StudentInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.student
}

// Brief validates student info and moves Idle → Briefed.
func (c *Controller) Brief(info model.StudentInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseIdle {
		return fmt.Errorf("%w: phase %s", ErrInvalidPhase, c.phase)
	}
	if err := validateStudentInfo(info); err != nil {
		return err
	}

	c.student = info
	c.phase = model.PhaseBriefed
	c.persistState()
	return nil
}

func validateStudentInfo(info model.StudentInfo) error {
	if info.Name == "" || info.Class == "" || info.Subject == "" {
		return ErrMissingPrerequisite
	}
	if !subjects.ValidClass(info.Class) {
		return fmt.Errorf("%w: unknown class %q", ErrMissingPrerequisite, info.Class)
	}
	if subjects.RequiresDepartment(info.Class) && info.Department == "" {
		return fmt.Errorf("%w: department required for class %q", ErrMissingPrerequisite, info.Class)
	}
	return nil
}

// Begin moves Briefed → InProgress with the given paper: it records the
// start instant, initializes the answer store, and arms the monitor and
// the clock.
func (c *Controller) Begin(questions []model.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseBriefed {
		return fmt.Errorf("%w: phase %s", ErrInvalidPhase, c.phase)
	}
	if len(questions) == 0 {
		return errors.New("no questions available for this paper")
	}

	c.setPaper(questions)
	c.clock = NewTimekeeper(time.Duration(c.durationSeconds)*time.Second, c.now(), c.now)
	c.phase = model.PhaseInProgress
	c.persistState()
	return nil
}

// Resume rebuilds an InProgress controller from persisted state after a
// reload or process restart. Remaining time is recomputed from the stored
// start instant, not from a stale countdown value.
func Resume(state model.SessionState, questions []model.Question, repo Repository, results ResultAppender, now func() time.Time) *Controller {
	c := NewController(state.ID, state.DurationSeconds, repo, results, now)
	c.student = state.Student
	c.phase = state.Phase
	c.setPaper(questions)
	c.answers.Restore(state.Answers)
	c.monitor.Restore(state.Actions)
	if state.Phase == model.PhaseInProgress {
		c.clock = NewTimekeeper(time.Duration(state.DurationSeconds)*time.Second, state.StartedAt, c.now)
	}
	return c
}

func (c *Controller) setPaper(questions []model.Question) {
	c.questions = questions
	c.byID = make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		c.byID[q.ID] = q
	}
}

// Questions returns the active paper.
func (c *Controller) Questions() []model.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questions
}

// SaveAnswer records an answer, persists it synchronously, and feeds the
// monitor an answer-saved signal. Answer keys stay a subset of the
// paper's question ids by construction.
func (c *Controller) SaveAnswer(questionID int64, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress {
		return fmt.Errorf("%w: phase %s", ErrInvalidPhase, c.phase)
	}
	if _, ok := c.byID[questionID]; !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownQuestion, questionID)
	}

	c.answers.Set(questionID, value)
	if err := c.repo.SaveAnswer(c.id, questionID, value); err != nil {
		slog.Warn("answer persistence failed, session stays in memory",
			"session_id", c.id, "question_id", questionID, "error", err)
	}

	c.observe(model.EnvironmentSignal{
		Kind:   model.SignalAnswerSaved,
		At:     c.now(),
		Detail: fmt.Sprintf("Answer saved for question %d", questionID),
	})
	return nil
}

// HandleSignal feeds one environment signal to the monitor. Signals are
// informational and never block progress: outside InProgress they are
// dropped. The returned directives tell the client what to do next
// (currently only the one-shot fullscreen re-request).
func (c *Controller) HandleSignal(sig model.EnvironmentSignal) (Directives, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress {
		return Directives{}, nil
	}
	if sig.At.IsZero() {
		sig.At = c.now()
	}
	return c.observe(sig), nil
}

// observe runs the monitor and persists every logged action. Caller must
// hold c.mu.
func (c *Controller) observe(sig model.EnvironmentSignal) Directives {
	logged, dir := c.monitor.Observe(sig)
	for _, a := range logged {
		if err := c.repo.AppendAction(c.id, a); err != nil {
			slog.Warn("action persistence failed, log stays in memory",
				"session_id", c.id, "action", a.Type, "error", err)
		}
	}
	return dir
}

// Tick polls the clock. Warnings are collected for the next state read;
// expiry funnels into finalize, so a racing manual submit and a timer
// tick still produce exactly one result.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress || c.clock == nil {
		return
	}
	for _, ev := range c.clock.Poll() {
		if ev == EventExpired {
			slog.Info("exam time expired, auto-submitting", "session_id", c.id)
			c.finalize()
			return
		}
		c.warnings = append(c.warnings, ev)
	}
}

// Submit is the explicit-confirmation path into finalize. Calling it
// after the session is submitted is a silent no-op that returns the
// already-created result.
func (c *Controller) Submit() (model.ExamResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case model.PhaseInProgress:
		c.finalize()
	case model.PhaseSubmitted:
		// Double submission: ignore.
	default:
		return model.ExamResult{}, fmt.Errorf("%w: phase %s", ErrInvalidPhase, c.phase)
	}
	return *c.result, nil
}

// finalize closes the session exactly once: stop the clock and the
// monitor, grade, score behavior, emit the result, and clear transient
// state. Caller must hold c.mu.
func (c *Controller) finalize() {
	if c.phase == model.PhaseSubmitted {
		return
	}

	now := c.now()
	for _, extra := range c.monitor.Stop(now) {
		if err := c.repo.AppendAction(c.id, extra); err != nil {
			slog.Warn("action persistence failed", "session_id", c.id, "error", err)
		}
	}

	answers := c.answers.Snapshot()
	for _, id := range grader.StrayAnswers(c.questions, answers) {
		slog.Warn("ignoring answer for question not in paper", "session_id", c.id, "question_id", id)
		delete(answers, id)
	}
	score := grader.Grade(c.questions, answers)

	actions := c.monitor.Log()
	analysis := behavior.Analyze(actions)

	elapsed := 0
	if c.clock != nil {
		elapsed = int(c.clock.Elapsed().Seconds())
		if elapsed > c.durationSeconds {
			elapsed = c.durationSeconds
		}
	}

	result := model.ExamResult{
		SessionID:        c.id,
		Student:          c.student,
		Answers:          answers,
		Score:            score,
		TotalQuestions:   len(c.questions),
		TimeTakenSeconds: elapsed,
		SubmittedAt:      now,
		TabSwitchCount:   c.monitor.TabSwitchCount(),
		Behavior:         analysis,
		Actions:          actions,
	}

	if id, err := c.results.AppendResult(result); err != nil {
		slog.Error("result persistence failed, keeping result in memory",
			"session_id", c.id, "error", err)
	} else {
		result.ID = id
	}

	if err := c.repo.Clear(c.id); err != nil {
		slog.Warn("failed to clear session state", "session_id", c.id, "error", err)
	}

	c.result = &result
	c.phase = model.PhaseSubmitted
}

// Result returns the finalized result, if any.
func (c *Controller) Result() *model.ExamResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// State is a read snapshot for the exam client.
type State struct {
	Phase            model.SessionPhase `json:"phase"`
	RemainingSeconds int                `json:"remaining_seconds"`
	Answers          map[int64]string   `json:"answers"`
	AnsweredCount    int                `json:"answered_count"`
	TotalQuestions   int                `json:"total_questions"`
	Warnings         []TimeEvent        `json:"warnings,omitempty"`
}

// Snapshot returns the client-facing view of the session and drains
// pending time warnings.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := 0
	if c.clock != nil && c.phase == model.PhaseInProgress {
		remaining = int(c.clock.Remaining().Seconds())
	}
	warnings := c.warnings
	c.warnings = nil

	return State{
		Phase:            c.phase,
		RemainingSeconds: remaining,
		Answers:          c.answers.Snapshot(),
		AnsweredCount:    c.answers.Len(),
		TotalQuestions:   len(c.questions),
		Warnings:         warnings,
	}
}

// persistState writes the scalar session slot. Caller must hold c.mu.
func (c *Controller) persistState() {
	ids := make([]int64, 0, len(c.questions))
	for _, q := range c.questions {
		ids = append(ids, q.ID)
	}
	started := time.Time{}
	if c.clock != nil {
		started = c.clock.Start()
	}
	state := model.SessionState{
		ID:              c.id,
		Student:         c.student,
		Phase:           c.phase,
		QuestionIDs:     ids,
		Answers:         c.answers.Snapshot(),
		Actions:         c.monitor.Log(),
		StartedAt:       started,
		DurationSeconds: c.durationSeconds,
	}
	if err := c.repo.SaveState(state); err != nil {
		slog.Warn("session state persistence failed", "session_id", c.id, "error", err)
	}
}
