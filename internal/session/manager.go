package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/invigilator/internal/model"
)

// ErrSessionNotFound means no live or persisted session has the given id.
var ErrSessionNotFound = errors.New("session not found")

// QuestionBank supplies exam papers. The returned sequence may be shorter
// than the requested count if the pool is insufficient; that is a
// documented fallback, not an error.
type QuestionBank interface {
	PaperFor(info model.StudentInfo, count int, shuffle bool) ([]model.Question, error)
	QuestionsByID(ids []int64) ([]model.Question, error)
}

// Manager owns the live session controllers and drives their clocks.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller

	bank    QuestionBank
	repo    Repository
	results ResultAppender
	cfg     model.ExamConfig
	now     func() time.Time
}

// NewManager creates a session manager. A nil now falls back to time.Now.
func NewManager(bank QuestionBank, repo Repository, results ResultAppender, cfg model.ExamConfig, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Controller),
		bank:     bank,
		repo:     repo,
		results:  results,
		cfg:      cfg,
		now:      now,
	}
}

// Create captures student info and returns a new Briefed session.
func (m *Manager) Create(info model.StudentInfo) (*Controller, error) {
	c := NewController(uuid.NewString(), m.cfg.DurationSeconds, m.repo, m.results, m.now)
	if err := c.Brief(info); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[c.ID()] = c
	m.mu.Unlock()
	return c, nil
}

// Begin selects a paper for the session's student and starts the attempt.
func (m *Manager) Begin(id string) (*Controller, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	questions, err := m.bank.PaperFor(c.Student(), m.cfg.NumQuestions, m.cfg.Shuffle)
	if err != nil {
		return nil, fmt.Errorf("select paper: %w", err)
	}
	if err := c.Begin(questions); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a live controller, resuming it from persisted state when
// the process restarted mid-attempt.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	state, err := m.repo.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}

	questions, err := m.bank.QuestionsByID(state.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("restore paper: %w", err)
	}

	c := Resume(*state, questions, m.repo, m.results, m.now)
	slog.Info("resumed session from persisted state",
		"session_id", id, "phase", state.Phase, "answers", len(state.Answers))

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = c
	return c, nil
}

// Run ticks all live sessions once per interval until ctx is canceled.
// Timer correctness does not depend on the interval; ticks only bound how
// late an auto-submit can happen.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.TickAll()
		}
	}
}

// TickAll polls every live session's clock. Submitted controllers stay
// registered so a manual submit racing an expiry still observes the
// terminal state instead of a missing session.
func (m *Manager) TickAll() {
	m.mu.Lock()
	live := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		live = append(live, c)
	}
	m.mu.Unlock()

	for _, c := range live {
		c.Tick()
	}
}
