package session

// AnswerStore holds the question-id → answer map for a running session.
// Values are overwritten on change; no history is kept beyond the action
// log. Not safe for concurrent use; the controller serializes access.
type AnswerStore struct {
	answers map[int64]string
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[int64]string)}
}

// Restore replaces the contents with a persisted answer map.
func (s *AnswerStore) Restore(answers map[int64]string) {
	s.answers = make(map[int64]string, len(answers))
	for id, v := range answers {
		s.answers[id] = v
	}
}

// Set records an answer for a question.
func (s *AnswerStore) Set(questionID int64, value string) {
	s.answers[questionID] = value
}

// Get returns the answer for a question and whether one exists.
func (s *AnswerStore) Get(questionID int64) (string, bool) {
	v, ok := s.answers[questionID]
	return v, ok
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int { return len(s.answers) }

// Snapshot returns a copy of the answer map.
func (s *AnswerStore) Snapshot() map[int64]string {
	out := make(map[int64]string, len(s.answers))
	for id, v := range s.answers {
		out[id] = v
	}
	return out
}
