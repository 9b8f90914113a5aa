package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/invigilator/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		prompt TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct_answer TEXT NOT NULL,
		class TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_state (
		id TEXT PRIMARY KEY,
		student_name TEXT NOT NULL,
		class TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		phase TEXT NOT NULL,
		question_ids TEXT NOT NULL DEFAULT '[]',
		started_at DATETIME,
		duration_seconds INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS session_answers (
		session_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (session_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS session_actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		action TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		student_name TEXT NOT NULL,
		class TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		score INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		time_taken_seconds INTEGER NOT NULL,
		submitted_at DATETIME NOT NULL,
		tab_switch_count INTEGER NOT NULL DEFAULT 0,
		behavior_rating TEXT NOT NULL,
		behavior TEXT NOT NULL,
		actions TEXT NOT NULL DEFAULT '[]',
		answers TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (type, prompt, options, correct_answer, class, department, subject)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.Type, q.Prompt, string(options), q.CorrectAnswer, q.Class, q.Department, q.Subject,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const questionColumns = `id, type, prompt, options, correct_answer, class, department, subject`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var options string
	err := row.Scan(&q.ID, &q.Type, &q.Prompt, &options, &q.CorrectAnswer, &q.Class, &q.Department, &q.Subject)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("unmarshal options for question %d: %w", q.ID, err)
	}
	return q, nil
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

// PaperFor selects the exam paper for a student: questions for their
// class and subject, with department-specific questions included only
// when they match. A count of 0 means the whole pool; a pool smaller
// than the requested count is served as-is.
func (s *Store) PaperFor(info model.StudentInfo, count int, shuffle bool) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions
		 WHERE class = ? AND subject = ? AND (department = '' OR department = ?)`
	if shuffle {
		query += ` ORDER BY RANDOM()`
	} else {
		query += ` ORDER BY id`
	}
	args := []any{info.Class, info.Subject, info.Department}
	if count > 0 {
		query += ` LIMIT ?`
		args = append(args, count)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionsByID returns questions in the order of the given ids. Ids
// that no longer exist are skipped.
func (s *Store) QuestionsByID(ids []int64) ([]model.Question, error) {
	byID := make(map[int64]model.Question, len(ids))
	for _, id := range ids {
		q, err := s.GetQuestion(id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		byID[id] = q
	}
	var questions []model.Question
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// ListSubjectsWithQuestions returns the distinct subjects that have at
// least one question for the given class.
func (s *Store) ListSubjectsWithQuestions(class string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT subject FROM questions WHERE class = ? ORDER BY subject`, class,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []string
	for rows.Next() {
		var subj string
		if err := rows.Scan(&subj); err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

// SaveState upserts the scalar slot for a running session.
func (s *Store) SaveState(state model.SessionState) error {
	ids, err := json.Marshal(state.QuestionIDs)
	if err != nil {
		return fmt.Errorf("marshal question ids: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO session_state (id, student_name, class, department, subject, phase, question_ids, started_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			student_name = excluded.student_name,
			class = excluded.class,
			department = excluded.department,
			subject = excluded.subject,
			phase = excluded.phase,
			question_ids = excluded.question_ids,
			started_at = excluded.started_at,
			duration_seconds = excluded.duration_seconds`,
		state.ID, state.Student.Name, state.Student.Class, state.Student.Department,
		state.Student.Subject, state.Phase, string(ids), state.StartedAt, state.DurationSeconds,
	)
	return err
}

// SaveAnswer upserts one answer; saving overwrites, it keeps no history.
func (s *Store) SaveAnswer(sessionID string, questionID int64, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_answers (session_id, question_id, value) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET value = excluded.value`,
		sessionID, questionID, value,
	)
	return err
}

// AppendAction appends one logged action to the session's running log.
func (s *Store) AppendAction(sessionID string, a model.StudentAction) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO session_actions (session_id, action) VALUES (?, ?)`,
		sessionID, string(payload),
	)
	return err
}

// Load reconstructs persisted session state, or returns nil if the
// session is unknown.
func (s *Store) Load(sessionID string) (*model.SessionState, error) {
	var state model.SessionState
	var ids string
	err := s.db.QueryRow(
		`SELECT id, student_name, class, department, subject, phase, question_ids, started_at, duration_seconds
		 FROM session_state WHERE id = ?`, sessionID,
	).Scan(&state.ID, &state.Student.Name, &state.Student.Class, &state.Student.Department,
		&state.Student.Subject, &state.Phase, &ids, &state.StartedAt, &state.DurationSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &state.QuestionIDs); err != nil {
		return nil, fmt.Errorf("unmarshal question ids: %w", err)
	}

	state.Answers = make(map[int64]string)
	rows, err := s.db.Query(
		`SELECT question_id, value FROM session_answers WHERE session_id = ?`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qid int64
		var value string
		if err := rows.Scan(&qid, &value); err != nil {
			return nil, err
		}
		state.Answers[qid] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	actionRows, err := s.db.Query(
		`SELECT action FROM session_actions WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer actionRows.Close()
	for actionRows.Next() {
		var payload string
		if err := actionRows.Scan(&payload); err != nil {
			return nil, err
		}
		var a model.StudentAction
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
		state.Actions = append(state.Actions, a)
	}
	if err := actionRows.Err(); err != nil {
		return nil, err
	}

	return &state, nil
}

// Clear removes all transient state for a finished session. The
// exam_results row is the only record that survives it.
func (s *Store) Clear(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM session_state WHERE id = ?`,
		`DELETE FROM session_answers WHERE session_id = ?`,
		`DELETE FROM session_actions WHERE session_id = ?`,
	} {
		if _, err := tx.Exec(q, sessionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
