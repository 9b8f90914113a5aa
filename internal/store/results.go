package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/invigilator/internal/model"
)

// AppendResult inserts a finished attempt. Results are append-only;
// nothing updates or deletes them.
func (s *Store) AppendResult(r model.ExamResult) (int64, error) {
	behavior, err := json.Marshal(r.Behavior)
	if err != nil {
		return 0, fmt.Errorf("marshal behavior: %w", err)
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return 0, fmt.Errorf("marshal actions: %w", err)
	}
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return 0, fmt.Errorf("marshal answers: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO exam_results
			(session_id, student_name, class, department, subject, score, total_questions,
			 time_taken_seconds, submitted_at, tab_switch_count, behavior_rating, behavior, actions, answers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Student.Name, r.Student.Class, r.Student.Department, r.Student.Subject,
		r.Score, r.TotalQuestions, r.TimeTakenSeconds, r.SubmittedAt, r.TabSwitchCount,
		r.Behavior.Rating, string(behavior), string(actions), string(answers),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const resultColumns = `id, session_id, student_name, class, department, subject, score,
	total_questions, time_taken_seconds, submitted_at, tab_switch_count, behavior, actions, answers`

func scanResult(row interface{ Scan(...any) error }) (model.ExamResult, error) {
	var r model.ExamResult
	var behavior, actions, answers string
	err := row.Scan(&r.ID, &r.SessionID, &r.Student.Name, &r.Student.Class, &r.Student.Department,
		&r.Student.Subject, &r.Score, &r.TotalQuestions, &r.TimeTakenSeconds, &r.SubmittedAt,
		&r.TabSwitchCount, &behavior, &actions, &answers)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(behavior), &r.Behavior); err != nil {
		return r, fmt.Errorf("unmarshal behavior for result %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &r.Actions); err != nil {
		return r, fmt.Errorf("unmarshal actions for result %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return r, fmt.Errorf("unmarshal answers for result %d: %w", r.ID, err)
	}
	return r, nil
}

// GetResult returns one result by ID, or nil if not found.
func (s *Store) GetResult(id int64) (*model.ExamResult, error) {
	row := s.db.QueryRow(`SELECT `+resultColumns+` FROM exam_results WHERE id = ?`, id)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResultFilter narrows result listings. Zero values mean no filtering
// on that field.
type ResultFilter struct {
	Class      string
	Department string
	Subject    string
	Rating     string
	From       time.Time
	To         time.Time
}

// ListResults returns results matching the filter, newest first.
func (s *Store) ListResults(f ResultFilter) ([]model.ExamResult, error) {
	query := `SELECT ` + resultColumns + ` FROM exam_results WHERE 1=1`
	var args []any
	if f.Class != "" {
		query += ` AND class = ?`
		args = append(args, f.Class)
	}
	if f.Department != "" {
		query += ` AND department = ?`
		args = append(args, f.Department)
	}
	if f.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, f.Subject)
	}
	if f.Rating != "" {
		query += ` AND behavior_rating = ?`
		args = append(args, f.Rating)
	}
	if !f.From.IsZero() {
		query += ` AND submitted_at >= ?`
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		query += ` AND submitted_at <= ?`
		args = append(args, f.To)
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ExamResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResultStats summarizes results for the dashboard header.
type ResultStats struct {
	TotalExams        int            `json:"total_exams"`
	AveragePercentage float64        `json:"average_percentage"`
	CleanSessions     int            `json:"clean_sessions"`
	FlaggedSessions   int            `json:"flagged_sessions"`
	RatingCounts      map[string]int `json:"rating_counts"`
}

// Stats computes dashboard statistics over results matching the filter.
// A session is clean when it has zero violations; flagged means a poor
// or suspicious rating.
func (s *Store) Stats(f ResultFilter) (ResultStats, error) {
	stats := ResultStats{RatingCounts: make(map[string]int)}
	results, err := s.ListResults(f)
	if err != nil {
		return stats, err
	}

	var pctSum float64
	for _, r := range results {
		stats.TotalExams++
		pctSum += r.Percentage()
		stats.RatingCounts[string(r.Behavior.Rating)]++
		if r.Behavior.ViolationCount == 0 {
			stats.CleanSessions++
		}
		if r.Behavior.Rating == model.RatingPoor || r.Behavior.Rating == model.RatingSuspicious {
			stats.FlaggedSessions++
		}
	}
	if stats.TotalExams > 0 {
		stats.AveragePercentage = pctSum / float64(stats.TotalExams)
	}
	return stats, nil
}
