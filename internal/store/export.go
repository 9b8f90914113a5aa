package store

import (
	"encoding/csv"
	"fmt"
	"io"
)

var exportHeader = []string{
	"Name", "Class", "Department", "Subject", "Score", "Time",
	"Correct", "Wrong", "Behavior", "Violations", "Date",
}

// ExportResultsCSV writes results matching the filter as CSV, one row
// per finished attempt, newest first.
func (s *Store) ExportResultsCSV(w io.Writer, f ResultFilter) error {
	results, err := s.ListResults(f)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range results {
		wrong := r.TotalQuestions - r.Score
		row := []string{
			r.Student.Name,
			r.Student.Class,
			r.Student.Department,
			r.Student.Subject,
			fmt.Sprintf("%d/%d (%.0f%%)", r.Score, r.TotalQuestions, r.Percentage()),
			fmt.Sprintf("%dm %02ds", r.TimeTakenSeconds/60, r.TimeTakenSeconds%60),
			fmt.Sprintf("%d", r.Score),
			fmt.Sprintf("%d", wrong),
			string(r.Behavior.Rating),
			fmt.Sprintf("%d", r.Behavior.ViolationCount),
			r.SubmittedAt.Format("2006-01-02 15:04"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
