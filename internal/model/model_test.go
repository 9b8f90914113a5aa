package model

import "testing"

func TestGradeLetterBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		score int
		total int
		want  string
	}{
		{"exactly 90 percent", 9, 10, "A"},
		{"just below 90", 89, 100, "B"},
		{"exactly 80 percent", 8, 10, "B"},
		{"just below 80", 79, 100, "C"},
		{"exactly 70 percent", 7, 10, "C"},
		{"just below 70", 69, 100, "D"},
		{"exactly 60 percent", 6, 10, "D"},
		{"just below 60", 59, 100, "F"},
		{"half marks", 5, 10, "F"},
		{"zero score", 0, 10, "F"},
		{"full marks", 10, 10, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ExamResult{Score: tt.score, TotalQuestions: tt.total}
			if got := r.GradeLetter(); got != tt.want {
				t.Errorf("GradeLetter(%d/%d) = %q, want %q", tt.score, tt.total, got, tt.want)
			}
		})
	}
}

func TestPercentageWithNoQuestions(t *testing.T) {
	r := ExamResult{Score: 0, TotalQuestions: 0}
	if got := r.Percentage(); got != 0 {
		t.Errorf("Percentage = %f, want 0", got)
	}
	if got := r.GradeLetter(); got != "F" {
		t.Errorf("GradeLetter = %q, want F", got)
	}
}
