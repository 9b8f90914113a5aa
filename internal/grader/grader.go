// Package grader scores a set of answers against an exam paper.
package grader

import "github.com/pavelanni/invigilator/internal/model"

// Grade returns the number of questions answered correctly. Comparison is
// exact and case-sensitive for every question type; missing answers count
// as incorrect. Percentage is left to the presentation layer.
func Grade(questions []model.Question, answers map[int64]string) int {
	score := 0
	for _, q := range questions {
		if answers[q.ID] == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// StrayAnswers returns answer keys that reference no question in the
// paper. Strays are ignored by Grade; callers log them for audit.
func StrayAnswers(questions []model.Question, answers map[int64]string) []int64 {
	known := make(map[int64]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	var strays []int64
	for id := range answers {
		if !known[id] {
			strays = append(strays, id)
		}
	}
	return strays
}
