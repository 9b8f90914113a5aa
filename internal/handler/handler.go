package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/invigilator/internal/model"
	"github.com/pavelanni/invigilator/internal/session"
	"github.com/pavelanni/invigilator/internal/store"
	"github.com/pavelanni/invigilator/internal/subjects"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	manager *session.Manager
	store   *store.Store
	config  model.ExamConfig
}

// New creates a new Handler.
func New(m *session.Manager, s *store.Store, cfg model.ExamConfig) *Handler {
	return &Handler{manager: m, store: s, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/subjects", h.handleSubjects)

	r.Post("/api/session", h.handleCreateSession)
	r.Post("/api/session/{sessionID}/start", h.handleStartExam)
	r.Get("/api/session/{sessionID}", h.handleSessionState)
	r.Put("/api/session/{sessionID}/answer", h.handleSaveAnswer)
	r.Post("/api/session/{sessionID}/signal", h.handleSignal)
	r.Post("/api/session/{sessionID}/submit", h.handleSubmit)

	r.Post("/api/teacher/unlock", h.handleTeacherUnlock)
	r.Group(func(r chi.Router) {
		r.Use(h.requireTeacher)
		r.Post("/api/teacher/logout", h.handleTeacherLogout)
		r.Get("/api/teacher/results", h.handleListResults)
		r.Get("/api/teacher/results/{resultID}", h.handleGetResult)
		r.Get("/api/teacher/stats", h.handleStats)
		r.Get("/api/teacher/export", h.handleExportCSV)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidPhase):
		status = http.StatusConflict
	case errors.Is(err, session.ErrMissingPrerequisite),
		errors.Is(err, session.ErrUnknownQuestion):
		status = http.StatusBadRequest
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// examRules are shown to the student on the briefing screen and restated
// in the start response.
var examRules = []string{
	"The exam is timed; it submits automatically when time runs out.",
	"Stay in fullscreen for the whole exam.",
	"Do not switch tabs or leave the exam window.",
	"Copying, pasting, and right-clicking are not allowed.",
	"Your answers are saved as you go; you can change them until you submit.",
	"All activity during the exam is recorded.",
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	class := r.URL.Query().Get("class")
	department := r.URL.Query().Get("department")
	if class == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "class is required"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"class":               class,
		"requires_department": subjects.RequiresDepartment(class),
		"subjects":            subjects.ForClass(class, department),
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var info model.StudentInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	c, err := h.manager.Create(info)
	if err != nil {
		respondError(w, err)
		return
	}
	slog.Info("session created", "session_id", c.ID(), "student", info.Name,
		"class", info.Class, "subject", info.Subject)

	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id":       c.ID(),
		"phase":            c.Phase(),
		"duration_seconds": h.config.DurationSeconds,
		"rules":            examRules,
	})
}

// questionView is a question as the student sees it, without the answer
// key.
type questionView struct {
	ID      int64              `json:"id"`
	Type    model.QuestionType `json:"type"`
	Prompt  string             `json:"prompt"`
	Options []string           `json:"options,omitempty"`
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Begin(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}

	questions := c.Questions()
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionView{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Options: q.Options})
	}
	slog.Info("exam started", "session_id", c.ID(), "questions", len(views))

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":       c.ID(),
		"phase":            c.Phase(),
		"duration_seconds": h.config.DurationSeconds,
		"questions":        views,
	})
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}

	snap := c.Snapshot()
	resp := map[string]any{
		"session_id": c.ID(),
		"state":      snap,
	}
	if snap.Phase == model.PhaseInProgress {
		questions := c.Questions()
		views := make([]questionView, 0, len(questions))
		for _, q := range questions {
			views = append(views, questionView{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Options: q.Options})
		}
		resp["questions"] = views
	}
	if res := c.Result(); res != nil {
		resp["result"] = studentResultView(*res)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		QuestionID int64  `json:"question_id"`
		Value      string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := c.SaveAnswer(req.QuestionID, req.Value); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleSignal(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}

	var sig model.EnvironmentSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	dir, err := c.HandleSignal(sig)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dir)
}

// studentResultView is the result as shown to the student right after
// submission: score and time, without the full action log.
func studentResultView(r model.ExamResult) map[string]any {
	return map[string]any{
		"score":              r.Score,
		"total_questions":    r.TotalQuestions,
		"percentage":         r.Percentage(),
		"grade":              r.GradeLetter(),
		"time_taken_seconds": r.TimeTakenSeconds,
		"submitted_at":       r.SubmittedAt,
		"behavior_rating":    r.Behavior.Rating,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}

	res, err := c.Submit()
	if err != nil {
		respondError(w, err)
		return
	}
	slog.Info("exam submitted", "session_id", c.ID(),
		"score", res.Score, "total", res.TotalQuestions, "rating", res.Behavior.Rating)

	respondJSON(w, http.StatusOK, studentResultView(res))
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	results, err := h.store.ListResults(filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "resultID"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid result id"})
		return
	}
	res, err := h.store.GetResult(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if res == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "result not found"})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	stats, err := h.store.Stats(filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="exam_results.csv"`)
	if err := h.store.ExportResultsCSV(w, filter); err != nil {
		slog.Error("csv export failed", "error", err)
	}
}

func filterFromQuery(r *http.Request) (store.ResultFilter, error) {
	q := r.URL.Query()
	f := store.ResultFilter{
		Class:      q.Get("class"),
		Department: q.Get("department"),
		Subject:    q.Get("subject"),
		Rating:     q.Get("rating"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("invalid from date, want YYYY-MM-DD")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("invalid to date, want YYYY-MM-DD")
		}
		// Inclusive end of day.
		f.To = t.Add(24*time.Hour - time.Second)
	}
	return f, nil
}
