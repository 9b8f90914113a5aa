package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// handleTeacherUnlock exchanges the hidden-gesture click count and the
// access key for a dashboard token. Both checks must pass; the click
// requirement keeps the dashboard invisible to students who stumble on
// the endpoint, the key is the actual credential.
func (h *Handler) handleTeacherUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Clicks int    `json:"clicks"`
		Key    string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Clicks < h.config.TeacherClicks {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "access denied"})
		return
	}

	ok, err := h.store.VerifyTeacherKey(req.Key)
	if err != nil {
		slog.Error("teacher key verification failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		slog.Warn("teacher unlock rejected", "remote", r.RemoteAddr)
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "access denied"})
		return
	}

	token, err := h.store.CreateAuthSession()
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleTeacherLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		_ = h.store.DeleteAuthSession(token)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// requireTeacher is middleware that checks for a valid dashboard token.
func (h *Handler) requireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
			return
		}
		ok, err := h.store.ValidAuthSession(token)
		if err != nil {
			slog.Error("failed to check auth session", "error", err)
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if !ok {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
