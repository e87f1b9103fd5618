package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready once the directory answers for the bot's own identity.
	if _, err := s.dir.Self(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "directory not reachable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Category handlers

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	infos, err := s.mgr.Infos(r.Context())
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list categories")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"categories": infos,
		"total":      len(infos),
	})
}

type categoryResponse struct {
	models.CategoryInfo
	Levels []levelResponse `json:"levels"`
}

type levelResponse struct {
	Number    int    `json:"number"`
	ChannelID string `json:"channel_id,omitempty"`
	RoleID    string `json:"role_id,omitempty"`
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.categoryFromURL(w, r)
	if !ok {
		return
	}

	numbers, err := s.mgr.Index().Levels(r.Context(), cat.Label)
	if err != nil {
		slog.Error("failed to list levels", "error", err, "category", cat.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list levels")
		return
	}

	resp := categoryResponse{
		CategoryInfo: models.CategoryInfo{ID: cat.ID, Label: cat.Label, LevelCount: len(numbers)},
	}
	for _, n := range numbers {
		lvl, err := s.mgr.Index().Level(r.Context(), cat, n)
		if err != nil {
			slog.Error("failed to resolve level", "error", err, "category", cat.ID, "level", n)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve level")
			return
		}
		lr := levelResponse{Number: n}
		if lvl.Channel != nil {
			lr.ChannelID = lvl.Channel.ID
		}
		if lvl.Role != nil {
			lr.RoleID = lvl.Role.ID
		}
		resp.Levels = append(resp.Levels, lr)
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.categoryFromURL(w, r)
	if !ok {
		return
	}

	entries, count, err := s.mgr.CategoryScores(r.Context(), cat)
	if err != nil {
		slog.Error("failed to compute leaderboard", "error", err, "category", cat.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to compute leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"category_id": cat.ID,
		"label":       cat.Label,
		"level_count": count,
		"entries":     entries,
	})
}

// categoryFromURL resolves the {id} route parameter; on failure the error
// response is already written.
func (s *Server) categoryFromURL(w http.ResponseWriter, r *http.Request) (models.Category, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "category id must be numeric")
		return models.Category{}, false
	}

	cat, err := s.mgr.Index().Category(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respondError(w, http.StatusNotFound, "category_not_found", "category not found")
			return models.Category{}, false
		}
		slog.Error("failed to resolve category", "error", err, "category", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve category")
		return models.Category{}, false
	}
	return cat, true
}
