package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/standing"
)

// StandingHandlers holds dependencies for user standing HTTP handlers.
type StandingHandlers struct {
	svc *standing.Service
}

// NewStandingHandlers creates a new StandingHandlers instance.
func NewStandingHandlers(svc *standing.Service) *StandingHandlers {
	return &StandingHandlers{svc: svc}
}

// extractUserID extracts the user ID from /users/{id}[/...].
func extractUserID(r *http.Request) (string, string) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if len(parts) == 0 {
		return "", ""
	}
	userID := parts[0]
	rest := ""
	if len(parts) > 1 {
		rest = parts[1]
	}
	return userID, rest
}

// GetStanding handles GET /users/{id}/standing - returns the full standing
// signal with its weighted metric breakdown.
func (h *StandingHandlers) GetStanding(w http.ResponseWriter, r *http.Request) {
	userID, _ := extractUserID(r)
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	signal, err := h.svc.Standing(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute standing", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute standing")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, signal)
}

// GetProfile handles GET /users/{id}/profile - returns the public,
// user-friendly rendering of the standing signal.
func (h *StandingHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := extractUserID(r)
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	signal, err := h.svc.Standing(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute standing", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute standing")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, standing.FormatProfile(signal))
}
