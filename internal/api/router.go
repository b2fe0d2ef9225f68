package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/middleware"
)

// Router wires the API handlers onto an http.ServeMux.
type Router struct {
	Claims    *ClaimHandlers
	Discovery *DiscoveryHandlers
	Standing  *StandingHandlers
	Health    *HealthHandlers
}

// methodNotAllowed writes the standard 405 response.
func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}

// notFound writes the standard 404 response.
func notFound(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
}

// Handler builds the http.Handler serving all API routes.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", rt.Health.Health)
	mux.HandleFunc("/ready", rt.Health.Ready)

	mux.HandleFunc("/claims", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			rt.Claims.CreateClaim(w, r)
		case http.MethodGet:
			rt.Claims.ListClaims(w, r)
		default:
			methodNotAllowed(w, r)
		}
	})

	mux.HandleFunc("/claims/", func(w http.ResponseWriter, r *http.Request) {
		_, rest, err := extractPathID(r, "/claims/")
		if err != nil {
			notFound(w, r)
			return
		}
		switch {
		case len(rest) == 0 || (len(rest) == 1 && rest[0] == ""):
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r)
				return
			}
			rt.Claims.GetClaim(w, r)
		case len(rest) == 1 && rest[0] == "annotations":
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r)
				return
			}
			rt.Claims.CreateAnnotation(w, r)
		case len(rest) == 1 && rest[0] == "originality":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r)
				return
			}
			rt.Claims.GetOriginality(w, r)
		default:
			notFound(w, r)
		}
	})

	mux.HandleFunc("/annotations/", func(w http.ResponseWriter, r *http.Request) {
		_, rest, err := extractPathID(r, "/annotations/")
		if err != nil || len(rest) != 1 || rest[0] != "vote" {
			notFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		rt.Claims.VoteAnnotation(w, r)
	})

	mux.HandleFunc("/discovery", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		rt.Discovery.Discover(w, r)
	})

	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		userID, rest := extractUserID(r)
		if userID == "" || strings.Contains(userID, "/") {
			notFound(w, r)
			return
		}
		switch rest {
		case "standing":
			rt.Standing.GetStanding(w, r)
		case "profile":
			rt.Standing.GetProfile(w, r)
		default:
			notFound(w, r)
		}
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			notFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"scoring-engine","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}
