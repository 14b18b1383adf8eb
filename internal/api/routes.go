package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutpilot/cutpilot-agent/internal/agent"
	"github.com/cutpilot/cutpilot-agent/internal/export"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/journal"
	"github.com/cutpilot/cutpilot-agent/internal/playback"
	"github.com/cutpilot/cutpilot-agent/internal/review"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/messages", messageHandler(cfg))
		r.Get("/review", reviewStateHandler(cfg))
		r.Post("/review/confirm", reviewHandler(cfg, review.Confirm))
		r.Post("/review/skip", reviewHandler(cfg, review.Skip))
		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
		if cfg.Evidence != nil {
			r.Group(func(r chi.Router) {
				r.Use(LoopbackGuard())
				r.Get("/evidence/audio", audioHandler(cfg))
				r.Head("/evidence/audio", audioHandler(cfg))
				r.Get("/evidence/frames/{name}", frameHandler(cfg))
				r.Head("/evidence/frames/{name}", frameHandler(cfg))
			})
		}
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cfg.Agent.Status(r.Context())

		state := "idle"
		switch {
		case st.Busy:
			state = "working"
		case st.Review.Phase == review.PhaseReviewing:
			state = "reviewing"
		case st.HostError != "":
			state = "no_timeline"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{State: state, Version: cfg.Version, Status: st})
	}
}

func messageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		reply, err := cfg.Agent.HandleMessage(r.Context(), req.Message)
		if errors.Is(err, agent.ErrEmptyMessage) {
			WriteError(w, http.StatusBadRequest, "message is required", "BAD_REQUEST")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		// pipeline failures still carry the text the panel shows
		WriteJSON(w, http.StatusOK, reply)
	}
}

func reviewStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Agent.ReviewState())
	}
}

func reviewHandler(cfg ServerConfig, d review.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cfg.Agent.Review(r.Context(), d)
		if errors.Is(err, agent.ErrNoReview) {
			WriteError(w, http.StatusConflict, err.Error(), "NO_REVIEW")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		runs, err := cfg.Repository.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}
		if runs == nil {
			runs = []*journal.Run{}
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := r.Context()

		run, err := cfg.Repository.GetRun(ctx, id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		cmds, err := cfg.Repository.ListCommands(ctx, id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		decisions, err := cfg.Repository.ListDecisions(ctx, id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, RunResponse{Run: run, Commands: cmds, Decisions: decisions})
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		resp, err := cfg.Agent.ExportEDL(r.Context(), req.OutputDir, req.Title)
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, resp)
		case errors.Is(err, export.ErrInvalidOutputDir):
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		case errors.Is(err, host.ErrNoActiveDocument), errors.Is(err, host.ErrNoActiveSession):
			WriteError(w, http.StatusConflict, err.Error(), "NO_TIMELINE")
		case errors.Is(err, export.ErrNoEvents):
			WriteError(w, http.StatusConflict, err.Error(), "NO_CLIPS")
		default:
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		}
	}
}

func audioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := cfg.Evidence.AudioPath(r.Context())
		serveEvidence(cfg, w, r, path, err)
	}
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := cfg.Evidence.FramePath(r.Context(), chi.URLParam(r, "name"))
		serveEvidence(cfg, w, r, path, err)
	}
}

func serveEvidence(cfg ServerConfig, w http.ResponseWriter, r *http.Request, path string, err error) {
	if err == nil {
		err = cfg.Evidence.ServeFile(w, r, path)
		if err == nil {
			return
		}
	}

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, playback.ErrInvalidName):
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, playback.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, host.ErrNoActiveDocument):
		status, code = http.StatusConflict, "NO_TIMELINE"
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	WriteError(w, status, err.Error(), code)
}
