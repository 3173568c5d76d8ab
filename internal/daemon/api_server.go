package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tempodel/internal/api"
	"tempodel/internal/config"
	"tempodel/internal/logging"
	"tempodel/internal/schedule"
)

// maxRequestBody caps POST /api/schedule payloads.
const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/schedule", s.handleListSchedule)
	mux.HandleFunc("POST /api/schedule", s.handleAddSchedule)
	mux.HandleFunc("DELETE /api/schedule", s.handleRemoveSchedule)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	mux.Handle("GET /metrics", s.daemon.metrics.Handler())
	return s.daemon.metrics.Middleware(authMiddleware(token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		ScheduleFile: status.ScheduleFile,
		LockFilePath: status.LockFilePath,
		HistoryPath:  status.HistoryPath,
		Checker:      api.FromCheckerStatus(status.Checker),
	})
}

func (s *apiServer) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	entries := s.daemon.ListEntries(r.Context())
	s.writeJSON(w, http.StatusOK, api.ScheduleListResponse{Entries: api.FromEntries(entries, time.Now())})
}

func (s *apiServer) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var req api.AddRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	entries, err := s.daemon.AddEntries(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, schedule.ErrPersist) || len(entries) > 0 {
			status = http.StatusInternalServerError
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.AddResponse{Entries: api.FromEntries(entries, time.Now())})
}

func (s *apiServer) handleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	var paths []string
	for _, value := range r.URL.Query()["path"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	if len(paths) == 0 {
		s.writeError(w, http.StatusBadRequest, schedule.ErrEmptyPath.Error())
		return
	}
	removed, missing, err := s.daemon.RemoveEntries(r.Context(), paths)
	if err != nil {
		status := http.StatusInternalServerError
		if !errors.Is(err, schedule.ErrPersist) && len(removed) == 0 {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}
	if len(removed) == 0 {
		s.writeError(w, http.StatusNotFound, schedule.ErrNotFound.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RemoveResponse{Removed: removed, Missing: missing})
}

func (s *apiServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Reconcile(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
