package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/amine-CS96/seo-expert/internal/app"
	"github.com/amine-CS96/seo-expert/internal/auth"
	"github.com/amine-CS96/seo-expert/internal/history"
	"github.com/amine-CS96/seo-expert/internal/logging"
)

// Server is the HTTP + WebSocket API surface for SEO Expert.
type Server struct {
	cfg          Config
	comps        *app.Components
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a Server with its own components and orchestrator.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	comps, err := app.NewComponents(cfg.AppConfig, logger)
	if err != nil {
		return nil, err
	}

	orch := app.NewOrchestrator(cfg.AppConfig, comps, logger)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	orch.StartHandoffPruner(baseCtx)

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		comps:        comps,
		orchestrator: orch,
		router:       r,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/audits", s.optionsHandler("GET, POST"))
	r.Options("/api/audits/{runID}", s.optionsHandler("GET, DELETE"))
	r.Options("/api/audits/{runID}/retry", s.optionsHandler("POST"))
	r.Options("/api/session", s.optionsHandler("GET"))
	r.Options("/api/session/reset", s.optionsHandler("POST"))
	r.Options("/api/reports/{token}", s.optionsHandler("GET"))
	r.Options("/api/history", s.optionsHandler("GET"))
	r.Options("/api/history/compare", s.optionsHandler("GET"))
	r.Options("/api/auth/register", s.optionsHandler("POST"))
	r.Options("/api/auth/login", s.optionsHandler("POST"))
	r.Options("/api/auth/me", s.optionsHandler("GET"))

	// Audit runs
	r.Post("/api/audits", s.handleStartAudit)
	r.Get("/api/audits", s.handleListRuns)
	r.Get("/api/audits/{runID}", s.handleGetRun)
	r.Delete("/api/audits/{runID}", s.handleCancelRun)
	r.Post("/api/audits/{runID}/retry", s.handleRetryRun)

	// Session state machine
	r.Get("/api/session", s.handleGetSession)
	r.Post("/api/session/reset", s.handleResetSession)

	// One-shot report handoff
	r.Get("/api/reports/{token}", s.handleTakeReport)

	// Audit history
	r.Get("/api/history", s.handleListHistory)
	r.Get("/api/history/compare", s.handleCompareHistory)

	// Auth
	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/api/auth/me", s.handleMe)

	// WebSockets for run progress and session transitions
	r.Get("/ws/audits/{runID}", s.handleRunWS)
	r.Get("/ws/session", s.handleSessionWS)

	// API docs
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			body := string(bodyBytes)
			if strings.HasPrefix(r.URL.Path, "/api/auth/") {
				body = "[redacted]"
			}
			fields = append(fields, logging.Field{Key: "body", Value: body})
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down background work and underlying resources.
func (s *Server) Close() {
	s.cancelBase()
	if s.comps != nil {
		_ = s.comps.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- Audit run handlers ---

// handleStartAudit starts a run detached from the request context so it
// survives the 202 response.
func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var body StartAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	run, fieldErrs, err := s.orchestrator.StartAudit(s.baseCtx, body.URL, body.Email, body.IncludeScreenshot)
	if err != nil {
		s.logger.Warn("starting audit", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(fieldErrs) > 0 {
		s.logger.Warn("audit request rejected", logging.Field{Key: "field_errors", Value: len(fieldErrs)})
		writeJSON(w, http.StatusBadRequest, FieldErrorsResponse{Errors: fieldErrs})
		return
	}

	s.logger.Info("started audit run",
		logging.Field{Key: "run_id", Value: run.ID},
		logging.Field{Key: "url", Value: run.URL})
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.orchestrator.ListRuns()
	s.logger.Info("listed runs", logging.Field{Key: "count", Value: len(runs)})
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.orchestrator.GetRun(runID)
	if run == nil {
		s.logger.Warn("getting run: not found", logging.Field{Key: "run_id", Value: runID})
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	s.orchestrator.CancelRun(runID)
	s.logger.Info("canceled run", logging.Field{Key: "run_id", Value: runID})
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRetryRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.orchestrator.RetryRun(s.baseCtx, runID)
	if errors.Is(err, app.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if errors.Is(err, app.ErrRunNotRetryable) {
		writeError(w, http.StatusConflict, "run is not in a retryable state")
		return
	}
	if err != nil {
		s.logger.Warn("retrying run", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("retrying run", logging.Field{Key: "run_id", Value: runID})
	writeJSON(w, http.StatusAccepted, run)
}

// --- Session handlers ---

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Session().Snapshot())
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.Session().Reset()
	writeJSON(w, http.StatusOK, s.orchestrator.Session().Snapshot())
}

// --- Report handoff ---

// handleTakeReport serves a stored report exactly once; the entry is deleted
// as part of the read.
func (s *Server) handleTakeReport(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	report, ok, err := s.comps.Handoff.Take(r.Context(), token)
	if err != nil {
		s.logger.Warn("taking handoff report", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "report not found or already collected")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- History handlers ---

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "missing url query parameter")
		return
	}

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := s.comps.History.ListByURL(r.Context(), url, limit)
	if err != nil {
		s.logger.Warn("listing history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCompareHistory(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "missing url query parameter")
		return
	}

	diff, err := s.comps.History.CompareLatest(r.Context(), url)
	if errors.Is(err, history.ErrNotEnoughHistory) {
		writeError(w, http.StatusNotFound, "not enough history to compare")
		return
	}
	if err != nil {
		s.logger.Warn("comparing history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// --- Auth handlers ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, token, err := s.comps.Auth.Register(body.Name, body.Email, body.Password, body.ConfirmPassword)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "an account with this email already exists")
		default:
			s.logger.Warn("registering user", logging.Field{Key: "error", Value: err.Error()})
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, token, err := s.comps.Auth.Login(body.Email, body.Password)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			s.logger.Warn("logging in user", logging.Field{Key: "error", Value: err.Error()})
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	user, err := s.comps.Auth.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

// --- WebSockets ---

// handleRunWS streams a run's events. The stream ends when the run resolves
// (result or failure event), when playback is canceled, or when the client
// goes away; a disconnect cancels the run.
func (s *Server) handleRunWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run := s.orchestrator.GetRun(runID)
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(run); err != nil {
		return
	}

	// A run that already resolved never emits again; the snapshot is the
	// whole story.
	switch run.Status {
	case app.RunDone, app.RunFailed, app.RunCanceled:
		return
	}

	// Read pump: notices the client going away so the event loop below
	// never blocks forever on an idle channel.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := run.Events
	for {
		select {
		case <-clientGone:
			s.orchestrator.CancelRun(runID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				// Assume client disconnected; cancel run
				s.orchestrator.CancelRun(runID)
				return
			}
			if ev.Type == app.RunEventResult ||
				(ev.Type == app.RunEventStatus && ev.Status == app.RunFailed) {
				return
			}
		}
	}
}

// handleSessionWS streams session snapshots on every transition, starting
// with the current one.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	sess := s.orchestrator.Session()
	snapshots, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(sess.Snapshot()); err != nil {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snapshots:
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}
