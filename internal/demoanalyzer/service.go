package demoanalyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/model"
	"github.com/amine-CS96/seo-expert/internal/utils"
	"github.com/amine-CS96/seo-expert/internal/webclient"
)

// Service is a self-contained analysis service exposing POST /api/audit. It
// fetches the target page, inspects it and synthesizes a scored report in the
// same wire format the hosted analyzer uses, so the main server can point at
// it during development.
type Service struct {
	cfg    Config
	logger interfaces.Logger
	wc     webclient.WebClient
	links  *LinkChecker
}

// New creates the service, building the fetch backend from cfg.
func New(cfg Config, logger interfaces.Logger) (*Service, error) {
	wc, err := webclient.New(cfg.WebClientCfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWithClient(cfg, logger, wc), nil
}

// NewWithClient creates the service around an existing fetch client.
func NewWithClient(cfg Config, logger interfaces.Logger, wc webclient.WebClient) *Service {
	componentLogger := logger.With(interfaces.Field{Key: "component", Value: "demoanalyzer"})
	return &Service{
		cfg:    cfg,
		logger: componentLogger,
		wc:     wc,
		links:  NewLinkChecker(cfg.LinkCheckTimeout, cfg.LinkCheckConcurrency, componentLogger),
	}
}

// Routes builds the service's HTTP handler.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/audit", s.handleAudit)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// Start runs the service until the listener fails.
func (s *Service) Start() error {
	s.logger.Info("demo analyzer listening",
		interfaces.Field{Key: "addr", Value: s.cfg.ListenAddr})
	return http.ListenAndServe(s.cfg.ListenAddr, s.Routes())
}

// Close releases the fetch backend.
func (s *Service) Close() error {
	return s.wc.Close()
}

type auditRequestBody struct {
	URL               string `json:"url"`
	IncludeScreenshot bool   `json:"includeScreenshot"`
}

type auditResponseBody struct {
	Success bool               `json:"success"`
	Report  *model.AuditReport `json:"report,omitempty"`
}

type auditErrorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
	Details   string `json:"details,omitempty"`
}

func (s *Service) handleAudit(w http.ResponseWriter, r *http.Request) {
	var body auditRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, model.KindInvalidURL, "request body is not valid JSON", err.Error())
		return
	}

	canonical, err := utils.ValidateAuditURL(body.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, model.KindInvalidURL, "not a valid absolute http(s) URL", err.Error())
		return
	}

	s.logger.Info("audit requested",
		interfaces.Field{Key: "url", Value: canonical},
		interfaces.Field{Key: "screenshot", Value: body.IncludeScreenshot})

	fetchStart := time.Now()
	resp, err := s.wc.Do(r.Context(), &webclient.Request{
		URL:        canonical,
		Screenshot: body.IncludeScreenshot,
	})
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		kind := classifyFetchError(err)
		s.logger.Warn("page fetch failed",
			interfaces.Field{Key: "url", Value: canonical},
			interfaces.Field{Key: "errorType", Value: string(kind)},
			interfaces.Field{Key: "error", Value: err.Error()})
		s.writeError(w, http.StatusBadGateway, kind, "", err.Error())
		return
	}

	if resp.StatusCode >= http.StatusBadRequest {
		kind := kindFromTargetStatus(resp.StatusCode)
		s.writeError(w, http.StatusBadGateway, kind, "", "")
		return
	}

	base, err := url.Parse(canonical)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, model.KindAnalysisFailed, "", err.Error())
		return
	}

	facts, err := InspectHTML(base, resp.Body)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, model.KindAnalysisFailed, "", err.Error())
		return
	}

	targets := facts.LinkURLs
	if len(targets) > s.cfg.MaxLinkChecks {
		targets = targets[:s.cfg.MaxLinkChecks]
	}
	checked, broken := s.links.CheckLinks(r.Context(), targets)

	report := buildReport(scoreInput{
		finalURL:      canonical,
		facts:         facts,
		headers:       resp.Headers,
		checkedLinks:  checked,
		brokenLinks:   broken,
		fetchDuration: fetchDuration,
		pageBytes:     len(resp.Body),
		screenshot:    resp.Screenshot,
	})

	s.logger.Info("audit complete",
		interfaces.Field{Key: "url", Value: canonical},
		interfaces.Field{Key: "overallScore", Value: report.OverallScore},
		interfaces.Field{Key: "brokenLinks", Value: broken})

	s.writeJSON(w, http.StatusOK, auditResponseBody{Success: true, Report: report})
}

// classifyFetchError maps transport failures onto the error taxonomy.
func classifyFetchError(err error) model.ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.KindDNSNotResolved
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.KindTimeout
	}

	if strings.Contains(err.Error(), "connection refused") {
		return model.KindConnectionRefused
	}

	return model.KindConnectionError
}

// kindFromTargetStatus maps the target page's own HTTP status onto the
// taxonomy. Distinct from the mapping for analyzer response statuses: here
// 4xx means the page rejected us, not that the request was malformed.
func kindFromTargetStatus(status int) model.ErrorKind {
	switch {
	case status == http.StatusNotFound, status == http.StatusGone:
		return model.KindPageNotFound
	case status == http.StatusUnauthorized:
		return model.KindAccessDenied
	case status == http.StatusForbidden:
		return model.KindAccessForbidden
	case status >= 500:
		return model.KindServerError
	default:
		return model.KindAnalysisFailed
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response",
			interfaces.Field{Key: "error", Value: err.Error()})
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, kind model.ErrorKind, message, details string) {
	auditErr := model.NewAuditError(kind, message)
	s.writeJSON(w, status, auditErrorBody{
		Success:   false,
		Error:     auditErr.Message,
		ErrorType: string(kind),
		Details:   details,
	})
}
