// Package analyzer is the HTTP client for the external analysis service,
// the single collaborator that actually crawls and scores pages. Everything
// it returns is surfaced as either a parsed report or a classified
// AuditError; no failure path is silent.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/model"
)

// Config holds client settings for the external audit endpoint.
type Config struct {
	// BaseURL is the analysis service origin, e.g. "https://audit.internal".
	// The client posts to BaseURL + "/api/audit".
	BaseURL string

	// Timeout bounds one attempt end to end. Audits render and score the
	// target page remotely, so this is generous by default.
	Timeout time.Duration

	// MaxRetries is how many times a transient transport failure is retried.
	MaxRetries int

	// RetryBackoff is the base backoff, doubled per attempt.
	RetryBackoff time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      90 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 2 * time.Second,
	}
}

// Client talks to the external analysis service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger interfaces.Logger
}

// NewClient creates a Client. httpClient may be nil, in which case one is
// constructed with the configured timeout.
func NewClient(cfg Config, httpClient *http.Client, logger interfaces.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With(interfaces.Field{Key: "component", Value: "analyzer-client"}),
	}
}

// auditRequestBody is the wire request. Email is deliberately absent: the
// analysis service only needs the target.
type auditRequestBody struct {
	URL               string `json:"url"`
	IncludeScreenshot bool   `json:"includeScreenshot,omitempty"`
}

// auditResponseBody is the wire response envelope for both outcomes.
type auditResponseBody struct {
	Success   bool            `json:"success"`
	Report    json.RawMessage `json:"report"`
	Error     string          `json:"error"`
	ErrorType string          `json:"errorType"`
	Details   string          `json:"details"`
}

// Analyze submits one audit and blocks until the service answers. The
// second return value is non-nil exactly when the first is nil.
func (c *Client) Analyze(ctx context.Context, req model.AuditRequest) (*model.AuditReport, *model.AuditError) {
	body, err := json.Marshal(auditRequestBody{
		URL:               req.URL,
		IncludeScreenshot: req.IncludeScreenshot,
	})
	if err != nil {
		return nil, model.NewAuditError(model.KindGeneralError, "encoding audit request: "+err.Error())
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1))
			c.logger.Warn("retrying audit request",
				interfaces.Field{Key: "attempt", Value: attempt},
				interfaces.Field{Key: "backoff", Value: backoff.String()},
				interfaces.Field{Key: "error", Value: lastErr.Error()})
			select {
			case <-ctx.Done():
				return nil, model.NewAuditError(model.KindNetworkError, "audit cancelled: "+ctx.Err().Error())
			case <-time.After(backoff):
			}
		}

		report, auditErr, transportErr := c.analyzeOnce(ctx, req.URL, body)
		if transportErr == nil {
			if auditErr != nil {
				return nil, auditErr
			}
			return report, nil
		}

		lastErr = transportErr
		if ctx.Err() != nil || !isTransientNetErr(transportErr) {
			break
		}
	}

	c.logger.Error("audit request failed",
		interfaces.Field{Key: "url", Value: req.URL},
		interfaces.Field{Key: "error", Value: lastErr.Error()})
	return nil, model.NewAuditError(model.KindNetworkError, lastErr.Error())
}

// analyzeOnce performs a single attempt. transportErr is non-nil only for
// failures below HTTP (dial, DNS, timeout); application-level failures come
// back as an AuditError and are never retried.
func (c *Client) analyzeOnce(ctx context.Context, url string, body []byte) (*model.AuditReport, *model.AuditError, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, nil, err
	}

	var env auditResponseBody
	// A failed decode leaves env zeroed, which the paths below treat as a
	// malformed body.
	_ = json.Unmarshal(respBody, &env)

	if resp.StatusCode != http.StatusOK {
		kind := model.ErrorKind(env.ErrorType)
		if env.ErrorType == "" {
			kind = model.KindFromStatus(resp.StatusCode)
		}
		c.logger.Warn("audit rejected by analysis service",
			interfaces.Field{Key: "url", Value: url},
			interfaces.Field{Key: "status", Value: resp.StatusCode},
			interfaces.Field{Key: "kind", Value: string(kind)})
		return nil, model.NewAuditError(kind, env.Error), nil
	}

	if !env.Success || len(env.Report) == 0 {
		msg := env.Error
		if msg == "" {
			msg = "analysis service returned no report"
		}
		return nil, model.NewAuditError(model.KindGeneralError, msg), nil
	}

	report, perr := model.ParseReport(env.Report)
	if perr != nil {
		var malformed *model.MalformedReportError
		if errors.As(perr, &malformed) {
			return nil, model.NewAuditError(model.KindGeneralError, malformed.Error()), nil
		}
		return nil, model.NewAuditError(model.KindGeneralError, perr.Error()), nil
	}

	c.logger.Info("audit completed",
		interfaces.Field{Key: "url", Value: url},
		interfaces.Field{Key: "overall_score", Value: report.OverallScore})
	return report, nil, nil
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/api/audit"
}

// isTransientNetErr reports whether a transport failure is worth retrying.
func isTransientNetErr(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "unexpected EOF") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "EOF")
}
