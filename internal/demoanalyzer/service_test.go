package demoanalyzer_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amine-CS96/seo-expert/internal/demoanalyzer"
	"github.com/amine-CS96/seo-expert/internal/model"
	"github.com/amine-CS96/seo-expert/internal/testutil"
	"github.com/amine-CS96/seo-expert/internal/webclient"
)

func newService(t *testing.T) http.Handler {
	t.Helper()

	cfg := demoanalyzer.DefaultConfig()
	cfg.MaxLinkChecks = 5
	cfg.LinkCheckTimeout = 2 * time.Second

	logger := &testutil.DummyLogger{}
	wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: 5 * time.Second}, logger, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	svc := demoanalyzer.NewWithClient(cfg, logger, wc)
	t.Cleanup(func() { svc.Close() })
	return svc.Routes()
}

func postAudit(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuditEndToEnd(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<!DOCTYPE html><html lang="en"><head>
			<title>A perfectly reasonable page title here</title>
			<meta name="viewport" content="width=device-width">
			</head><body><h1>Hello</h1><p>short page</p>
			<a href="/other">Other</a></body></html>`))
	}))
	defer target.Close()

	rec := postAudit(t, newService(t), `{"url": "`+target.URL+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var env struct {
		Success bool            `json:"success"`
		Report  json.RawMessage `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !env.Success {
		t.Fatal("success = false")
	}

	// The envelope must carry a report the client-side parser accepts.
	report, err := model.ParseReport(env.Report)
	if err != nil {
		t.Fatalf("ParseReport on own output: %v", err)
	}
	if report.OnPageSEO == nil || report.TechnicalSEO == nil || report.Security == nil {
		t.Error("missing sections")
	}
	if report.Summary == nil || report.Summary.TotalChecks == 0 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestAuditRejectsInvalidURL(t *testing.T) {
	t.Parallel()
	h := newService(t)

	for _, body := range []string{
		`{"url": ""}`,
		`{"url": "example.com"}`,
		`{"url": "ftp://example.com"}`,
		`not json`,
	} {
		rec := postAudit(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			continue
		}
		var env struct {
			Success   bool   `json:"success"`
			ErrorType string `json:"errorType"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
			t.Errorf("body %q: decoding: %v", body, err)
			continue
		}
		if env.Success || env.ErrorType != string(model.KindInvalidURL) {
			t.Errorf("body %q: envelope = %+v", body, env)
		}
	}
}

func TestAuditTargetNotFound(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.NotFoundHandler())
	defer target.Close()

	rec := postAudit(t, newService(t), `{"url": "`+target.URL+`/missing"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		ErrorType string `json:"errorType"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if env.ErrorType != string(model.KindPageNotFound) {
		t.Errorf("errorType = %q", env.ErrorType)
	}
}

func TestAuditUnreachableTarget(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := target.URL
	target.Close()

	rec := postAudit(t, newService(t), `{"url": "`+dead+`"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		ErrorType   string   `json:"errorType"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if env.ErrorType != string(model.KindConnectionRefused) &&
		env.ErrorType != string(model.KindConnectionError) {
		t.Errorf("errorType = %q", env.ErrorType)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newService(t).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
