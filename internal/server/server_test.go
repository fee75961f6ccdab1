package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amine-CS96/seo-expert/internal/app"
	"github.com/amine-CS96/seo-expert/internal/progress"
	"github.com/amine-CS96/seo-expert/internal/server"
	"github.com/amine-CS96/seo-expert/internal/testutil"
)

func analyzerStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "report": {
			"url": "https://example.com", "analyzedAt": "2026-08-30T10:00:00Z", "overallScore": 73,
			"onPageSEO": {"score": 80, "recommendations": ["Add a meta description"]}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, analyzerURL string) *server.Server {
	t.Helper()

	appCfg := app.DefaultConfig()
	appCfg.DataDir = t.TempDir()
	appCfg.AnalyzerCfg.BaseURL = analyzerURL
	appCfg.AnalyzerCfg.MaxRetries = 0
	appCfg.Steps = []progress.Step{
		{ID: "fetch", Label: "Fetching", Duration: time.Millisecond},
		{ID: "report", Label: "Reporting", Duration: time.Millisecond},
	}

	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     &testutil.DummyLogger{},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

type runView struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	HandoffToken string `json:"handoff_token"`
}

// waitForRun polls the run endpoint until it leaves the active states.
func waitForRun(t *testing.T, s http.Handler, runID string) runView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, s, http.MethodGet, "/api/audits/"+runID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET run: status = %d", rec.Code)
		}
		var run runView
		decodeJSON(t, rec, &run)
		if run.Status != "pending" && run.Status != "running" {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
	return runView{}
}

func TestStartAuditValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	rec := doJSON(t, s, http.MethodPost, "/api/audits", `{"url": "not-a-url", "email": "nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp server.FieldErrorsResponse
	decodeJSON(t, rec, &resp)
	if len(resp.Errors) != 2 {
		t.Errorf("errors = %+v", resp.Errors)
	}

	if rec := doJSON(t, s, http.MethodPost, "/api/audits", `{{{`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d", rec.Code)
	}
}

func TestAuditLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	rec := doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var started runView
	decodeJSON(t, rec, &started)
	if started.ID == "" {
		t.Fatal("no run ID")
	}

	run := waitForRun(t, s, started.ID)
	if run.Status != "done" || run.HandoffToken == "" {
		t.Fatalf("run = %+v", run)
	}

	// The handoff token serves the report exactly once.
	rec = doJSON(t, s, http.MethodGet, "/api/reports/"+run.HandoffToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("take report: status = %d", rec.Code)
	}
	var report struct {
		OverallScore float64 `json:"overallScore"`
	}
	decodeJSON(t, rec, &report)
	if report.OverallScore != 73 {
		t.Errorf("overallScore = %v", report.OverallScore)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/reports/"+run.HandoffToken, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second take: status = %d", rec.Code)
	}

	// Session carries the result.
	rec = doJSON(t, s, http.MethodGet, "/api/session", "")
	var snap struct {
		Status string `json:"status"`
	}
	decodeJSON(t, rec, &snap)
	if snap.Status != "success" {
		t.Errorf("session status = %q", snap.Status)
	}

	// History recorded the audit.
	rec = doJSON(t, s, http.MethodGet, "/api/history?url=https://example.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status = %d", rec.Code)
	}
	var entries []struct {
		Email string `json:"email"`
	}
	decodeJSON(t, rec, &entries)
	if len(entries) != 1 || entries[0].Email != "a@b.co" {
		t.Errorf("history = %+v", entries)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/audits", "")
	var runs []runView
	decodeJSON(t, rec, &runs)
	if len(runs) != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	if rec := doJSON(t, s, http.MethodGet, "/api/audits/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRetryEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	if rec := doJSON(t, s, http.MethodPost, "/api/audits/nope/retry", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run: status = %d", rec.Code)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)
	var started runView
	decodeJSON(t, rec, &started)
	waitForRun(t, s, started.ID)

	// A completed run is not retryable.
	if rec := doJSON(t, s, http.MethodPost, "/api/audits/"+started.ID+"/retry", ""); rec.Code != http.StatusConflict {
		t.Errorf("done run: status = %d", rec.Code)
	}
}

func TestRetryAfterFailure(t *testing.T) {
	t.Parallel()

	var failedOnce bool
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !failedOnce {
			failedOnce = true
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"success": false, "error": "down", "errorType": "SERVER_ERROR"}`))
			return
		}
		w.Write([]byte(`{"success": true, "report": {
			"url": "https://example.com", "analyzedAt": "2026-08-30T10:00:00Z", "overallScore": 40}}`))
	}))
	defer stub.Close()

	s := newTestServer(t, stub.URL)

	rec := doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)
	var started runView
	decodeJSON(t, rec, &started)

	if run := waitForRun(t, s, started.ID); run.Status != "failed" {
		t.Fatalf("run = %+v", run)
	}

	if rec := doJSON(t, s, http.MethodPost, "/api/audits/"+started.ID+"/retry", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("retry: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if run := waitForRun(t, s, started.ID); run.Status != "done" {
		t.Errorf("run after retry = %+v", run)
	}
}

func TestCancelRunEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	if rec := doJSON(t, s, http.MethodDelete, "/api/audits/nope", ""); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSessionReset(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	rec := doJSON(t, s, http.MethodPost, "/api/session/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap struct {
		Status string `json:"status"`
	}
	decodeJSON(t, rec, &snap)
	if snap.Status != "idle" {
		t.Errorf("status = %q", snap.Status)
	}
}

func TestHistoryEndpointValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	if rec := doJSON(t, s, http.MethodGet, "/api/history", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/history/compare", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("compare missing url: status = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/history/compare?url=https://example.com", ""); rec.Code != http.StatusNotFound {
		t.Errorf("compare without history: status = %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	register := `{"name": "Amine", "email": "amine@example.com",
		"password": "correct-horse", "confirmPassword": "correct-horse"}`
	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created server.AuthResponse
	decodeJSON(t, rec, &created)
	if created.Token == "" {
		t.Fatal("no token on register")
	}

	if rec := doJSON(t, s, http.MethodPost, "/api/auth/register", register); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login",
		`{"email": "amine@example.com", "password": "wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login",
		`{"email": "amine@example.com", "password": "correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var logged server.AuthResponse
	decodeJSON(t, rec, &logged)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+logged.Token)
	mrec := httptest.NewRecorder()
	s.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK {
		t.Fatalf("me: status = %d, body = %s", mrec.Code, mrec.Body.String())
	}
	var me struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(mrec.Body).Decode(&me); err != nil {
		t.Fatalf("decoding me: %v", err)
	}
	if me.Email != "amine@example.com" {
		t.Errorf("me.Email = %q", me.Email)
	}

	if rec := doJSON(t, s, http.MethodGet, "/api/auth/me", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("me without token: status = %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	mrec = httptest.NewRecorder()
	s.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusUnauthorized {
		t.Errorf("me with garbage token: status = %d", mrec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	rec := doJSON(t, s, http.MethodOptions, "/api/audits", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestRunWebSocket(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	rec := doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)
	var started runView
	decodeJSON(t, rec, &started)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws/audits/" + started.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	// First frame is the run itself.
	var run runView
	if err := conn.ReadJSON(&run); err != nil {
		t.Fatalf("reading run frame: %v", err)
	}
	if run.ID != started.ID {
		t.Fatalf("run frame ID = %q", run.ID)
	}

	// Then events until the result.
	for {
		var ev struct {
			Type         string `json:"type"`
			Status       string `json:"status"`
			HandoffToken string `json:"handoff_token"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading event: %v", err)
		}
		if ev.Type == "result" {
			if ev.Status != "done" || ev.HandoffToken == "" {
				t.Errorf("result event = %+v", ev)
			}
			break
		}
	}
}

func TestRequestBodyLogging(t *testing.T) {
	t.Parallel()

	appCfg := app.DefaultConfig()
	appCfg.DataDir = t.TempDir()
	appCfg.AnalyzerCfg.BaseURL = analyzerStub(t).URL

	logger := &testutil.DummyLogger{}
	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	doJSON(t, s, http.MethodPost, "/api/audits", `{"url": "not-a-url"}`)
	doJSON(t, s, http.MethodPost, "/api/auth/login",
		`{"email": "amine@example.com", "password": "hunter2-hunter2"}`)

	bodies := map[string]string{}
	for _, e := range logger.Entries {
		if e.Msg != "http_request" {
			continue
		}
		var path, body string
		for _, f := range e.Fields {
			switch f.Key {
			case "path":
				path, _ = f.Value.(string)
			case "body":
				body, _ = f.Value.(string)
			}
		}
		bodies[path] = body
	}

	if got := bodies["/api/audits"]; !strings.Contains(got, "not-a-url") {
		t.Errorf("audit body not logged: %q", got)
	}
	// Credentials never reach the log.
	if got := bodies["/api/auth/login"]; got != "[redacted]" {
		t.Errorf("auth body = %q, want [redacted]", got)
	}
}

func TestRunWebSocketTerminalRun(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	rec := doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)
	var started runView
	decodeJSON(t, rec, &started)
	waitForRun(t, s, started.ID)

	// Connecting to an already-resolved run gets the snapshot and a prompt
	// close instead of a stream that never ends.
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws/audits/" + started.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var run runView
	if err := conn.ReadJSON(&run); err != nil {
		t.Fatalf("reading run frame: %v", err)
	}
	if run.Status != "done" {
		t.Fatalf("run frame status = %q", run.Status)
	}
	if err := conn.ReadJSON(&run); err == nil {
		t.Fatal("expected connection close after terminal snapshot")
	}
}

func TestRunWebSocketClientDisconnectCancels(t *testing.T) {
	t.Parallel()

	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client going away;
		// with unread body bytes the request context is never canceled and
		// the deferred stub.Close blocks forever.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer stub.Close()

	appCfg := app.DefaultConfig()
	appCfg.DataDir = t.TempDir()
	appCfg.AnalyzerCfg.BaseURL = stub.URL
	appCfg.AnalyzerCfg.MaxRetries = 0
	appCfg.Steps = []progress.Step{{ID: "slow", Label: "Slow", Duration: time.Hour}}

	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     &testutil.DummyLogger{},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	rec := doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)
	var started runView
	decodeJSON(t, rec, &started)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws/audits/" + started.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	var run runView
	if err := conn.ReadJSON(&run); err != nil {
		t.Fatalf("reading run frame: %v", err)
	}
	conn.Close()

	// The dropped connection cancels the stuck run.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, s, http.MethodGet, "/api/audits/"+started.ID, "")
		var got runView
		decodeJSON(t, rec, &got)
		if got.Status == "canceled" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("run was not canceled after client disconnect")
}

func TestSessionWebSocket(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, analyzerStub(t).URL)

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var snap struct {
		Status string `json:"status"`
	}
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("reading initial snapshot: %v", err)
	}
	if snap.Status != "idle" {
		t.Fatalf("initial status = %q", snap.Status)
	}

	doJSON(t, s, http.MethodPost, "/api/audits",
		`{"url": "https://example.com", "email": "a@b.co"}`)

	// The submit transition arrives as a loading snapshot; keep reading
	// until the run resolves.
	for {
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("reading snapshot: %v", err)
		}
		if snap.Status == "success" {
			break
		}
	}
}
