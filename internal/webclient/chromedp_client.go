package webclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

// ChromedpClient renders pages in headless Chrome. It is the backend for
// audits that need the settled DOM or a screenshot.
type ChromedpClient struct {
	cfg    Config
	logger interfaces.Logger
}

// NewChromedpClient creates the backend. Chrome itself is launched lazily
// per request.
func NewChromedpClient(cfg Config, logger interfaces.Logger) (*ChromedpClient, error) {
	if cfg.RenderIdleAfter <= 0 {
		cfg.RenderIdleAfter = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ChromedpClient{
		cfg:    cfg,
		logger: logger.With(interfaces.Field{Key: "backend", Value: "chromedp"}),
	}, nil
}

// waitNetworkIdle signals once the page's network has been quiet for
// idleAfter. Used instead of load events because script-heavy pages keep
// mutating the DOM well past onload.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() { close(idleChan) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				startTimer()
			}
		}
	})

	// Cover pages that issue no requests after navigation.
	startTimer()

	return idleChan
}

// Do navigates to req.URL, waits for the network to settle and returns the
// rendered DOM (plus a screenshot when requested).
func (cdc *ChromedpClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, cdc.cfg.Timeout)
	defer cancelTimeout()

	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	cdc.logger.Debug("rendering page", interfaces.Field{Key: "url", Value: req.URL})

	// Capture the main document response for status and headers.
	var (
		statusCode int32 = http.StatusOK
		headerMu   sync.Mutex
		headers    = http.Header{}
	)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		atomic.StoreInt32(&statusCode, int32(resp.Response.Status))
		headerMu.Lock()
		for k, v := range resp.Response.Headers {
			if s, ok := v.(string); ok {
				headers.Set(k, s)
			}
		}
		headerMu.Unlock()
	})

	idleChan := waitNetworkIdle(browserCtx, cdc.cfg.RenderIdleAfter)

	if err := chromedp.Run(browserCtx, chromedp.Navigate(req.URL)); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	select {
	case <-idleChan:
	case <-browserCtx.Done():
		return nil, fmt.Errorf("waiting for network idle: %w", browserCtx.Err())
	}

	var html string
	actions := []chromedp.Action{chromedp.OuterHTML("html", &html)}

	var screenshot []byte
	if req.Screenshot {
		actions = append(actions, chromedp.FullScreenshot(&screenshot, 90))
	}

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, fmt.Errorf("extract dom: %w", err)
	}

	headerMu.Lock()
	respHeaders := headers.Clone()
	headerMu.Unlock()
	if respHeaders.Get("Content-Type") == "" {
		respHeaders.Set("Content-Type", "text/html")
	}

	return &Response{
		Request:    req,
		Body:       []byte(html),
		Headers:    respHeaders,
		StatusCode: int(atomic.LoadInt32(&statusCode)),
		Screenshot: screenshot,
		FetchedAt:  time.Now(),
	}, nil
}

// Close is a no-op; browser contexts are per-request.
func (cdc *ChromedpClient) Close() error {
	cdc.logger.Info("closing chromedp webclient")
	return nil
}
