package demoanalyzer

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

// LinkChecker probes link targets with a bounded worker pool and reports how
// many of them are broken.
type LinkChecker struct {
	client      *http.Client
	concurrency int
	logger      interfaces.Logger
}

// NewLinkChecker creates a checker. Each probe is bounded by timeout and at
// most concurrency probes run at once.
func NewLinkChecker(timeout time.Duration, concurrency int, logger interfaces.Logger) *LinkChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &LinkChecker{
		client:      &http.Client{Timeout: timeout},
		concurrency: concurrency,
		logger:      logger.With(interfaces.Field{Key: "component", Value: "linkcheck"}),
	}
}

// CheckLinks probes the given URLs and returns how many were checked and how
// many came back broken. Cancelling ctx stops the remaining probes; links not
// probed are not counted as checked.
func (lc *LinkChecker) CheckLinks(ctx context.Context, urls []string) (checked, broken int) {
	if len(urls) == 0 {
		return 0, 0
	}

	jobs := make(chan string)
	var checkedCount, brokenCount int64
	var wg sync.WaitGroup

	for i := 0; i < lc.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				atomic.AddInt64(&checkedCount, 1)
				if lc.isBroken(ctx, target) {
					atomic.AddInt64(&brokenCount, 1)
				}
			}
		}()
	}

	for _, target := range urls {
		select {
		case jobs <- target:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return int(atomic.LoadInt64(&checkedCount)), int(atomic.LoadInt64(&brokenCount))
		}
	}
	close(jobs)
	wg.Wait()

	return int(atomic.LoadInt64(&checkedCount)), int(atomic.LoadInt64(&brokenCount))
}

// isBroken probes a single target. HEAD first, falling back to GET for
// servers that reject HEAD.
func (lc *LinkChecker) isBroken(ctx context.Context, target string) bool {
	status, err := lc.probe(ctx, http.MethodHead, target)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = lc.probe(ctx, http.MethodGet, target)
	}
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		lc.logger.Debug("link probe failed",
			interfaces.Field{Key: "url", Value: target},
			interfaces.Field{Key: "error", Value: err.Error()})
		return true
	}
	return status >= http.StatusBadRequest
}

func (lc *LinkChecker) probe(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := lc.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
