package webclient

import "time"

// Backend names a registered WebClient implementation.
type Backend string

const (
	BackendNetHTTP  Backend = "nethttp"
	BackendChromedp Backend = "chromedp"
)

// Config selects and tunes a backend.
type Config struct {
	Backend Backend

	// Timeout bounds one fetch end to end.
	Timeout time.Duration

	// RenderIdleAfter is how long the network must stay quiet before the
	// chromedp backend considers the page settled.
	RenderIdleAfter time.Duration
}

// DefaultConfig returns the plain HTTP backend with sane timeouts.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendNetHTTP,
		Timeout:         30 * time.Second,
		RenderIdleAfter: 2 * time.Second,
	}
}
