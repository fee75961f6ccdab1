package demoanalyzer

import (
	"time"

	"github.com/amine-CS96/seo-expert/internal/webclient"
)

// Config tunes the demo analysis service.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// WebClientCfg selects the page fetch backend. Screenshots require
	// the chromedp backend.
	WebClientCfg webclient.Config

	// MaxLinkChecks caps how many of the page's links are probed.
	MaxLinkChecks int

	// LinkCheckConcurrency bounds parallel link probes.
	LinkCheckConcurrency int

	// LinkCheckTimeout bounds each individual probe.
	LinkCheckTimeout time.Duration
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:           ":9090",
		WebClientCfg:         webclient.DefaultConfig(),
		MaxLinkChecks:        25,
		LinkCheckConcurrency: 4,
		LinkCheckTimeout:     5 * time.Second,
	}
}
