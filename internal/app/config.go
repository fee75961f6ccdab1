package app

import (
	"time"

	"github.com/amine-CS96/seo-expert/internal/analyzer"
	"github.com/amine-CS96/seo-expert/internal/auth"
	"github.com/amine-CS96/seo-expert/internal/progress"
)

// Config carries the runtime options shared by the orchestrator and its
// components.
type Config struct {
	// DataDir is where the SQLite database lives. Empty means a
	// "seo-expert" directory under the user config dir.
	DataDir string

	// AnalyzerCfg configures the external analysis service client.
	AnalyzerCfg analyzer.Config

	// AuthCfg configures the demo auth layer.
	AuthCfg auth.Config

	// Steps is the staged progress sequence played during each audit.
	Steps []progress.Step

	// HandoffTTL is how long an uncollected handoff entry survives.
	HandoffTTL time.Duration

	// HandoffPruneEvery is the interval between prune sweeps.
	HandoffPruneEvery time.Duration

	// HistoryLimit caps history listings.
	HistoryLimit int
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	analyzerCfg := analyzer.DefaultConfig()
	analyzerCfg.BaseURL = "http://localhost:9090"

	return &Config{
		DataDir:           "",
		AnalyzerCfg:       analyzerCfg,
		AuthCfg:           auth.DefaultConfig(),
		Steps:             progress.DefaultSteps(),
		HandoffTTL:        15 * time.Minute,
		HandoffPruneEvery: 5 * time.Minute,
		HistoryLimit:      20,
	}
}
