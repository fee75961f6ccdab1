// Command demoanalyzer starts the self-contained analysis service. It
// exposes the same POST /api/audit contract the hosted analyzer does, so a
// local SEO Expert server can be pointed at it during development.
// Usage: go run ./cmd/demoanalyzer [flags]
package main

import (
	"flag"
	"log"

	"github.com/amine-CS96/seo-expert/internal/demoanalyzer"
	"github.com/amine-CS96/seo-expert/internal/logging"
	"github.com/amine-CS96/seo-expert/internal/webclient"
)

func main() {
	cfg := demoanalyzer.DefaultConfig()

	addr := flag.String("addr", cfg.ListenAddr, "HTTP listen address")
	backend := flag.String("backend", string(cfg.WebClientCfg.Backend),
		"page fetch backend: nethttp or chromedp (screenshots need chromedp)")
	flag.Parse()

	cfg.ListenAddr = *addr
	cfg.WebClientCfg.Backend = webclient.Backend(*backend)

	logger := logging.NewStdoutLogger("DemoAnalyzer")

	svc, err := demoanalyzer.New(cfg, logger)
	if err != nil {
		log.Fatalf("Analyzer setup error: %v", err)
	}
	defer svc.Close()

	if err := svc.Start(); err != nil {
		log.Fatalf("Analyzer error: %v", err)
	}
}
