// Command seoexpert starts the SEO Expert API server.
// Usage: go run ./cmd/seoexpert [flags]
package main

import (
	"flag"
	"log"

	"github.com/amine-CS96/seo-expert/internal/app"
	"github.com/amine-CS96/seo-expert/internal/server"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	analyzerURL := flag.String("analyzer", "", "analysis service base URL (default http://localhost:9090)")
	dataDir := flag.String("data", "", "data directory (default: user config dir)")
	flag.Parse()

	appCfg := app.DefaultConfig()
	if *analyzerURL != "" {
		appCfg.AnalyzerCfg.BaseURL = *analyzerURL
	}
	if *dataDir != "" {
		appCfg.DataDir = *dataDir
	}

	s, err := server.NewServer(server.Config{
		ListenAddr: *addr,
		AppConfig:  appCfg,
	})
	if err != nil {
		log.Fatalf("Server setup error: %v", err)
	}
	defer s.Close()

	log.Printf("SEO Expert API listening on %s (analyzer: %s)", *addr, appCfg.AnalyzerCfg.BaseURL)
	if err := s.HTTPServer().ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
