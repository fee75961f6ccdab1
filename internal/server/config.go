package server

import (
	"github.com/amine-CS96/seo-expert/internal/app"
	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AppConfig configures the orchestrator and its components. Nil means
	// defaults.
	AppConfig *app.Config

	// Logger is the shared structured logger. Nil means a stdout logger.
	Logger interfaces.Logger
}
