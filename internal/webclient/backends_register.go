package webclient

import "github.com/amine-CS96/seo-expert/internal/interfaces"

func init() {
	Register(BackendNetHTTP, func(cfg Config, logger interfaces.Logger) (WebClient, error) {
		return NewNetHTTPClient(cfg, logger, nil)
	})
	Register(BackendChromedp, func(cfg Config, logger interfaces.Logger) (WebClient, error) {
		return NewChromedpClient(cfg, logger)
	})
}
