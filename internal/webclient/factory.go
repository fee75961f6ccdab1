package webclient

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

// Constructor builds a WebClient from config and a logger.
type Constructor func(cfg Config, logger interfaces.Logger) (WebClient, error)

var (
	mu       sync.RWMutex
	backends = map[string]Constructor{}
)

// Register registers a named backend constructor. Registering the same name
// again overwrites the previous constructor.
func Register(name Backend, ctor Constructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	backends[strings.ToLower(string(name))] = ctor
}

// New constructs the configured backend. It returns an error if the named
// backend has not been registered.
func New(cfg Config, logger interfaces.Logger) (WebClient, error) {
	name := strings.ToLower(strings.TrimSpace(string(cfg.Backend)))
	if name == "" {
		name = string(BackendNetHTTP)
	}

	mu.RLock()
	ctor, ok := backends[name]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("webclient backend %q not registered: available backends=%v", name, ListBackends())
	}

	wc, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct webclient backend %q: %w", name, err)
	}
	if wc == nil {
		return nil, errors.New("webclient constructor returned nil")
	}
	return wc, nil
}

// ListBackends returns the registered backend names.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	return out
}
