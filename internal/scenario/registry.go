package scenario

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/pelagornis/go-rex/middleware/audit"
	"github.com/pelagornis/go-rex/middleware/logging"
	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"
)

// MiddlewareDeps carries the runtime dependencies a middleware factory
// may wire into its instance.
type MiddlewareDeps struct {
	Log   rexlog.Logger
	Bus   events.Bus
	Clock clockwork.Clock
}

// MiddlewareFactory creates one middleware instance for a scenario run.
type MiddlewareFactory func(deps MiddlewareDeps) rex.Middleware[State]

// StaticRegistry maps middleware names used in scenario files to their
// factories. Registration and retrieval are thread-safe.
type StaticRegistry struct {
	mu        sync.RWMutex
	factories map[string]MiddlewareFactory
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{factories: make(map[string]MiddlewareFactory)}
}

// Register associates a middleware name with its factory. Empty names,
// nil factories, and duplicate registrations are rejected.
func (r *StaticRegistry) Register(name string, factory MiddlewareFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return rexerrors.NewConfigError("middleware registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return rexerrors.NewConfigError(fmt.Sprintf("middleware registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return rexerrors.NewConfigError(fmt.Sprintf("middleware registration error: duplicate name '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

// Get retrieves the factory for a middleware name.
func (r *StaticRegistry) Get(name string) (MiddlewareFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, rexerrors.NewConfigError(fmt.Sprintf("middleware '%s' not registered", name), nil)
	}
	return factory, nil
}

// List returns the names of all registered middlewares, unordered.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry returns a registry holding the built-in middlewares:
// "logging" and "audit".
func DefaultRegistry() *StaticRegistry {
	r := NewStaticRegistry()
	mustRegister(r, "logging", func(deps MiddlewareDeps) rex.Middleware[State] {
		return logging.New[State](deps.Log)
	})
	mustRegister(r, "audit", func(deps MiddlewareDeps) rex.Middleware[State] {
		return audit.New[State](deps.Bus, deps.Clock)
	})
	return r
}

func mustRegister(r *StaticRegistry, name string, factory MiddlewareFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register middleware '%s': %w", name, err))
	}
}
