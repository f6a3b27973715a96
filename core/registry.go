package core

import (
	"fmt"
	"sync"
)

// Registry is a host-owned map of named apps. Construct one at startup and
// pass it by reference; apps are registered once and read concurrently.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]*App
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]*App)}
}

// Register adds an app under its name. Registering the same name twice is
// a configuration error and is rejected.
func (r *Registry) Register(app *App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apps[app.Name()]; exists {
		return fmt.Errorf("core: app %q already registered", app.Name())
	}
	r.apps[app.Name()] = app
	return nil
}

// Get looks up an app by name.
func (r *Registry) Get(name string) (*App, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[name]
	return app, ok
}

// Default returns the app registered under DefaultAppName.
func (r *Registry) Default() (*App, bool) {
	return r.Get(DefaultAppName)
}
