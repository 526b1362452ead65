package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
)

// Hook runs during configure with the context prepared so far. Hooks get a
// copy of the context and cannot change what is deployed.
type Hook func(ctx context.Context, dc deploy.DeployContext) error

// Hooks is a registry of named hooks the service file can refer to.
type Hooks struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

func NewHooks() *Hooks {
	return &Hooks{hooks: make(map[string]Hook)}
}

// Register adds fn under name. Names are unique.
func (h *Hooks) Register(name string, fn Hook) error {
	if name == "" || fn == nil {
		return fmt.Errorf("hook name and func are required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.hooks[name]; ok {
		return fmt.Errorf("hook %q already registered", name)
	}
	h.hooks[name] = fn
	return nil
}

func (h *Hooks) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.hooks))
	for name := range h.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type namedHook struct {
	name string
	fn   Hook
}

// resolve looks up names in order. Unknown names are a configuration error.
func (h *Hooks) resolve(names []string) ([]namedHook, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if h == nil {
		return nil, &deploy.ConfigurationError{Field: "hooks", Reason: fmt.Sprintf("unknown hook %q", names[0])}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]namedHook, 0, len(names))
	for _, name := range names {
		fn, ok := h.hooks[name]
		if !ok {
			return nil, &deploy.ConfigurationError{Field: "hooks", Reason: fmt.Sprintf("unknown hook %q", name)}
		}
		out = append(out, namedHook{name: name, fn: fn})
	}
	return out, nil
}
