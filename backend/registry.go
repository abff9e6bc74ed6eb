package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/overdraw"
)

// Backend name constants.
const (
	// Software is the host-memory backend.
	Software = "software"
	// WGPU is the gogpu/wgpu HAL backend.
	WGPU = "wgpu"
)

var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none could be initialized.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory creates a new backend instance.
type Factory func() overdraw.Backend

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// First registered name in this list whose Init succeeds wins.
	priority = []string{WGPU, Software}
)

// Register registers a factory under name, replacing any previous one.
// Typically called from init().
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend. Useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get returns a new instance of the named backend, or nil.
func Get(name string) overdraw.Backend {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// Init creates and initializes the named backend. An empty name or "auto"
// behaves like InitDefault.
func Init(name string) (overdraw.Backend, error) {
	if name == "" || name == "auto" {
		return InitDefault()
	}
	b := Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	if err := b.Init(); err != nil {
		b.Close()
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	overdraw.Logger().Info("overdraw: backend selected", "backend", name)
	return b, nil
}

// InitDefault initializes backends in priority order and returns the first
// that succeeds. Backends outside the priority list are tried last, by name.
func InitDefault() (overdraw.Backend, error) {
	var errs []error
	for _, name := range order() {
		b, err := Init(name)
		if err == nil {
			return b, nil
		}
		overdraw.Logger().Warn("overdraw: backend unavailable", "backend", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

// MustInitDefault is like InitDefault but panics on failure.
func MustInitDefault() overdraw.Backend {
	b, err := InitDefault()
	if err != nil {
		panic(err)
	}
	return b
}

func order() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	seen := make(map[string]bool)
	var names []string
	for _, name := range priority {
		if _, ok := factories[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range factories {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
