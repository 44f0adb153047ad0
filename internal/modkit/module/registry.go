package module

import (
	"sort"
	"sync"
)

// Process-wide registry of module port sets, filled during bootstrap in main.
// Lets the meta endpoints report what got mounted without holding module refs
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores a port set for a module name. Re-registering a name replaces it
func Register(name string, ports any) {
	mu.Lock()
	reg[name] = ports
	mu.Unlock()
}

// PortsAs fetches and type asserts a port set for name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Names lists registered module names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the registry for tests
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	mu.Unlock()
}
