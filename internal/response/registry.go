package response

import (
	"fmt"
	"sync"

	"github.com/hawc-hal/hal/internal/monitoring"
)

// Loader reads a response by name from some backing storage.
type Loader interface {
	LoadResponse(name string) (*Response, error)
}

// Registry shares loaded responses between analyses. Each name is loaded at
// most once for the lifetime of the registry. The registry is owned by the
// caller and safe for concurrent use.
type Registry struct {
	loader Loader
	logf   func(format string, v ...interface{})

	mu        sync.Mutex
	instances map[string]*Response
}

// NewRegistry returns an empty registry that loads through loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:    loader,
		logf:      monitoring.Component("response"),
		instances: make(map[string]*Response),
	}
}

// Get returns the response called name, loading it on first use.
func (r *Registry) Get(name string) (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resp, ok := r.instances[name]; ok {
		return resp, nil
	}
	r.logf("creating response instance for %s", name)
	resp, err := r.loader.LoadResponse(name)
	if err != nil {
		return nil, fmt.Errorf("load response %q: %w", name, err)
	}
	r.instances[name] = resp
	return resp, nil
}

// Add registers an already built response, replacing any previous one.
func (r *Registry) Add(resp *Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[resp.Name()] = resp
}

// Evict drops a cached response so the next Get reloads it.
func (r *Registry) Evict(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
}

// Len returns the number of cached responses.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
