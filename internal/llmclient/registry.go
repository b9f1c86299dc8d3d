package llmclient

import (
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// Registry resolves a "provider/model" string to the Client that should
// serve it, and tracks each provider's advertised model catalogue,
// grounded on teacher's provider.Registry.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client
	models   map[string][]types.Model
	fallback string
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		models:  make(map[string][]types.Model),
	}
}

// Register adds a provider's Client along with the models it serves. The
// first provider registered becomes the fallback Resolve uses when a model
// string names no provider.
func (r *Registry) Register(providerID string, client Client, models []types.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[providerID] = client
	r.models[providerID] = models
	if r.fallback == "" {
		r.fallback = providerID
	}
}

// Get returns the Client registered for a provider ID.
func (r *Registry) Get(providerID string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[providerID]
	if !ok {
		return nil, fmt.Errorf("llmclient: provider not found: %s", providerID)
	}
	return c, nil
}

// Resolve parses a "provider/model" string and returns the matching
// Client and model ID. A bare model ID (no "/") resolves against the
// fallback provider.
func (r *Registry) Resolve(modelString string) (Client, string, error) {
	providerID, modelID := ParseModelString(modelString)
	if providerID == "" {
		r.mu.RLock()
		providerID = r.fallback
		r.mu.RUnlock()
	}
	client, err := r.Get(providerID)
	if err != nil {
		return nil, "", err
	}
	return client, modelID, nil
}

// Models returns every model a provider advertises.
func (r *Registry) Models(providerID string) []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[providerID]
}

// AllModels returns every model across every registered provider.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Model
	for _, models := range r.models {
		out = append(out, models...)
	}
	return out
}

// ParseModelString splits a "provider/model" string; a string with no "/"
// is returned entirely as the model ID with an empty provider.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}
