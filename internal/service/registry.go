package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/safgate/safgate/internal/logging"
	"github.com/safgate/safgate/internal/types"
)

// Provider is the interface every service provider implements.
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, callCtx *types.Context) (*types.Result, error)
}

// Registry holds the registered service providers and routes tool calls to
// them by tool identifier prefix.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	services  map[string]types.Service
	log       *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		services:  make(map[string]types.Service),
		log:       log.Named("registry"),
	}
}

// Register adds a provider under its service identifier.
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("provider has no service id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[def.ID]; exists {
		return fmt.Errorf("service already registered: %s", def.ID)
	}
	r.providers[def.ID] = provider
	r.services[def.ID] = def

	r.log.Info("service registered",
		zap.String("service", def.ID),
		zap.Int("tools", len(def.Tools)))
	return nil
}

// Get returns the provider for a service identifier.
func (r *Registry) Get(serviceID string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[serviceID]
	return p, ok
}

// List returns the registered service definitions.
func (r *Registry) List() []types.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	return out
}

// Execute routes a tool call to the provider owning the tool. Tool
// identifiers are "<service>.<operation>".
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, callCtx *types.Context) (*types.Result, error) {
	serviceID := serviceOf(toolID)
	provider, ok := r.Get(serviceID)
	if !ok {
		return types.Fail(fmt.Sprintf("unknown service: %s", serviceID)), nil
	}
	return provider.Execute(ctx, toolID, params, callCtx)
}

// Stats summarizes the registry contents.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := 0
	ids := make([]string, 0, len(r.services))
	for id, s := range r.services {
		ids = append(ids, id)
		tools += len(s.Tools)
	}
	return map[string]interface{}{
		"services":    len(r.services),
		"tools":       tools,
		"service_ids": ids,
	}
}

func serviceOf(toolID string) string {
	for i := 0; i < len(toolID); i++ {
		if toolID[i] == '.' {
			return toolID[:i]
		}
	}
	return toolID
}
