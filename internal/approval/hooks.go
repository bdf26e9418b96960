package approval

import (
	"context"
	"log"
	"sync"

	"plantops-backend/internal/model"
)

// Applier carries out an approved change for one (entityType, actionType).
type Applier interface {
	Apply(ctx context.Context, req *model.ApprovalRequest) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, req *model.ApprovalRequest) error

func (f ApplierFunc) Apply(ctx context.Context, req *model.ApprovalRequest) error {
	return f(ctx, req)
}

type hookKey struct {
	entityType string
	actionType string
}

// Registry maps (entityType, actionType) to the Applier that owns it.
type Registry struct {
	mu       sync.RWMutex
	appliers map[hookKey]Applier
}

func NewRegistry() *Registry {
	return &Registry{appliers: make(map[hookKey]Applier)}
}

// Register installs a for the pair, replacing any previous applier.
func (r *Registry) Register(entityType, actionType string, a Applier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers[hookKey{entityType, actionType}] = a
}

// Apply runs the applier for req. A missing applier or a failing one is
// logged; the approval itself stands either way.
func (r *Registry) Apply(ctx context.Context, req *model.ApprovalRequest) {
	r.mu.RLock()
	a, ok := r.appliers[hookKey{req.EntityType, req.ActionType}]
	r.mu.RUnlock()

	if !ok {
		log.Printf("No applier for %s:%s, approved request %s left for the owning service", req.EntityType, req.ActionType, req.ID)
		return
	}
	if err := a.Apply(ctx, req); err != nil {
		log.Printf("Failed to apply approved request %s (%s:%s): %v", req.ID, req.EntityType, req.ActionType, err)
	}
}
