package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Guard decides whether an event is currently triggerable by the user.
type Guard interface {
	Evaluate(ctx context.Context, user *User, entity Entity) (bool, error)
}

// StateResolver computes a destination state at trigger time.
type StateResolver interface {
	ComputeState(ctx context.Context, user *User, entity Entity) (string, error)
}

// WorkflowResolver computes a destination workflow at trigger time.
type WorkflowResolver interface {
	ComputeWorkflow(ctx context.Context, user *User, entity Entity) (string, error)
}

// AfterHook runs after a transition has been applied, inside the same
// atomic unit: a hook error rolls the transition back.
type AfterHook interface {
	Run(ctx context.Context, user *User, entity Entity, metadata *Metadata) error
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(ctx context.Context, user *User, entity Entity) (bool, error)

func (f GuardFunc) Evaluate(ctx context.Context, user *User, entity Entity) (bool, error) {
	return f(ctx, user, entity)
}

// StateResolverFunc adapts a function to the StateResolver interface.
type StateResolverFunc func(ctx context.Context, user *User, entity Entity) (string, error)

func (f StateResolverFunc) ComputeState(ctx context.Context, user *User, entity Entity) (string, error) {
	return f(ctx, user, entity)
}

// WorkflowResolverFunc adapts a function to the WorkflowResolver interface.
type WorkflowResolverFunc func(ctx context.Context, user *User, entity Entity) (string, error)

func (f WorkflowResolverFunc) ComputeWorkflow(ctx context.Context, user *User, entity Entity) (string, error) {
	return f(ctx, user, entity)
}

// AfterHookFunc adapts a function to the AfterHook interface.
type AfterHookFunc func(ctx context.Context, user *User, entity Entity, metadata *Metadata) error

func (f AfterHookFunc) Run(ctx context.Context, user *User, entity Entity, metadata *Metadata) error {
	return f(ctx, user, entity, metadata)
}

// Registry maps the "Type#method" references used in workflow configuration
// to concrete guards, resolvers and hooks. References are resolved once at
// configuration load time so unknown names fail fast, not mid-transition.
type Registry struct {
	mu        sync.RWMutex
	guards    map[string]Guard
	states    map[string]StateResolver
	workflows map[string]WorkflowResolver
	hooks     map[string]AfterHook
}

func NewRegistry() *Registry {
	return &Registry{
		guards:    make(map[string]Guard),
		states:    make(map[string]StateResolver),
		workflows: make(map[string]WorkflowResolver),
		hooks:     make(map[string]AfterHook),
	}
}

func (r *Registry) RegisterGuard(ref string, g Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[ref] = g
}

func (r *Registry) RegisterStateResolver(ref string, s StateResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[ref] = s
}

func (r *Registry) RegisterWorkflowResolver(ref string, w WorkflowResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[ref] = w
}

func (r *Registry) RegisterAfterHook(ref string, h AfterHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[ref] = h
}

func (r *Registry) Guard(ref string) (Guard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guards[ref]
	if !ok {
		return nil, fmt.Errorf("unknown guard reference %q", ref)
	}
	return g, nil
}

func (r *Registry) StateResolver(ref string) (StateResolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[ref]
	if !ok {
		return nil, fmt.Errorf("unknown state resolver reference %q", ref)
	}
	return s, nil
}

func (r *Registry) WorkflowResolver(ref string) (WorkflowResolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[ref]
	if !ok {
		return nil, fmt.Errorf("unknown workflow resolver reference %q", ref)
	}
	return w, nil
}

func (r *Registry) AfterHook(ref string) (AfterHook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[ref]
	if !ok {
		return nil, fmt.Errorf("unknown after-transition reference %q", ref)
	}
	return h, nil
}
