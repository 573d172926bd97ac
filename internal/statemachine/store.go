package statemachine

import (
	"context"

	"github.com/google/uuid"
)

// TransitionRecord is one append-only audit entry. It is created exactly
// once per successful transition; only MostRecent is ever updated, and only
// to clear it when a newer record for the same entity is written.
type TransitionRecord struct {
	Event        string
	ToState      string
	ToWorkflow   string
	SortKey      int64
	MostRecent   bool
	ActingUserID *uuid.UUID
	ActingTeamID *uuid.UUID
	TargetUserID *uuid.UUID
	TargetTeamID *uuid.UUID
	Metadata     map[string]any
}

// TransitionStore is the audit trail and entity-update contract, bound to
// one entity. Implementations must make Atomically a real transactional
// boundary serialized per entity: a reader must never observe zero or two
// most-recent records, and the entity's cached state must never diverge
// from its latest record.
type TransitionStore interface {
	// NextSortKey returns a key strictly greater than any prior key for
	// the bound entity.
	NextSortKey(ctx context.Context) (int64, error)

	// UnsetMostRecent clears the flag on the record that currently holds
	// it. Zero or one rows are affected.
	UnsetMostRecent(ctx context.Context) error

	// CreateTransition appends one audit record.
	CreateTransition(ctx context.Context, rec *TransitionRecord) error

	// UpdateEntityState updates the entity's cached state and workflow.
	UpdateEntityState(ctx context.Context, toState, toWorkflow string) error

	// Atomically runs fn inside a transaction holding a per-entity lock.
	// fn receives a store scoped to that transaction; any error rolls the
	// whole unit back.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx TransitionStore) error) error
}
