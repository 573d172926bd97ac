package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesRegisteredReferences(t *testing.T) {
	r := NewRegistry()
	r.RegisterGuard("CasePolicy#can_close", GuardFunc(func(context.Context, *User, Entity) (bool, error) {
		return true, nil
	}))
	r.RegisterStateResolver("NextStep#next_state", StateResolverFunc(func(context.Context, *User, Entity) (string, error) {
		return "drafting", nil
	}))

	guard, err := r.Guard("CasePolicy#can_close")
	require.NoError(t, err)
	ok, err := guard.Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	resolver, err := r.StateResolver("NextStep#next_state")
	require.NoError(t, err)
	state, err := resolver.ComputeState(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "drafting", state)
}

func TestRegistryUnknownReferences(t *testing.T) {
	r := NewRegistry()

	_, err := r.Guard("Missing#call")
	assert.ErrorContains(t, err, "Missing#call")

	_, err = r.StateResolver("Missing#next_state")
	assert.Error(t, err)

	_, err = r.WorkflowResolver("Missing#workflow")
	assert.Error(t, err)

	_, err = r.AfterHook("Missing#after")
	assert.Error(t, err)
}
