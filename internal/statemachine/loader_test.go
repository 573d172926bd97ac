package statemachine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loaderYAML = `
case_type: foi
permitted_states:
  - unassigned
  - awaiting_responder
  - drafting
  - closed
permitted_workflows:
  - standard
workflows:
  standard:
    initial_state: unassigned
    user_roles:
      manager:
        unassigned:
          assign_responder:
            transition_to: awaiting_responder
        closed:
          add_note_to_case:
      responder:
        awaiting_responder:
          accept_responder_assignment:
            if: CanAcceptOrReject#call
            transition_to: drafting
`

func loaderRegistry() *Registry {
	r := NewRegistry()
	r.RegisterGuard("CanAcceptOrReject#call", GuardFunc(func(context.Context, *User, Entity) (bool, error) {
		return true, nil
	}))
	return r
}

func TestLoadDistinguishesNilBodyFromAbsent(t *testing.T) {
	loader := NewLoader(loaderRegistry())
	configs, err := loader.Load(strings.NewReader(loaderYAML))
	require.NoError(t, err)
	require.Len(t, configs, 1)
	cfg := configs[0]

	_, lookup := cfg.EventConfig("manager", "closed", "add_note_to_case")
	assert.Equal(t, EventUnconditional, lookup)

	_, lookup = cfg.EventConfig("manager", "closed", "reopen_case")
	assert.Equal(t, EventAbsent, lookup)

	ec, lookup := cfg.EventConfig("responder", "awaiting_responder", "accept_responder_assignment")
	require.Equal(t, EventConfigured, lookup)
	assert.Equal(t, "CanAcceptOrReject#call", ec.Guard)
	assert.Equal(t, "drafting", ec.TransitionTo)
}

func TestLoadDerivesAllEventsFromTree(t *testing.T) {
	loader := NewLoader(loaderRegistry())
	configs, err := loader.Load(strings.NewReader(loaderYAML))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"accept_responder_assignment", "add_note_to_case", "assign_responder"},
		configs[0].AllEvents())
}

func TestLoadPrefersDeclaredEventList(t *testing.T) {
	yaml := strings.Replace(loaderYAML, "permitted_workflows:",
		"permitted_events:\n  - assign_responder\npermitted_workflows:", 1)
	loader := NewLoader(loaderRegistry())
	configs, err := loader.Load(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, []string{"assign_responder"}, configs[0].AllEvents())
}

func TestLoadRejectsUnknownGuardReference(t *testing.T) {
	yaml := strings.Replace(loaderYAML, "CanAcceptOrReject#call", "NoSuchPolicy#call", 1)
	loader := NewLoader(loaderRegistry())
	_, err := loader.Load(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchPolicy#call")
}

func TestLoadRejectsMalformedReference(t *testing.T) {
	yaml := strings.Replace(loaderYAML, "CanAcceptOrReject#call", "not-a-reference", 1)
	loader := NewLoader(loaderRegistry())
	_, err := loader.Load(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Type#method")
}

func TestLoadRejectsUndeclaredTransitionTarget(t *testing.T) {
	yaml := strings.Replace(loaderYAML, "transition_to: drafting", "transition_to: limbo", 1)
	loader := NewLoader(loaderRegistry())
	_, err := loader.Load(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limbo")
}

func TestLoadRejectsUndeclaredInitialState(t *testing.T) {
	yaml := strings.Replace(loaderYAML, "initial_state: unassigned", "initial_state: limbo", 1)
	loader := NewLoader(loaderRegistry())
	_, err := loader.Load(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial_state")
}

func TestLoadRejectsConflictingDestinations(t *testing.T) {
	yaml := strings.Replace(loaderYAML,
		"transition_to: drafting",
		"transition_to: drafting\n            transition_to_using: CanAcceptOrReject#call", 1)
	loader := NewLoader(loaderRegistry())
	_, err := loader.Load(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foi.yml"), []byte(loaderYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600))

	set, err := NewLoader(loaderRegistry()).LoadDir(dir)
	require.NoError(t, err)

	cfg, err := set.ForCase("foi", "standard")
	require.NoError(t, err)
	assert.Equal(t, "unassigned", cfg.InitialState)

	_, err = set.ForCase("foi", "trigger")
	assert.Error(t, err)
}
