package statemachine

import (
	"fmt"
	"sort"
)

// EventLookup tags the result of a role/state/event lookup. An event that
// appears in the tree with a null body is permitted unconditionally, which
// must not be conflated with an event that is not configured at all.
type EventLookup int

const (
	EventAbsent EventLookup = iota
	EventUnconditional
	EventConfigured
)

// EventConfig is the body of one role/state/event entry. All fields are
// optional. TransitionTo and TransitionToUsing are mutually exclusive, as
// are SwitchWorkflow and SwitchWorkflowUsing; the loader enforces this.
type EventConfig struct {
	Guard               string `yaml:"if"`
	TransitionTo        string `yaml:"transition_to"`
	TransitionToUsing   string `yaml:"transition_to_using"`
	SwitchWorkflow      string `yaml:"switch_workflow"`
	SwitchWorkflowUsing string `yaml:"switch_workflow_using"`
	AfterTransition     string `yaml:"after_transition"`
}

// EventMap holds the events configured for one role in one state. A nil
// value marks an explicit-null entry (permitted, no guard, no state change).
type EventMap map[string]*EventConfig

// RoleStates maps declared states to their event maps for one role.
type RoleStates map[string]EventMap

// WorkflowConfig is the immutable configuration tree for one case type and
// workflow variant. It is built once by the loader and shared read-only
// across all operations.
type WorkflowConfig struct {
	CaseType        string
	Workflow        string
	InitialState    string
	States          []string
	PermittedEvents []string
	Roles           map[string]RoleStates

	stateSet  map[string]struct{}
	allEvents []string
}

// HasState reports whether s is in the declared state set.
func (c *WorkflowConfig) HasState(s string) bool {
	_, ok := c.stateSet[s]
	return ok
}

// RoleConfig returns the state tree for a role, if configured.
func (c *WorkflowConfig) RoleConfig(role string) (RoleStates, bool) {
	rs, ok := c.Roles[role]
	return rs, ok
}

// EventConfig performs the three-valued lookup for role/state/event.
// The returned config is non-nil only when the lookup is EventConfigured.
func (c *WorkflowConfig) EventConfig(role, state, event string) (*EventConfig, EventLookup) {
	rs, ok := c.Roles[role]
	if !ok {
		return nil, EventAbsent
	}
	events, ok := rs[state]
	if !ok {
		return nil, EventAbsent
	}
	cfg, ok := events[event]
	if !ok {
		return nil, EventAbsent
	}
	if cfg == nil {
		return nil, EventUnconditional
	}
	return cfg, EventConfigured
}

// AllEvents returns the declared event list if present, otherwise the
// sorted union of every event name appearing anywhere in the tree.
func (c *WorkflowConfig) AllEvents() []string {
	return c.allEvents
}

// finalize builds the derived lookup structures. Called by the loader and
// by tests that assemble configs in code.
func (c *WorkflowConfig) finalize() {
	c.stateSet = make(map[string]struct{}, len(c.States))
	for _, s := range c.States {
		c.stateSet[s] = struct{}{}
	}
	if len(c.PermittedEvents) > 0 {
		c.allEvents = append([]string(nil), c.PermittedEvents...)
		sort.Strings(c.allEvents)
		return
	}
	seen := make(map[string]struct{})
	for _, rs := range c.Roles {
		for _, events := range rs {
			for event := range events {
				seen[event] = struct{}{}
			}
		}
	}
	c.allEvents = make([]string, 0, len(seen))
	for event := range seen {
		c.allEvents = append(c.allEvents, event)
	}
	sort.Strings(c.allEvents)
}

// NewWorkflowConfig builds a configuration assembled in code, deriving the
// same lookup structures the loader builds for YAML-sourced configs.
func NewWorkflowConfig(cfg WorkflowConfig) *WorkflowConfig {
	c := cfg
	c.finalize()
	return &c
}

// ConfigSet holds one WorkflowConfig per case type and workflow variant,
// keyed by "<case_type>/<workflow>".
type ConfigSet map[string]*WorkflowConfig

// ForCase selects the configuration variant for a case's type and workflow.
func (s ConfigSet) ForCase(caseType, workflow string) (*WorkflowConfig, error) {
	cfg, ok := s[caseType+"/"+workflow]
	if !ok {
		return nil, fmt.Errorf("no workflow configuration for case type %q workflow %q", caseType, workflow)
	}
	return cfg, nil
}

func (s ConfigSet) add(cfg *WorkflowConfig) {
	s[cfg.CaseType+"/"+cfg.Workflow] = cfg
}
