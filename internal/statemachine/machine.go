package statemachine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Translator maps raw event names to human-readable labels.
type Translator interface {
	EventLabel(caseType, event string) string
}

// Machine interprets a workflow configuration against one entity. It
// evaluates permissions, computes destinations and applies transitions
// atomically through the TransitionStore. A Machine is cheap to construct
// and meant to live for one request.
type Machine struct {
	config     *WorkflowConfig
	entity     Entity
	store      TransitionStore
	dir        Directory
	roles      *RoleResolver
	registry   *Registry
	translator Translator
	logger     *zap.Logger
}

// MachineParams collects the collaborators a Machine needs. Translator is
// optional; everything else is required.
type MachineParams struct {
	Config     *WorkflowConfig
	Entity     Entity
	Store      TransitionStore
	Directory  Directory
	Registry   *Registry
	Translator Translator
	Logger     *zap.Logger
}

func NewMachine(p MachineParams) *Machine {
	return &Machine{
		config:     p.Config,
		entity:     p.Entity,
		store:      p.Store,
		dir:        p.Directory,
		roles:      NewRoleResolver(p.Directory),
		registry:   p.Registry,
		translator: p.Translator,
		logger:     p.Logger,
	}
}

// CurrentState returns the entity's cached state, falling back to the
// configured initial state for a freshly created entity.
func (m *Machine) CurrentState() string {
	if s := m.entity.GetCurrentState(); s != "" {
		return s
	}
	return m.config.InitialState
}

// Events returns every event name this configuration knows about.
func (m *Machine) Events() []string {
	return m.config.AllEvents()
}

// EventLabel returns the human-readable label for a known event, or the
// empty string for an event this configuration does not declare.
func (m *Machine) EventLabel(event string) string {
	known := false
	for _, e := range m.config.AllEvents() {
		if e == event {
			known = true
			break
		}
	}
	if !known {
		return ""
	}
	if m.translator == nil {
		return event
	}
	return m.translator.EventLabel(m.entity.GetType(), event)
}

// CanTriggerEvent reports whether any of the candidate roles authorizes
// event in the entity's current state. Roles come from md.Roles when set,
// otherwise from the role resolution algorithm. A guard that fails to
// execute aborts the check rather than counting as "false".
func (m *Machine) CanTriggerEvent(ctx context.Context, event string, md *Metadata) (bool, error) {
	roles, err := m.roles.ResolveRoles(ctx, md)
	if err != nil {
		return false, err
	}
	user, err := md.resolveUser(ctx, m.dir)
	if err != nil {
		return false, fmt.Errorf("resolve acting user: %w", err)
	}
	state := m.CurrentState()
	for _, role := range roles {
		cfg, lookup := m.config.EventConfig(role, state, event)
		switch lookup {
		case EventAbsent:
			continue
		case EventUnconditional:
			return true, nil
		case EventConfigured:
			ok, err := m.guardPasses(ctx, cfg, user)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// PermittedEvents returns the sorted, deduplicated events the user may
// trigger in the entity's current state across all roles they hold.
func (m *Machine) PermittedEvents(ctx context.Context, userID uuid.UUID) ([]string, error) {
	user, err := m.dir.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	roles, err := m.dir.RolesOfUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roles of user %s: %w", userID, err)
	}
	state := m.CurrentState()
	seen := make(map[string]struct{})
	for _, role := range roles {
		rs, ok := m.config.RoleConfig(role)
		if !ok {
			continue
		}
		for event, cfg := range rs[state] {
			if _, dup := seen[event]; dup {
				continue
			}
			ok, err := m.guardPasses(ctx, cfg, user)
			if err != nil {
				return nil, err
			}
			if ok {
				seen[event] = struct{}{}
			}
		}
	}
	events := make([]string, 0, len(seen))
	for event := range seen {
		events = append(events, event)
	}
	sort.Strings(events)
	return events, nil
}

// TriggerEvent fires event against the entity. The transition is
// attributed to the acting team's role, while authorization considers every
// role the acting user holds. On success the previous most-recent audit
// record is cleared, a new record is appended and the entity's cached state
// and workflow are updated, all in one atomic unit; the after-transition
// hook, when configured, runs inside that unit and a hook error rolls the
// transition back.
func (m *Machine) TriggerEvent(ctx context.Context, event string, md *Metadata) error {
	if !md.HasActingUser() || !md.HasActingTeam() {
		return fmt.Errorf("trigger %q on case %s: %w", event, m.entity.GetID(), ErrInvalidArguments)
	}
	team, err := md.resolveTeam(ctx, m.dir)
	if err != nil {
		return fmt.Errorf("resolve acting team: %w", err)
	}
	role := team.Role
	if _, ok := m.config.RoleConfig(role); !ok {
		return &InvalidEventError{
			CaseID: m.entity.GetID(),
			Event:  event,
			Role:   role,
			State:  m.CurrentState(),
			Reason: "no workflow configuration for role",
		}
	}
	if _, lookup := m.config.EventConfig(role, m.CurrentState(), event); lookup == EventAbsent {
		return &InvalidEventError{
			CaseID: m.entity.GetID(),
			Event:  event,
			Role:   role,
			State:  m.CurrentState(),
			Reason: "event not configured for role in this state",
		}
	}
	can, err := m.CanTriggerEvent(ctx, event, md)
	if err != nil {
		return fmt.Errorf("authorize %q: %w", event, err)
	}
	if !can {
		return &InvalidEventError{
			CaseID: m.entity.GetID(),
			Event:  event,
			Role:   role,
			State:  m.CurrentState(),
			Reason: "event not permitted for role in this state",
		}
	}
	user, err := md.resolveUser(ctx, m.dir)
	if err != nil {
		return fmt.Errorf("resolve acting user: %w", err)
	}

	err = m.store.Atomically(ctx, func(ctx context.Context, tx TransitionStore) error {
		// The store refreshes the entity from the locked row, so the
		// event config must be re-read against the serialized state.
		cfg, lookup := m.config.EventConfig(role, m.CurrentState(), event)
		if lookup == EventAbsent {
			return &InvalidEventError{
				CaseID: m.entity.GetID(),
				Event:  event,
				Role:   role,
				State:  m.CurrentState(),
				Reason: "event not configured for role in this state",
			}
		}
		toState, err := m.destinationState(ctx, cfg, user)
		if err != nil {
			return err
		}
		toWorkflow, err := m.destinationWorkflow(ctx, cfg, user)
		if err != nil {
			return err
		}
		if err := tx.UnsetMostRecent(ctx); err != nil {
			return fmt.Errorf("unset most recent: %w", err)
		}
		sortKey, err := tx.NextSortKey(ctx)
		if err != nil {
			return fmt.Errorf("next sort key: %w", err)
		}
		rec := &TransitionRecord{
			Event:      event,
			ToState:    toState,
			ToWorkflow: toWorkflow,
			SortKey:    sortKey,
			MostRecent: true,
			Metadata:   copyExtra(md.Extra),
		}
		if user != nil {
			rec.ActingUserID = &user.ID
		}
		rec.ActingTeamID = &team.ID
		if md.TargetUser != nil {
			rec.TargetUserID = &md.TargetUser.ID
		}
		if md.TargetTeam != nil {
			rec.TargetTeamID = &md.TargetTeam.ID
		}
		if err := tx.CreateTransition(ctx, rec); err != nil {
			return fmt.Errorf("write transition: %w", err)
		}
		if err := tx.UpdateEntityState(ctx, toState, toWorkflow); err != nil {
			return fmt.Errorf("update case state: %w", err)
		}
		if cfg != nil && cfg.AfterTransition != "" {
			hook, err := m.registry.AfterHook(cfg.AfterTransition)
			if err != nil {
				return err
			}
			if err := hook.Run(ctx, user, m.entity, md); err != nil {
				return fmt.Errorf("after-transition %q: %w", cfg.AfterTransition, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("case transition applied",
		zap.String("case_id", m.entity.GetID().String()),
		zap.String("event", event),
		zap.String("role", role),
		zap.String("to_state", m.entity.GetCurrentState()),
		zap.String("to_workflow", m.entity.GetWorkflow()))
	return nil
}

func (m *Machine) guardPasses(ctx context.Context, cfg *EventConfig, user *User) (bool, error) {
	if cfg == nil || cfg.Guard == "" {
		return true, nil
	}
	guard, err := m.registry.Guard(cfg.Guard)
	if err != nil {
		return false, err
	}
	ok, err := guard.Evaluate(ctx, user, m.entity)
	if err != nil {
		return false, fmt.Errorf("guard %q: %w", cfg.Guard, err)
	}
	return ok, nil
}

func (m *Machine) destinationState(ctx context.Context, cfg *EventConfig, user *User) (string, error) {
	if cfg == nil {
		return m.CurrentState(), nil
	}
	switch {
	case cfg.TransitionTo != "":
		return cfg.TransitionTo, nil
	case cfg.TransitionToUsing != "":
		resolver, err := m.registry.StateResolver(cfg.TransitionToUsing)
		if err != nil {
			return "", err
		}
		to, err := resolver.ComputeState(ctx, user, m.entity)
		if err != nil {
			return "", fmt.Errorf("transition_to_using %q: %w", cfg.TransitionToUsing, err)
		}
		if !m.config.HasState(to) {
			return "", fmt.Errorf("transition_to_using %q returned undeclared state %q", cfg.TransitionToUsing, to)
		}
		return to, nil
	default:
		return m.CurrentState(), nil
	}
}

func (m *Machine) destinationWorkflow(ctx context.Context, cfg *EventConfig, user *User) (string, error) {
	if cfg == nil {
		return m.entity.GetWorkflow(), nil
	}
	switch {
	case cfg.SwitchWorkflowUsing != "":
		resolver, err := m.registry.WorkflowResolver(cfg.SwitchWorkflowUsing)
		if err != nil {
			return "", err
		}
		wf, err := resolver.ComputeWorkflow(ctx, user, m.entity)
		if err != nil {
			return "", fmt.Errorf("switch_workflow_using %q: %w", cfg.SwitchWorkflowUsing, err)
		}
		return wf, nil
	case cfg.SwitchWorkflow != "":
		return cfg.SwitchWorkflow, nil
	default:
		return m.entity.GetWorkflow(), nil
	}
}

// copyExtra snapshots caller-supplied metadata so the audit write never
// aliases or mutates the caller's map.
func copyExtra(extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
