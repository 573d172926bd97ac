package statemachine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// caseTypeFile is the YAML document shape of one workflow configuration
// file. Event bodies decode to *EventConfig so that an explicit null body
// survives as a nil pointer rather than collapsing into "absent".
type caseTypeFile struct {
	CaseType           string                  `yaml:"case_type"`
	PermittedStates    []string                `yaml:"permitted_states"`
	PermittedWorkflows []string                `yaml:"permitted_workflows"`
	PermittedEvents    []string                `yaml:"permitted_events"`
	Workflows          map[string]workflowNode `yaml:"workflows"`
}

type workflowNode struct {
	InitialState string                `yaml:"initial_state"`
	UserRoles    map[string]RoleStates `yaml:"user_roles"`
}

// Loader parses workflow configuration files and validates every
// "Type#method" reference against the registry, so that a typo in the
// configuration is caught at startup rather than mid-transition.
type Loader struct {
	registry *Registry
}

func NewLoader(registry *Registry) *Loader {
	return &Loader{registry: registry}
}

// LoadDir loads every .yml/.yaml file in dir into one ConfigSet.
func (l *Loader) LoadDir(dir string) (ConfigSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workflow config dir: %w", err)
	}
	set := make(ConfigSet)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		cfgs, err := l.Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		for _, cfg := range cfgs {
			set.add(cfg)
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no workflow configuration files in %s", dir)
	}
	return set, nil
}

// Load parses one case type document and returns its workflow variants.
func (l *Loader) Load(r io.Reader) ([]*WorkflowConfig, error) {
	var file caseTypeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode workflow config: %w", err)
	}
	if file.CaseType == "" {
		return nil, fmt.Errorf("case_type is required")
	}
	if len(file.Workflows) == 0 {
		return nil, fmt.Errorf("case type %q declares no workflows", file.CaseType)
	}

	permitted := make(map[string]struct{}, len(file.PermittedWorkflows))
	for _, w := range file.PermittedWorkflows {
		permitted[w] = struct{}{}
	}

	var configs []*WorkflowConfig
	for name, node := range file.Workflows {
		if len(file.PermittedWorkflows) > 0 {
			if _, ok := permitted[name]; !ok {
				return nil, fmt.Errorf("case type %q: workflow %q is not in permitted_workflows", file.CaseType, name)
			}
		}
		cfg := &WorkflowConfig{
			CaseType:        file.CaseType,
			Workflow:        name,
			InitialState:    node.InitialState,
			States:          file.PermittedStates,
			PermittedEvents: file.PermittedEvents,
			Roles:           node.UserRoles,
		}
		cfg.finalize()
		if err := l.validate(cfg); err != nil {
			return nil, fmt.Errorf("case type %q workflow %q: %w", file.CaseType, name, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (l *Loader) validate(cfg *WorkflowConfig) error {
	if cfg.InitialState == "" {
		return fmt.Errorf("initial_state is required")
	}
	if !cfg.HasState(cfg.InitialState) {
		return fmt.Errorf("initial_state %q is not a permitted state", cfg.InitialState)
	}
	for role, states := range cfg.Roles {
		for state, events := range states {
			if !cfg.HasState(state) {
				return fmt.Errorf("role %q: state %q is not a permitted state", role, state)
			}
			for event, ec := range events {
				if ec == nil {
					continue
				}
				if err := l.validateEvent(cfg, ec); err != nil {
					return fmt.Errorf("role %q state %q event %q: %w", role, state, event, err)
				}
			}
		}
	}
	return nil
}

func (l *Loader) validateEvent(cfg *WorkflowConfig, ec *EventConfig) error {
	if ec.TransitionTo != "" && ec.TransitionToUsing != "" {
		return fmt.Errorf("transition_to and transition_to_using are mutually exclusive")
	}
	if ec.SwitchWorkflow != "" && ec.SwitchWorkflowUsing != "" {
		return fmt.Errorf("switch_workflow and switch_workflow_using are mutually exclusive")
	}
	if ec.TransitionTo != "" && !cfg.HasState(ec.TransitionTo) {
		return fmt.Errorf("transition_to %q is not a permitted state", ec.TransitionTo)
	}
	if ec.Guard != "" {
		if err := checkRef(ec.Guard); err != nil {
			return err
		}
		if _, err := l.registry.Guard(ec.Guard); err != nil {
			return err
		}
	}
	if ec.TransitionToUsing != "" {
		if err := checkRef(ec.TransitionToUsing); err != nil {
			return err
		}
		if _, err := l.registry.StateResolver(ec.TransitionToUsing); err != nil {
			return err
		}
	}
	if ec.SwitchWorkflowUsing != "" {
		if err := checkRef(ec.SwitchWorkflowUsing); err != nil {
			return err
		}
		if _, err := l.registry.WorkflowResolver(ec.SwitchWorkflowUsing); err != nil {
			return err
		}
	}
	if ec.AfterTransition != "" {
		if err := checkRef(ec.AfterTransition); err != nil {
			return err
		}
		if _, err := l.registry.AfterHook(ec.AfterTransition); err != nil {
			return err
		}
	}
	return nil
}

func checkRef(ref string) error {
	parts := strings.Split(ref, "#")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("reference %q is not of the form Type#method", ref)
	}
	return nil
}
