package cases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"caseflow/casework-backend/internal/statemachine"
)

// CreateCaseRequest carries the fields needed to open a new case. The
// initial state comes from the workflow configuration, never the caller.
type CreateCaseRequest struct {
	Number   string `json:"number" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Subject  string `json:"subject"`
	Workflow string `json:"workflow"`
}

// EventInfo pairs an event name with its display label.
type EventInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Service orchestrates case operations: it loads the case, selects the
// workflow configuration for its type and workflow tag, and drives the
// state machine.
type Service struct {
	repo       Repository
	dir        statemachine.Directory
	configs    statemachine.ConfigSet
	registry   *statemachine.Registry
	translator statemachine.Translator
	logger     *zap.Logger
}

func NewService(
	repo Repository,
	dir statemachine.Directory,
	configs statemachine.ConfigSet,
	registry *statemachine.Registry,
	translator statemachine.Translator,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		dir:        dir,
		configs:    configs,
		registry:   registry,
		translator: translator,
		logger:     logger,
	}
}

// CreateCase opens a case in the configured initial state.
func (s *Service) CreateCase(ctx context.Context, req CreateCaseRequest) (*Case, error) {
	workflow := req.Workflow
	if workflow == "" {
		workflow = "standard"
	}
	cfg, err := s.configs.ForCase(req.Type, workflow)
	if err != nil {
		return nil, err
	}
	kase := &Case{
		Number:       req.Number,
		Type:         req.Type,
		Subject:      req.Subject,
		CurrentState: cfg.InitialState,
		Workflow:     workflow,
	}
	if err := s.repo.CreateCase(ctx, kase); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	s.logger.Info("case created",
		zap.String("case_id", kase.ID.String()),
		zap.String("type", kase.Type),
		zap.String("state", kase.CurrentState))
	return kase, nil
}

// GetCase loads one case.
func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.repo.GetCase(ctx, id)
}

// ListTransitions returns the case's audit history in sort-key order.
func (s *Service) ListTransitions(ctx context.Context, caseID uuid.UUID) ([]CaseTransition, error) {
	if _, err := s.repo.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, caseID)
}

// TriggerEvent fires an event against a case and returns the case with its
// post-transition state.
func (s *Service) TriggerEvent(ctx context.Context, caseID uuid.UUID, event string, md *statemachine.Metadata) (*Case, error) {
	kase, machine, err := s.machineFor(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := machine.TriggerEvent(ctx, event, md); err != nil {
		return nil, err
	}
	return kase, nil
}

// CanTrigger reports whether the actor described by md may fire event.
func (s *Service) CanTrigger(ctx context.Context, caseID uuid.UUID, event string, md *statemachine.Metadata) (bool, error) {
	_, machine, err := s.machineFor(ctx, caseID)
	if err != nil {
		return false, err
	}
	return machine.CanTriggerEvent(ctx, event, md)
}

// PermittedEvents lists the events the user may trigger on the case in its
// current state, with display labels.
func (s *Service) PermittedEvents(ctx context.Context, caseID, userID uuid.UUID) ([]EventInfo, error) {
	_, machine, err := s.machineFor(ctx, caseID)
	if err != nil {
		return nil, err
	}
	names, err := machine.PermittedEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	infos := make([]EventInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, EventInfo{Name: name, Label: machine.EventLabel(name)})
	}
	return infos, nil
}

// EventLabel resolves the display label for an event on a case.
func (s *Service) EventLabel(ctx context.Context, caseID uuid.UUID, event string) (string, error) {
	_, machine, err := s.machineFor(ctx, caseID)
	if err != nil {
		return "", err
	}
	return machine.EventLabel(event), nil
}

func (s *Service) machineFor(ctx context.Context, caseID uuid.UUID) (*Case, *statemachine.Machine, error) {
	kase, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.configs.ForCase(kase.Type, kase.Workflow)
	if err != nil {
		return nil, nil, err
	}
	machine := statemachine.NewMachine(statemachine.MachineParams{
		Config:     cfg,
		Entity:     kase,
		Store:      s.repo.StoreFor(kase),
		Directory:  s.dir,
		Registry:   s.registry,
		Translator: s.translator,
		Logger:     s.logger,
	})
	return kase, machine, nil
}
