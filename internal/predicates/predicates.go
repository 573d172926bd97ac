// Package predicates holds the named guards, destination resolvers and
// after-transition hooks referenced from the workflow configuration files.
// Each is registered under the "Type#method" reference the YAML uses.
package predicates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"caseflow/casework-backend/internal/statemachine"
)

// Register wires the casework predicate set into the registry. Must run
// before the workflow configuration is loaded, since the loader resolves
// every reference at load time.
func Register(registry *statemachine.Registry, dir statemachine.Directory, logger *zap.Logger) {
	registry.RegisterGuard("CanAcceptOrReject#call", statemachine.GuardFunc(canAcceptOrReject))
	registry.RegisterGuard("CaseOpen#call", statemachine.GuardFunc(caseOpen))
	registry.RegisterGuard("ResponderMember#call", responderMember{dir: dir})

	registry.RegisterStateResolver("UploadResponse#next_state", statemachine.StateResolverFunc(uploadResponseNextState))

	registry.RegisterWorkflowResolver("ClearanceFlag#workflow", statemachine.WorkflowResolverFunc(clearanceFlagWorkflow))

	registry.RegisterAfterHook("AssignmentNotifier#responder_assignment", &assignmentNotifier{logger: logger})
}

// canAcceptOrReject gates responder accept/reject: only meaningful while
// the case is still waiting on the responder.
func canAcceptOrReject(_ context.Context, user *statemachine.User, entity statemachine.Entity) (bool, error) {
	if user == nil {
		return false, nil
	}
	return entity.GetCurrentState() == "awaiting_responder", nil
}

func caseOpen(_ context.Context, _ *statemachine.User, entity statemachine.Entity) (bool, error) {
	return entity.GetCurrentState() != "closed", nil
}

// responderMember passes when the user holds the responder role anywhere.
type responderMember struct {
	dir statemachine.Directory
}

func (g responderMember) Evaluate(ctx context.Context, user *statemachine.User, _ statemachine.Entity) (bool, error) {
	if user == nil {
		return false, nil
	}
	roles, err := g.dir.RolesOfUser(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("roles of user %s: %w", user.ID, err)
	}
	for _, role := range roles {
		if role == "responder" {
			return true, nil
		}
	}
	return false, nil
}

// uploadResponseNextState sends trigger-workflow cases through clearance;
// everything else goes straight to dispatch.
func uploadResponseNextState(_ context.Context, _ *statemachine.User, entity statemachine.Entity) (string, error) {
	if entity.GetWorkflow() == "trigger" {
		return "pending_clearance", nil
	}
	return "awaiting_dispatch", nil
}

func clearanceFlagWorkflow(_ context.Context, _ *statemachine.User, _ statemachine.Entity) (string, error) {
	return "trigger", nil
}

// assignmentNotifier records that a responder assignment notification is
// due. Delivery itself is outside this service.
type assignmentNotifier struct {
	logger *zap.Logger
}

func (h *assignmentNotifier) Run(_ context.Context, user *statemachine.User, entity statemachine.Entity, md *statemachine.Metadata) error {
	fields := []zap.Field{
		zap.String("case_id", entity.GetID().String()),
		zap.String("to_state", entity.GetCurrentState()),
	}
	if user != nil {
		fields = append(fields, zap.String("acting_user", user.ID.String()))
	}
	if md != nil && md.TargetTeam != nil {
		fields = append(fields, zap.String("target_team", md.TargetTeam.ID.String()))
	}
	h.logger.Info("responder assignment notification queued", fields...)
	return nil
}
