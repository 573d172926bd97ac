package statemachine

import (
	"context"

	"github.com/google/uuid"
)

// User is the directory view of an actor. Roles are not carried here; they
// are resolved through the Directory so that team-scoped roles stay fresh.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// Team is the directory view of a team. Role is the team's own capability
// profile, used to attribute transitions in the audit trail.
type Team struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// Directory looks up users, teams and role memberships. Implemented by
// internal/directory against the users/teams tables.
type Directory interface {
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
	FindTeam(ctx context.Context, id uuid.UUID) (*Team, error)
	RolesOfUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	RolesOfUserForTeam(ctx context.Context, userID, teamID uuid.UUID) ([]string, error)
}

// Entity is the workflow-bearing object whose lifecycle the machine drives.
// The machine only reads these fields; mutation goes through TransitionStore.
type Entity interface {
	GetID() uuid.UUID
	GetType() string
	GetCurrentState() string
	GetWorkflow() string
}

// Metadata carries the per-operation actor description. It is constructed
// per call and never stored; Extra is persisted verbatim onto the audit
// record. Either the object or the id form of each actor may be supplied.
type Metadata struct {
	ActingUser   *User
	ActingUserID uuid.UUID
	ActingTeam   *Team
	ActingTeamID uuid.UUID
	TargetUser   *User
	TargetTeam   *Team
	Roles        []string
	Extra        map[string]any
}

// HasActingUser reports whether an acting user is identifiable.
func (m *Metadata) HasActingUser() bool {
	return m != nil && (m.ActingUser != nil || m.ActingUserID != uuid.Nil)
}

// HasActingTeam reports whether an acting team is identifiable.
func (m *Metadata) HasActingTeam() bool {
	return m != nil && (m.ActingTeam != nil || m.ActingTeamID != uuid.Nil)
}

func (m *Metadata) resolveUser(ctx context.Context, dir Directory) (*User, error) {
	if m == nil {
		return nil, nil
	}
	if m.ActingUser != nil {
		return m.ActingUser, nil
	}
	if m.ActingUserID == uuid.Nil {
		return nil, nil
	}
	return dir.FindUser(ctx, m.ActingUserID)
}

func (m *Metadata) resolveTeam(ctx context.Context, dir Directory) (*Team, error) {
	if m == nil {
		return nil, nil
	}
	if m.ActingTeam != nil {
		return m.ActingTeam, nil
	}
	if m.ActingTeamID == uuid.Nil {
		return nil, nil
	}
	return dir.FindTeam(ctx, m.ActingTeamID)
}
