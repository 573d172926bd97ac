package statemachine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rolesFixture() (*fakeDirectory, *User, *Team) {
	user := &User{ID: uuid.New(), Email: "caseworker@example.com"}
	team := &Team{ID: uuid.New(), Name: "Disclosure Team", Role: "approver"}
	dir := &fakeDirectory{
		users:     map[uuid.UUID]*User{user.ID: user},
		teams:     map[uuid.UUID]*Team{team.ID: team},
		roles:     map[uuid.UUID][]string{user.ID: {"manager", "responder"}},
		teamRoles: map[string][]string{},
	}
	return dir, user, team
}

func TestResolveRolesExplicitOverride(t *testing.T) {
	dir, user, _ := rolesFixture()
	resolver := NewRoleResolver(dir)

	roles, err := resolver.ResolveRoles(context.Background(),
		&Metadata{ActingUser: user, Roles: []string{"press_officer"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"press_officer"}, roles)
}

func TestResolveRolesGlobalWhenNoTeam(t *testing.T) {
	dir, user, _ := rolesFixture()
	resolver := NewRoleResolver(dir)

	roles, err := resolver.ResolveRoles(context.Background(), &Metadata{ActingUser: user})
	require.NoError(t, err)
	assert.Equal(t, []string{"manager", "responder"}, roles)
}

func TestResolveRolesTeamSpecificWins(t *testing.T) {
	dir, user, team := rolesFixture()
	dir.teamRoles[user.ID.String()+"/"+team.ID.String()] = []string{"responder"}
	resolver := NewRoleResolver(dir)

	roles, err := resolver.ResolveRoles(context.Background(),
		&Metadata{ActingUser: user, ActingTeam: team})
	require.NoError(t, err)
	assert.Equal(t, []string{"responder"}, roles)
}

func TestResolveRolesFallsBackToTeamRole(t *testing.T) {
	dir, user, team := rolesFixture()
	resolver := NewRoleResolver(dir)

	roles, err := resolver.ResolveRoles(context.Background(),
		&Metadata{ActingUser: user, ActingTeam: team})
	require.NoError(t, err)
	assert.Equal(t, []string{"approver"}, roles)
}

func TestResolveRolesByIDs(t *testing.T) {
	dir, user, team := rolesFixture()
	resolver := NewRoleResolver(dir)

	roles, err := resolver.ResolveRoles(context.Background(),
		&Metadata{ActingUserID: user.ID, ActingTeamID: team.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"approver"}, roles)
}

func TestResolveRolesRequiresUser(t *testing.T) {
	dir, _, _ := rolesFixture()
	resolver := NewRoleResolver(dir)

	_, err := resolver.ResolveRoles(context.Background(), &Metadata{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}
