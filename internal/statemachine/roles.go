package statemachine

import (
	"context"
	"fmt"
)

// RoleResolver derives the ordered set of candidate roles for an operation
// from the actor metadata. Order is stable: explicit roles verbatim, then
// the directory's own ordering for derived roles.
type RoleResolver struct {
	dir Directory
}

func NewRoleResolver(dir Directory) *RoleResolver {
	return &RoleResolver{dir: dir}
}

// ResolveRoles returns the roles to evaluate for md. Explicit roles win.
// Otherwise, with no resolvable team the user's global roles apply; with a
// team, the user's roles for that team apply, falling back to the team's
// own declared role when the user holds none there.
func (r *RoleResolver) ResolveRoles(ctx context.Context, md *Metadata) ([]string, error) {
	if md != nil && len(md.Roles) > 0 {
		return md.Roles, nil
	}
	team, err := md.resolveTeam(ctx, r.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve acting team: %w", err)
	}
	user, err := md.resolveUser(ctx, r.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve acting user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("resolve roles: %w", ErrInvalidArguments)
	}
	if team == nil {
		roles, err := r.dir.RolesOfUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("roles of user %s: %w", user.ID, err)
		}
		return roles, nil
	}
	roles, err := r.dir.RolesOfUserForTeam(ctx, user.ID, team.ID)
	if err != nil {
		return nil, fmt.Errorf("roles of user %s for team %s: %w", user.ID, team.ID, err)
	}
	if len(roles) > 0 {
		return roles, nil
	}
	return []string{team.Role}, nil
}
