package storage

import (
	"context"
	"fmt"

	"adoptiq/internal/rbac"
)

// AllResources is the resource_id wildcard granting a user every
// record of a resource type.
const AllResources = "*"

// AccessibleResources implements rbac.PermissionStore.
func (s *Store) AccessibleResources(ctx context.Context, userID string, resource rbac.ResourceType) (rbac.Access, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT resource_id FROM user_permissions WHERE user_id = ? AND resource_type = ?",
		userID, string(resource))
	if err != nil {
		return rbac.Access{}, fmt.Errorf("loading permissions: %w", err)
	}
	defer rows.Close()

	var access rbac.Access
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return rbac.Access{}, err
		}
		if id == AllResources {
			return rbac.Access{All: true}, rows.Err()
		}
		access.IDs = append(access.IDs, id)
	}
	return access, rows.Err()
}

// Grant records that a user may access one resource, or all of a
// type when resourceID is AllResources.
func (s *Store) Grant(ctx context.Context, userID string, resource rbac.ResourceType, resourceID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_permissions (user_id, resource_type, resource_id) VALUES (?, ?, ?)",
		userID, string(resource), resourceID)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}
	return nil
}

// Revoke removes one grant.
func (s *Store) Revoke(ctx context.Context, userID string, resource rbac.ResourceType, resourceID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_permissions WHERE user_id = ? AND resource_type = ? AND resource_id = ?",
		userID, string(resource), resourceID)
	if err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}
	return nil
}
