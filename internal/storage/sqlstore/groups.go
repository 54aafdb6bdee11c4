package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

// InsertGroup persists a new group.
func (q *queries) InsertGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.UpdatedAt = group.CreatedAt
	if group.Attributes.Version == 0 {
		group.Attributes.Version = models.GroupAttributesVersion
	}

	data, err := json.Marshal(group.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode group attributes: %w", err)
	}

	_, err = q.exec(ctx,
		"INSERT INTO groups (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Name, string(data), group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves an active group by ID.
func (q *queries) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var data string

	err := q.queryRow(ctx,
		`SELECT id, name, data, created_at, updated_at
		 FROM groups WHERE id = ? AND deleted_at IS NULL`,
		groupID,
	).Scan(&group.ID, &group.Name, &data, &group.CreatedAt, &group.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &group.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode group attributes: %w", err)
	}
	return group, nil
}

// UpdateGroupName renames an active group.
func (q *queries) UpdateGroupName(ctx context.Context, groupID, name string) error {
	res, err := q.exec(ctx,
		"UPDATE groups SET name = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		name, time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireRow(res, "group", groupID)
}

// SoftDeleteGroup marks an active group as deleted.
func (q *queries) SoftDeleteGroup(ctx context.Context, groupID string) error {
	now := time.Now().Unix()
	res, err := q.exec(ctx,
		"UPDATE groups SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireRow(res, "group", groupID)
}

// LockGroup bumps updated_at of an active group, which holds the row's
// write lock until the transaction ends.
func (q *queries) LockGroup(ctx context.Context, groupID string) error {
	res, err := q.exec(ctx,
		"UPDATE groups SET updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to lock group: %w", err)
	}
	return requireRow(res, "group", groupID)
}

// ListGroupsForUser lists the active groups the user belongs to, newest first.
func (q *queries) ListGroupsForUser(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	rows, err := q.query(ctx,
		`SELECT g.id, g.name, m.role
		 FROM groups g
		 JOIN group_memberships m ON m.group_id = g.id
		 WHERE m.user_id = ? AND g.deleted_at IS NULL
		 ORDER BY g.created_at DESC, g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.GroupSummary
	for rows.Next() {
		var g models.GroupSummary
		var role string
		if err := rows.Scan(&g.ID, &g.Name, &role); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if g.Role, err = models.ParseRole(role); err != nil {
			return nil, fmt.Errorf("group %s: %w", g.ID, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, nil
}

// InsertMemberships adds memberships, ignoring pairs that already exist.
func (q *queries) InsertMemberships(ctx context.Context, memberships []models.Membership) (int, error) {
	now := time.Now().Unix()
	created := 0
	for _, m := range memberships {
		if !m.Role.Valid() {
			return created, fmt.Errorf("invalid role %v for user %s", m.Role, m.UserID)
		}
		res, err := q.exec(ctx,
			`INSERT INTO group_memberships (user_id, group_id, role, joined_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, group_id) DO NOTHING`,
			m.UserID, m.GroupID, m.Role.String(), now,
		)
		if err != nil {
			return created, fmt.Errorf("failed to insert membership: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("failed to read affected rows: %w", err)
		}
		created += int(n)
	}
	return created, nil
}

// UpdateMembershipRole changes the role of an existing membership.
func (q *queries) UpdateMembershipRole(ctx context.Context, groupID, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %v", role)
	}
	res, err := q.exec(ctx,
		"UPDATE group_memberships SET role = ? WHERE group_id = ? AND user_id = ?",
		role.String(), groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return requireRow(res, "membership", userID)
}

// DeleteMemberships removes the given users from the group.
func (q *queries) DeleteMemberships(ctx context.Context, groupID string, userIDs []string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res, err := q.exec(ctx,
		"DELETE FROM group_memberships WHERE group_id = ? AND user_id IN ("+placeholders(len(userIDs))+")",
		stringArgs([]any{groupID}, userIDs)...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memberships: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// GetMembership returns the user's membership in an active group.
func (q *queries) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	var role string

	err := q.queryRow(ctx,
		`SELECT m.user_id, m.group_id, m.role
		 FROM group_memberships m
		 JOIN groups g ON g.id = m.group_id
		 WHERE m.group_id = ? AND m.user_id = ? AND g.deleted_at IS NULL`,
		groupID, userID,
	).Scan(&m.UserID, &m.GroupID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership of %s in %s: %w", userID, groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	if m.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("membership of %s: %w", userID, err)
	}
	return m, nil
}

// ListMemberships lists the memberships of an active group in join order.
func (q *queries) ListMemberships(ctx context.Context, groupID string) ([]models.Membership, error) {
	rows, err := q.query(ctx,
		`SELECT m.user_id, m.group_id, m.role
		 FROM group_memberships m
		 JOIN groups g ON g.id = m.group_id
		 WHERE m.group_id = ? AND g.deleted_at IS NULL
		 ORDER BY m.joined_at, m.user_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		var role string
		if err := rows.Scan(&m.UserID, &m.GroupID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		if m.Role, err = models.ParseRole(role); err != nil {
			return nil, fmt.Errorf("membership of %s: %w", m.UserID, err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// ListCurrentMembers lists the user IDs of an active group's members.
func (q *queries) ListCurrentMembers(ctx context.Context, groupID string) ([]string, error) {
	memberships, err := q.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	return ids, nil
}

// requireRow maps an UPDATE/DELETE that touched nothing to storage.ErrNotFound.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
