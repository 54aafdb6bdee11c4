package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/groupledger/internal/storage"
)

// Directory answers identity questions for the services: which user owns an
// email, and what to call a user.
type Directory struct {
	users storage.UserStore
}

// NewDirectory creates a Directory backed by the user store.
func NewDirectory(users storage.UserStore) *Directory {
	return &Directory{users: users}
}

// ResolveEmails maps each known email (normalized) to its user ID. Emails with
// no account are returned in unknown, in input order.
func (d *Directory) ResolveEmails(ctx context.Context, emails []string) (ids map[string]string, unknown []string, err error) {
	normalized := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if !seen[e] {
			seen[e] = true
			normalized = append(normalized, e)
		}
	}

	users, err := d.users.GetUsersByEmails(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve emails: %w", err)
	}

	ids = make(map[string]string, len(users))
	for _, e := range normalized {
		if u, ok := users[e]; ok {
			ids[e] = u.ID
		} else {
			unknown = append(unknown, e)
		}
	}
	return ids, unknown, nil
}

// UserInfo is the public view of a user.
type UserInfo struct {
	Username string
	Email    string
}

// Lookup returns public info for each known user ID. Unknown IDs are omitted.
func (d *Directory) Lookup(ctx context.Context, userIDs []string) (map[string]UserInfo, error) {
	users, err := d.users.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	out := make(map[string]UserInfo, len(users))
	for id, u := range users {
		out[id] = UserInfo{Username: username(u.DisplayName, u.Email), Email: u.Email}
	}
	return out, nil
}

// username falls back to the local part of the email when no display name is set.
func username(displayName, email string) string {
	if displayName != "" {
		return displayName
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
