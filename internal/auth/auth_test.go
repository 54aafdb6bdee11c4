package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

type memUsers struct {
	byID map[string]*models.User
	err  error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]*models.User)}
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	if m.err != nil {
		return m.err
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memUsers) GetUsersByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User)
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memUsers) GetUsersByEmails(_ context.Context, emails []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User)
	for _, e := range emails {
		for _, u := range m.byID {
			if u.Email == e {
				out[e] = u
			}
		}
	}
	return out, nil
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	a := NewPasswordAuthenticator(users).WithCost(bcrypt.MinCost)

	user, err := a.Register(ctx, "  Alice@Example.com ", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("password stored in clear")
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := a.Register(ctx, "alice@example.com", "Other", "another password")
		if !errors.Is(err, ErrEmailExists) {
			t.Errorf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := a.Register(ctx, "bob@example.com", "Bob", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})

	t.Run("login", func(t *testing.T) {
		got, err := a.Authenticate(ctx, "ALICE@example.com", "correct horse")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("got user %s, want %s", got.ID, user.ID)
		}
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		if _, err := a.Authenticate(ctx, "alice@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := a.Authenticate(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("store failure is not reported as bad credentials", func(t *testing.T) {
		broken := NewPasswordAuthenticator(&memUsers{err: errors.New("disk full")})
		_, err := broken.Authenticate(ctx, "alice@example.com", "correct horse")
		if err == nil || errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected store error, got %v", err)
		}
	})
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: "user-1", Email: "alice@example.com"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "alice@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour)
		if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTManager("test-secret", time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		old, err := expired.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := m.Validate(old); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer abc", "abc", nil},
		{"", "", ErrMissingToken},
		{"Basic abc", "", ErrInvalidToken},
		{"Bearer", "", ErrInvalidToken},
		{"Bearer  ", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	alice := models.NewUser("alice@example.com", "Alice", "h")
	bob := models.NewUser("bob@example.com", "", "h")
	users.byID[alice.ID] = alice
	users.byID[bob.ID] = bob

	d := NewDirectory(users)

	ids, unknown, err := d.ResolveEmails(ctx, []string{"Alice@example.com", "carol@example.com", "bob@example.com", "alice@example.com"})
	if err != nil {
		t.Fatalf("ResolveEmails failed: %v", err)
	}
	if ids["alice@example.com"] != alice.ID || ids["bob@example.com"] != bob.ID || len(ids) != 2 {
		t.Errorf("unexpected ids: %v", ids)
	}
	if len(unknown) != 1 || unknown[0] != "carol@example.com" {
		t.Errorf("unexpected unknown emails: %v", unknown)
	}

	info, err := d.Lookup(ctx, []string{alice.ID, bob.ID, "ghost"})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if info[alice.ID].Username != "Alice" {
		t.Errorf("alice username = %q", info[alice.ID].Username)
	}
	if info[bob.ID].Username != "bob" {
		t.Errorf("bob username should fall back to email local part, got %q", info[bob.ID].Username)
	}
	if _, ok := info["ghost"]; ok {
		t.Error("unknown user should be omitted")
	}
}
