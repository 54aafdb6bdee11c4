package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage/sqlstore"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

type testEnv struct {
	auth    apiconnect.AuthServiceClient
	groups  apiconnect.GroupServiceClient
	members apiconnect.MemberServiceClient
	items   apiconnect.ItemServiceClient
	store   *sqlstore.Store
	cache   *memCache
}

// setupTestServer starts all services behind the auth interceptor on a
// temporary SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "groupledger-service-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := sqlstore.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	balances := newMemCache()
	svcs := New(store, authenticator, jwtManager, balances)

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, PublicProcedures()...),
		middleware.LoggingInterceptor(),
	)
	mux := http.NewServeMux()
	for _, route := range svcs.Routes(interceptors) {
		mux.Handle(route.Path, route.Handler)
	}
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.RemoveAll(tempDir)
	})

	return &testEnv{
		auth:    apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		groups:  apiconnect.NewGroupServiceClient(http.DefaultClient, server.URL),
		members: apiconnect.NewMemberServiceClient(http.DefaultClient, server.URL),
		items:   apiconnect.NewItemServiceClient(http.DefaultClient, server.URL),
		store:   store,
		cache:   balances,
	}
}

type testUser struct {
	id    string
	email string
	token string
}

func (e *testEnv) register(t *testing.T, name string) testUser {
	t.Helper()
	email := name + "@example.com"
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		DisplayName: name,
		Password:    "password-" + name,
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", name, err)
	}
	return testUser{id: resp.Msg.User.ID, email: email, token: resp.Msg.Token}
}

// as attaches the user's bearer token to a request.
func as[T any](u testUser, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+u.token)
	return req
}

// createGroup creates a group owned by owner with the others added as members.
func (e *testEnv) createGroup(t *testing.T, owner testUser, name string, others ...testUser) string {
	t.Helper()
	ctx := context.Background()

	resp, err := e.groups.CreateGroup(ctx, as(owner, &api.CreateGroupRequest{Name: name}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := resp.Msg.Group.ID

	if len(others) > 0 {
		members := make([]api.NewMember, len(others))
		for i, u := range others {
			members[i] = api.NewMember{Email: u.email, Role: models.RoleMember.String()}
		}
		if _, err := e.members.AddMembers(ctx, as(owner, &api.AddMembersRequest{GroupID: groupID, Members: members})); err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}
	}
	return groupID
}

func (e *testEnv) balancesByUser(t *testing.T, caller testUser, groupID string) map[string]api.Balance {
	t.Helper()
	resp, err := e.groups.GetBalances(context.Background(), as(caller, &api.GetBalancesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	out := make(map[string]api.Balance, len(resp.Msg.Balances))
	for _, b := range resp.Msg.Balances {
		out[b.UserID] = b
	}
	return out
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != want {
		t.Fatalf("expected code %v, got %v (%s)", want, connectErr.Code(), connectErr.Message())
	}
}

// memCache is an in-memory BalanceCache that records invalidations.
type memCache struct {
	mu          sync.Mutex
	entries     map[string]memEntry
	generations map[string]int64
	invalidated map[string]int
}

type memEntry struct {
	generation int64
	balances   []models.Balance
}

func newMemCache() *memCache {
	return &memCache{
		entries:     make(map[string]memEntry),
		generations: make(map[string]int64),
		invalidated: make(map[string]int),
	}
}

func (c *memCache) GetBalances(_ context.Context, groupID string) (cache.Lookup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[groupID]
	e, ok := c.entries[groupID]
	if !ok || e.generation != gen {
		return cache.Lookup{Generation: gen}, nil
	}
	return cache.Lookup{Balances: e.balances, Found: true, Generation: gen}, nil
}

func (c *memCache) SetBalances(_ context.Context, groupID string, generation int64, balances []models.Balance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[groupID] = memEntry{generation: generation, balances: balances}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, groupID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[groupID]++
	c.invalidated[groupID]++
	return nil
}

// cached reports whether a current-generation entry exists for the group.
func (c *memCache) cached(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[groupID]
	return ok && e.generation == c.generations[groupID]
}
