package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/pkg/api"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	if alice.id == "" || alice.token == "" {
		t.Fatal("expected user ID and token")
	}

	resp, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "Alice@Example.com",
		Password: "password-alice",
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Msg.User.ID != alice.id {
		t.Errorf("login user: expected %s, got %s", alice.id, resp.Msg.User.ID)
	}

	me, err := env.auth.GetCurrentUser(ctx, as(testUser{token: resp.Msg.Token}, &api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.DisplayName != "alice" || me.Msg.User.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", me.Msg.User)
	}
}

func TestRegister_Errors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	env.register(t, "alice")

	_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "alice@example.com", DisplayName: "Again", Password: "long enough",
	}))
	assertCode(t, err, connect.CodeAlreadyExists)

	_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "bob@example.com", DisplayName: "Bob", Password: "short",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "not-an-email", DisplayName: "Carol", Password: "long enough",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "alice")

	_, err := env.auth.Login(context.Background(), connect.NewRequest(&api.LoginRequest{
		Email: "alice@example.com", Password: "wrong-password",
	}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestProtectedCallsRequireToken(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = env.groups.ListGroups(ctx, as(testUser{token: "garbage"}, &api.ListGroupsRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}
