package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/storage"
	"github.com/mmynk/groupledger/pkg/api"
	"github.com/mmynk/groupledger/pkg/api/apiconnect"
)

var _ apiconnect.AuthServiceHandler = (*AuthService)(nil)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
	}
}

// Register creates a new user account and returns a session token.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	const op = "Register"
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	user, err := s.authenticator.Register(ctx, req.Msg.Email, req.Msg.DisplayName, req.Msg.Password)
	if err != nil {
		slog.Warn("Registration failed", "email", req.Msg.Email, "error", err)
		return nil, toConnectError(ctx, op, err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	slog.Info("User registered successfully", "user_id", user.ID)
	return connect.NewResponse(&api.RegisterResponse{User: toAPIUser(user), Token: token}), nil
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	const op = "Login"
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		slog.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, toConnectError(ctx, op, err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	slog.Info("User logged in successfully", "user_id", user.ID)
	return connect.NewResponse(&api.LoginResponse{User: toAPIUser(user), Token: token}), nil
}

// GetCurrentUser returns the authenticated user's account.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	const op = "GetCurrentUser"
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		// The token outlived its account.
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	if err != nil {
		return nil, toConnectError(ctx, op, err)
	}

	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}
