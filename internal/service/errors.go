package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/authz"
	"github.com/mmynk/groupledger/internal/calculator"
	"github.com/mmynk/groupledger/internal/money"
	"github.com/mmynk/groupledger/internal/storage"
)

var (
	errInvalidArgument = errors.New("invalid argument")
	errLastOwner       = errors.New("a group must keep at least one owner")
	errUnauthenticated = errors.New("authentication required")
	errInternal        = errors.New("internal error")
)

// toConnectError maps domain errors to Connect codes. Unexpected errors are
// logged with op and hidden from the client.
func toConnectError(ctx context.Context, op string, err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr
	case errors.Is(err, errInvalidArgument),
		errors.Is(err, calculator.ErrInvalidSplit),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, auth.ErrWeakPassword):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, authz.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, authz.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, errLastOwner):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, errUnauthenticated):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	slog.ErrorContext(ctx, op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, errInternal)
}
