// Package auth is the identity layer: local accounts with bcrypt passwords,
// JWT session tokens and the user directory the services use to turn emails
// into user IDs and user IDs into display names.
package auth

import (
	"context"

	"github.com/mmynk/groupledger/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// Swapping password auth for an external identity provider only requires a
// new implementation.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
