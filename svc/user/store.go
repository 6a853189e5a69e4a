package user

import (
	"context"
	"time"

	"github.com/versecraft/api/svc/billing"
)

// Store defines user persistence. The concrete implementation is MongoDB;
// the interface keeps the service testable with mocks.
type Store interface {
	// Create inserts a new user. Returns ErrEmailTaken when the email is
	// already registered.
	Create(ctx context.Context, u *User) error

	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)

	// MarkEmailVerified flips the verified flag and clears the token.
	MarkEmailVerified(ctx context.Context, id string) error

	// SetResetToken stores a password reset token with its expiry.
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error

	// UpdatePassword replaces the password hash and invalidates any
	// outstanding reset token.
	UpdatePassword(ctx context.Context, id string, hash []byte) error

	// UpdateProfile applies the non-nil fields and returns the updated user.
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)

	SetAvatarURL(ctx context.Context, id, url string) error
	LinkGoogleID(ctx context.Context, id, googleID string) error
	SetBillingCustomerID(ctx context.Context, id, customerID string) error

	// DeductPoemCredit atomically decrements the credit balance and returns
	// the remaining credits. Unlimited accounts are never decremented.
	// Returns ErrNoCreditsRemaining when the balance is exhausted.
	DeductPoemCredit(ctx context.Context, id string) (int, error)

	// billing.EntitlementStore surface, consumed by the reconciler.
	FindIDByCustomerID(ctx context.Context, customerID string) (string, error)
	Exists(ctx context.Context, userID string) (bool, error)
	SetEntitlement(ctx context.Context, userID string, ent billing.Entitlement) error
}
