package user

import (
	"time"

	"github.com/versecraft/api/svc/billing"
)

// User is the account record stored in MongoDB. Email is unique; GoogleID
// is unique when present. Entitlement fields are written only through
// SetEntitlement and DeductPoemCredit, never by profile updates.
type User struct {
	ID           string `bson:"_id" json:"id"`
	Email        string `bson:"email" json:"email"`
	PasswordHash []byte `bson:"password_hash,omitempty" json:"-"`
	Name         string `bson:"name" json:"name"`
	Bio          string `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL    string `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`

	GoogleID string `bson:"google_id,omitempty" json:"-"`

	EmailVerified     bool       `bson:"email_verified" json:"emailVerified"`
	VerificationToken string     `bson:"verification_token,omitempty" json:"-"`
	ResetToken        string     `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry  *time.Time `bson:"reset_token_expiry,omitempty" json:"-"`

	// Entitlement state, reconciled by the billing service.
	Plan                  billing.Tier `bson:"plan" json:"plan"`
	PoemCredits           int          `bson:"poem_credits" json:"poemCredits"`
	BillingCustomerID     string       `bson:"billing_customer_id,omitempty" json:"-"`
	BillingSubscriptionID string       `bson:"billing_subscription_id,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasUnlimitedCredits reports whether the account is exempt from credit
// metering.
func (u *User) HasUnlimitedCredits() bool {
	return u.PoemCredits == billing.UnlimitedCredits
}

// CanGenerate reports whether the account may generate a poem right now.
func (u *User) CanGenerate() bool {
	return u.HasUnlimitedCredits() || u.PoemCredits > 0
}

// Profile is the user-facing account view returned by the API. It never
// exposes tokens, hashes, or provider identifiers.
type Profile struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	Name          string       `json:"name"`
	Bio           string       `json:"bio,omitempty"`
	AvatarURL     string       `json:"avatarUrl,omitempty"`
	EmailVerified bool         `json:"emailVerified"`
	Plan          billing.Tier `json:"plan"`
	PoemCredits   int          `json:"poemCredits"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
	Bio  *string `json:"bio,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Bio:           u.Bio,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.EmailVerified,
		Plan:          u.Plan,
		PoemCredits:   u.PoemCredits,
		CreatedAt:     u.CreatedAt,
	}
}
