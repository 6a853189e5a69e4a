package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/versecraft/api/pkg/logger"
	"github.com/versecraft/api/svc/billing"
)

// Register creates an account with a hashed password, grants the signup
// credit allowance, and sends the verification email. Email delivery
// failure does not fail registration.
func (s *Service) Register(ctx context.Context, emailAddr, password, name string) (*User, error) {
	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("user: hash password: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &User{
		ID:                uuid.NewString(),
		Email:             addr,
		PasswordHash:      hash,
		Name:              name,
		VerificationToken: token,
		Plan:              billing.TierFree,
		PoemCredits:       s.credits.FreeSignupCredits,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	s.sendEmail(ctx, verificationEmail(addr, s.cfg.AppBaseURL, token))

	s.log.InfoContext(ctx, "user registered", logger.UserID(u.ID))
	return u, nil
}

// Login authenticates an email/password pair. Missing accounts and wrong
// passwords both map to ErrInvalidCredentials so responses do not leak
// which emails exist.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*User, error) {
	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.GetByEmail(ctx, addr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if len(u.PasswordHash) == 0 {
		return nil, ErrPasswordLoginOnly
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.log.InfoContext(ctx, "user logged in", logger.UserID(u.ID))
	return u, nil
}

// GoogleSignIn finds or creates the account for a verified Google identity.
// An existing account with the same email is linked rather than duplicated;
// Google identities arrive pre-verified.
func (s *Service) GoogleSignIn(ctx context.Context, googleID, emailAddr, name, avatarURL string) (*User, error) {
	if googleID == "" {
		return nil, ErrInvalidCredentials
	}

	if u, err := s.store.GetByGoogleID(ctx, googleID); err == nil {
		return u, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.GetByEmail(ctx, addr); err == nil {
		if err := s.store.LinkGoogleID(ctx, existing.ID, googleID); err != nil {
			return nil, err
		}
		existing.GoogleID = googleID
		s.log.InfoContext(ctx, "linked google identity to existing account",
			logger.UserID(existing.ID))
		return existing, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	u := &User{
		ID:            uuid.NewString(),
		Email:         addr,
		Name:          name,
		AvatarURL:     avatarURL,
		GoogleID:      googleID,
		EmailVerified: true,
		Plan:          billing.TierFree,
		PoemCredits:   s.credits.FreeSignupCredits,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered via google", logger.UserID(u.ID))
	return u, nil
}

// VerifyEmail confirms the address behind a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.store.GetByVerificationToken(ctx, token)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.store.MarkEmailVerified(ctx, u.ID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email verified", logger.UserID(u.ID))
	return nil
}

// ForgotPassword issues a reset token and emails the reset link. The
// response is identical whether or not the email exists.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil
	}

	u, err := s.store.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	expiry := time.Now().UTC().Add(s.cfg.ResetTokenTTL)
	if err := s.store.SetResetToken(ctx, u.ID, token, expiry); err != nil {
		return err
	}

	s.sendEmail(ctx, passwordResetEmail(addr, s.cfg.AppBaseURL, token))

	s.log.InfoContext(ctx, "password reset requested", logger.UserID(u.ID))
	return nil
}

// ResetPassword consumes a reset token and replaces the password. The
// token is single use; UpdatePassword clears it.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	u, err := s.store.GetByResetToken(ctx, token)
	if err != nil {
		return ErrInvalidToken
	}
	if u.ResetTokenExpiry == nil || time.Now().UTC().After(*u.ResetTokenExpiry) {
		return ErrTokenExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("user: hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "password reset completed", slog.String("user_id", u.ID))
	return nil
}

// ChangePassword verifies the current password before replacing it.
// Accounts without a local password must set one through the reset flow.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if len(u.PasswordHash) == 0 {
		return ErrPasswordLoginOnly
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("user: hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "password changed", logger.UserID(userID))
	return nil
}
