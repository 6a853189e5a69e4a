package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/versecraft/api/pkg/email"
	"github.com/versecraft/api/pkg/file"
	"github.com/versecraft/api/svc/billing"
)

const minPasswordLength = 8

// Config holds the user service settings.
type Config struct {
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
	ResetTokenTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	AppBaseURL    string        `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	AvatarMaxSize int64         `env:"AVATAR_MAX_SIZE" envDefault:"2097152"` // 2 MiB
}

// Service implements account management: registration, password and social
// sign-in, email verification, password reset, and profile operations.
type Service struct {
	store   Store
	mailer  email.EmailSender
	storage file.Storage
	credits billing.CreditsConfig
	cfg     Config
	log     *slog.Logger
}

func NewService(store Store, mailer email.EmailSender, storage file.Storage, credits billing.CreditsConfig, cfg Config, log *slog.Logger) *Service {
	if store == nil {
		panic("user: service requires a store")
	}
	if mailer == nil {
		panic("user: service requires an email sender")
	}
	if storage == nil {
		panic("user: service requires a file storage")
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 10
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	if cfg.AvatarMaxSize <= 0 {
		cfg.AvatarMaxSize = 2 << 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		mailer:  mailer,
		storage: storage,
		credits: credits,
		cfg:     cfg,
		log:     log,
	}
}

// Store exposes the underlying store for wiring the billing reconciler,
// which consumes it through the EntitlementStore interface.
func (s *Service) Store() Store {
	return s.store
}

func normalizeEmail(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", ErrInvalidEmail
	}
	return addr, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}
	return nil
}

// newToken returns a 64-char hex token from a CSPRNG. Used for email
// verification and password reset links.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("user: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// sendEmail logs delivery failures instead of propagating them, so a mail
// provider outage cannot block sign-up or reset flows.
func (s *Service) sendEmail(ctx context.Context, params email.SendEmailParams) {
	if err := s.mailer.SendEmail(ctx, params); err != nil {
		s.log.ErrorContext(ctx, "failed to send email",
			slog.String("tag", params.Tag),
			slog.Any("error", err))
	}
}
