package poem

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/versecraft/api/pkg/logger"
	"github.com/versecraft/api/svc/user"
)

// CreditGate is the slice of the user store the generator needs: plan
// lookup before generation and atomic deduction after a successful save.
type CreditGate interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	DeductPoemCredit(ctx context.Context, id string) (int, error)
}

// Service generates and manages poems.
type Service struct {
	store Store
	users CreditGate
	gen   Generator
	log   *slog.Logger
}

func NewService(store Store, users CreditGate, gen Generator, log *slog.Logger) *Service {
	if store == nil {
		panic("poem: service requires a store")
	}
	if users == nil {
		panic("poem: service requires a user credit gate")
	}
	if gen == nil {
		panic("poem: service requires a generator")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, users: users, gen: gen, log: log}
}

// Generate produces a poem for an authenticated user, persists it, and
// deducts a credit from metered accounts. The credit gate runs before the
// model call so an exhausted account never burns API spend.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (*Poem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.CanGenerate() {
		return nil, user.ErrNoCreditsRemaining
	}

	content, err := s.gen.Complete(ctx, systemPrompt(req), userPrompt(req), req.Length.MaxTokens())
	if err != nil {
		return nil, err
	}

	p := &Poem{
		ID:              uuid.NewString(),
		UserID:          userID,
		Content:         content,
		Type:            req.Type,
		Length:          req.Length,
		Device:          req.Device,
		Tone:            req.Tone,
		RhymingPattern:  req.RhymingPattern,
		Language:        req.Language,
		Personalization: req.Personalization,
		Keywords:        req.Keywords,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	if !u.HasUnlimitedCredits() {
		remaining, err := s.users.DeductPoemCredit(ctx, userID)
		switch {
		case errors.Is(err, user.ErrNoCreditsRemaining):
			// A concurrent generation spent the last credit between the gate
			// and the deduction. The poem is already saved; log and move on.
			s.log.WarnContext(ctx, "credit balance exhausted during generation",
				logger.UserID(userID))
		case err != nil:
			return nil, err
		default:
			s.log.InfoContext(ctx, "poem generated",
				logger.UserID(userID),
				slog.String("poem_type", string(req.Type)),
				slog.Int("credits_remaining", remaining))
		}
	} else {
		s.log.InfoContext(ctx, "poem generated",
			logger.UserID(userID),
			slog.String("poem_type", string(req.Type)))
	}

	return p, nil
}

// GenerateFree produces a preview poem for unauthenticated visitors. The
// result is not persisted and no account is touched; the HTTP layer rate
// limits it per client IP.
func (s *Service) GenerateFree(ctx context.Context, req GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return s.gen.Complete(ctx, systemPrompt(req), userPrompt(req), req.Length.MaxTokens())
}

// List returns one page of the user's poems.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	opts.Normalize()
	poems, total, err := s.store.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	if poems == nil {
		poems = []Poem{}
	}
	return &Page{
		Poems:      poems,
		Current:    opts.Page,
		TotalPages: int(math.Ceil(float64(total) / float64(opts.PerPage))),
		TotalPoems: total,
	}, nil
}

// Delete removes a poem owned by the user.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if err := s.store.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "poem deleted",
		logger.UserID(userID),
		slog.String("poem_id", id))
	return nil
}

// Usage aggregates the user's generation activity for the window.
func (s *Service) Usage(ctx context.Context, userID string, from, to time.Time) (*Usage, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	return s.store.Usage(ctx, userID, from, to)
}
