// Package poems exposes poem generation and library management over HTTP.
// The free preview endpoint is public but rate limited by client IP;
// everything else requires a valid access token.
package poems

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/versecraft/api/modules/respond"
	"github.com/versecraft/api/pkg/binder"
	"github.com/versecraft/api/pkg/jwt"
	"github.com/versecraft/api/pkg/ratelimiter"
	"github.com/versecraft/api/svc/poem"
	"github.com/versecraft/api/svc/user"
)

// Module wires the poem service to the HTTP routes.
type Module struct {
	poems   *poem.Service
	guard   func(http.Handler) http.Handler
	limiter *ratelimiter.Bucket
	log     *slog.Logger
}

func NewModule(poems *poem.Service, guard func(http.Handler) http.Handler, limiter *ratelimiter.Bucket, log *slog.Logger) *Module {
	if poems == nil {
		panic("poems module: poem service is required")
	}
	if guard == nil {
		panic("poems module: auth middleware is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Module{poems: poems, guard: guard, limiter: limiter, log: log}
}

// Router mounts the poem endpoints. generate-free stays outside the auth
// guard so visitors can try the product before signing up.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()

	free := chi.NewRouter()
	if m.limiter != nil {
		free.Use(ratelimiter.Middleware(m.limiter, ratelimiter.ByClientIP, m.rejectRateLimited))
	}
	free.Post("/", m.handleGenerateFree)
	r.Mount("/generate-free", free)

	r.Group(func(r chi.Router) {
		r.Use(m.guard)
		r.Post("/generate", m.handleGenerate)
		r.Get("/my-poems", m.handleList)
		r.Delete("/{id}", m.handleDelete)
	})
	return r
}

type generateResponse struct {
	Poem string `json:"poem"`
}

func (m *Module) handleGenerateFree(w http.ResponseWriter, r *http.Request) {
	var req poem.GenerateRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content, err := m.poems.GenerateFree(r.Context(), req)
	if err != nil {
		m.writePoemError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, generateResponse{Poem: content})
}

func (m *Module) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req poem.GenerateRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := m.poems.Generate(r.Context(), jwt.UserID(r.Context()), req)
	if err != nil {
		m.writePoemError(w, r, err)
		return
	}
	respond.Data(w, http.StatusCreated, p)
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)
	page, err := m.poems.List(r.Context(), jwt.UserID(r.Context()), opts)
	if err != nil {
		m.writePoemError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, page)
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := m.poems.Delete(r.Context(), id, jwt.UserID(r.Context())); err != nil {
		m.writePoemError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Poem deleted successfully")
}

func listOptionsFromQuery(r *http.Request) poem.ListOptions {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("limit"))
	return poem.ListOptions{
		Page:     page,
		PerPage:  perPage,
		Type:     poem.Type(q.Get("poemType")),
		Language: poem.Language(q.Get("language")),
		SortDesc: q.Get("sortOrder") != "asc",
	}
}

func (m *Module) rejectRateLimited(w http.ResponseWriter, r *http.Request, result *ratelimiter.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter().Seconds())))
	respond.Error(w, http.StatusTooManyRequests, "free generation limit reached, try again later")
}

func (m *Module) writePoemError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, poem.ErrInvalidRequest):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrNoCreditsRemaining):
		respond.Error(w, http.StatusPaymentRequired, "no poem credits remaining, please upgrade your plan")
	case errors.Is(err, poem.ErrPoemNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, poem.ErrGenerationFailed), errors.Is(err, poem.ErrEmptyCompletion):
		m.log.ErrorContext(r.Context(), "poem generation failed", slog.Any("error", err))
		respond.Error(w, http.StatusBadGateway, "poem generation is temporarily unavailable")
	default:
		m.log.ErrorContext(r.Context(), "poem request failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
