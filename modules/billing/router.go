// Package billing exposes the payment provider webhook and the
// subscription endpoints. The webhook route reads the raw body so the
// provider signature can be verified over the exact bytes sent.
package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/versecraft/api/modules/respond"
	"github.com/versecraft/api/pkg/binder"
	"github.com/versecraft/api/pkg/jwt"
	"github.com/versecraft/api/svc/billing"
	"github.com/versecraft/api/svc/poem"
	"github.com/versecraft/api/svc/user"
)

// maxWebhookBody caps the webhook payload size. Paddle events are a few
// kilobytes at most.
const maxWebhookBody = 1 << 20

// defaultUsageWindow is applied when the usage query omits a date range.
const defaultUsageWindow = 30 * 24 * time.Hour

// Module wires the billing, user, and poem services to the subscription
// routes.
type Module struct {
	billing *billing.Service
	users   *user.Service
	poems   *poem.Service
	guard   func(http.Handler) http.Handler
	log     *slog.Logger
}

func NewModule(billingSvc *billing.Service, users *user.Service, poems *poem.Service, guard func(http.Handler) http.Handler, log *slog.Logger) *Module {
	if billingSvc == nil {
		panic("billing module: billing service is required")
	}
	if users == nil {
		panic("billing module: user service is required")
	}
	if poems == nil {
		panic("billing module: poem service is required")
	}
	if guard == nil {
		panic("billing module: auth middleware is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Module{billing: billingSvc, users: users, poems: poems, guard: guard, log: log}
}

// Router mounts the webhook publicly and the account-facing subscription
// endpoints behind the auth guard.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", m.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(m.guard)
		r.Post("/checkout", m.handleCheckout)
		r.Post("/portal", m.handlePortal)
		r.Get("/current", m.handleCurrent)
		r.Get("/details", m.handleDetails)
		r.Get("/billing-history", m.handleBillingHistory)
		r.Get("/usage", m.handleUsage)
	})
	return r
}

type checkoutRequest struct {
	PlanType   string `json:"planType"`
	SuccessURL string `json:"successUrl,omitempty"`
}

type currentResponse struct {
	Plan         string                `json:"plan"`
	Subscription *billing.Subscription `json:"subscription,omitempty"`
}

type detailsResponse struct {
	Plan         string                `json:"plan"`
	Credits      int                   `json:"credits"`
	Features     []string              `json:"features"`
	Subscription *billing.Subscription `json:"subscription,omitempty"`
}

// handleWebhook acknowledges processed events with 200 so the provider
// stops retrying, and returns 5xx only for transient store failures where
// a retry can succeed.
func (m *Module) handleWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("Paddle-Signature")
	if signature == "" {
		respond.Error(w, http.StatusBadRequest, "missing Paddle-Signature header")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "could not read request body")
		return
	}

	err = m.billing.HandleWebhook(r.Context(), payload, signature)
	switch {
	case err == nil:
		respond.Message(w, http.StatusOK, "received")
	case errors.Is(err, billing.ErrSignatureInvalid),
		errors.Is(err, billing.ErrMalformedPayload):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrUserNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound):
		m.log.WarnContext(r.Context(), "webhook referenced unknown records", slog.Any("error", err))
		respond.Error(w, http.StatusNotFound, err.Error())
	default:
		m.log.ErrorContext(r.Context(), "webhook processing failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "webhook processing failed")
	}
}

func (m *Module) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, _ := jwt.GetClaims(r.Context())
	session, err := m.billing.CreateCheckout(r.Context(), billing.CheckoutRequest{
		UserID:     claims.Subject,
		Email:      claims.Email,
		PlanType:   billing.PlanType(req.PlanType),
		SuccessURL: req.SuccessURL,
	})
	if err != nil {
		m.writeBillingError(w, r, err)
		return
	}
	respond.Data(w, http.StatusCreated, session)
}

// handlePortal hands the subscriber off to the provider's hosted portal.
// Cancellations and payment-method changes made there come back as webhook
// events; nothing is mutated locally here.
func (m *Module) handlePortal(w http.ResponseWriter, r *http.Request) {
	link, err := m.billing.CustomerPortal(r.Context(), jwt.UserID(r.Context()))
	if err != nil {
		m.writeBillingError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, link)
}

func (m *Module) handleBillingHistory(w http.ResponseWriter, r *http.Request) {
	history, err := m.billing.BillingHistory(r.Context(), jwt.UserID(r.Context()))
	if err != nil {
		m.writeBillingError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, history)
}

func (m *Module) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sub, err := m.billing.CurrentSubscription(r.Context(), jwt.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			respond.Data(w, http.StatusOK, currentResponse{Plan: string(billing.PlanFree)})
			return
		}
		m.writeBillingError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, currentResponse{Plan: string(sub.PlanType), Subscription: sub})
}

func (m *Module) handleDetails(w http.ResponseWriter, r *http.Request) {
	userID := jwt.UserID(r.Context())

	p, err := m.users.Profile(r.Context(), userID)
	if err != nil {
		m.writeBillingError(w, r, err)
		return
	}

	resp := detailsResponse{
		Plan:     string(billing.PlanFree),
		Credits:  p.PoemCredits,
		Features: m.billing.PlanDetail(billing.PlanFree).Features,
	}
	if sub, err := m.billing.CurrentSubscription(r.Context(), userID); err == nil && sub.Status.GrantsAccess() {
		resp.Plan = string(sub.PlanType)
		resp.Features = m.billing.PlanDetail(sub.PlanType).Features
		resp.Subscription = sub
	}
	respond.Data(w, http.StatusOK, resp)
}

func (m *Module) handleUsage(w http.ResponseWriter, r *http.Request) {
	from, to, err := usageWindowFromQuery(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid date range, expected YYYY-MM-DD")
		return
	}

	usage, err := m.poems.Usage(r.Context(), jwt.UserID(r.Context()), from, to)
	if err != nil {
		m.writeBillingError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, usage)
}

func usageWindowFromQuery(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if s := q.Get("startDate"); s != "" {
		if from, err = time.Parse("2006-01-02", s); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if s := q.Get("endDate"); s != "" {
		if to, err = time.Parse("2006-01-02", s); err != nil {
			return time.Time{}, time.Time{}, err
		}
		// Make the end date inclusive.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultUsageWindow)
	}
	return from, to, nil
}

func (m *Module) writeBillingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, billing.ErrUnknownPlanType):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, user.ErrUserNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, billing.ErrProviderError):
		m.log.ErrorContext(r.Context(), "billing provider request failed", slog.Any("error", err))
		respond.Error(w, http.StatusBadGateway, "billing provider unavailable")
	default:
		m.log.ErrorContext(r.Context(), "billing request failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
