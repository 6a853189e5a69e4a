package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingmodule "github.com/versecraft/api/modules/billing"
	"github.com/versecraft/api/pkg/email"
	"github.com/versecraft/api/pkg/file"
	"github.com/versecraft/api/pkg/jwt"
	"github.com/versecraft/api/svc/billing"
	"github.com/versecraft/api/svc/poem"
	"github.com/versecraft/api/svc/user"
)

type stubProvider struct {
	parseEvent *billing.Event
	parseErr   error
	session    *billing.CheckoutSession
	lastReq    billing.CheckoutRequest

	portal         *billing.PortalLink
	portalErr      error
	portalSub      *billing.Subscription
	transactions   []billing.Transaction
	listCustomerID string
}

func (p *stubProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.parseEvent, nil
}

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	p.lastReq = req
	return p.session, nil
}

func (p *stubProvider) GetCustomerPortalLink(ctx context.Context, sub *billing.Subscription) (*billing.PortalLink, error) {
	p.portalSub = sub
	if p.portalErr != nil {
		return nil, p.portalErr
	}
	return p.portal, nil
}

func (p *stubProvider) ListTransactions(ctx context.Context, customerID string, limit int) ([]billing.Transaction, error) {
	p.listCustomerID = customerID
	return p.transactions, nil
}

type stubSubStore struct {
	billing.SubscriptionStore

	byUserID map[string]*billing.Subscription
	upserted []*billing.Subscription
}

func (s *stubSubStore) GetByUserID(ctx context.Context, userID string) (*billing.Subscription, error) {
	sub, ok := s.byUserID[userID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *stubSubStore) Upsert(ctx context.Context, sub *billing.Subscription) error {
	s.upserted = append(s.upserted, sub)
	return nil
}

type stubUserStore struct {
	user.Store

	byID        map[string]*user.User
	entitlement *billing.Entitlement
}

func (s *stubUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUserStore) FindIDByCustomerID(ctx context.Context, customerID string) (string, error) {
	for _, u := range s.byID {
		if u.BillingCustomerID == customerID {
			return u.ID, nil
		}
	}
	return "", billing.ErrUserNotFound
}

func (s *stubUserStore) Exists(ctx context.Context, userID string) (bool, error) {
	_, ok := s.byID[userID]
	return ok, nil
}

func (s *stubUserStore) SetEntitlement(ctx context.Context, userID string, ent billing.Entitlement) error {
	s.entitlement = &ent
	return nil
}

type stubPoemStore struct {
	poem.Store

	usageFrom, usageTo time.Time
}

func (s *stubPoemStore) Usage(ctx context.Context, userID string, from, to time.Time) (*poem.Usage, error) {
	s.usageFrom, s.usageTo = from, to
	return &poem.Usage{Total: 4, ByDate: map[string]int64{"2026-08-01": 4}, ByType: map[string]int64{"Haiku": 4}}, nil
}

type nopGate struct{}

func (nopGate) GetByID(ctx context.Context, id string) (*user.User, error) {
	return &user.User{ID: id, PoemCredits: 1}, nil
}
func (nopGate) DeductPoemCredit(ctx context.Context, id string) (int, error) { return 0, nil }

type nopGenerator struct{}

func (nopGenerator) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	return "poem", nil
}

type nopMailer struct{}

func (nopMailer) SendEmail(ctx context.Context, p email.SendEmailParams) error { return nil }

type nopStorage struct{}

func (nopStorage) Save(ctx context.Context, fh *multipart.FileHeader, path string) (*file.File, error) {
	return &file.File{RelativePath: path}, nil
}
func (nopStorage) Delete(ctx context.Context, path string) error { return nil }
func (nopStorage) Exists(ctx context.Context, path string) bool  { return false }
func (nopStorage) URL(path string) string                        { return path }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type fixture struct {
	srv      *httptest.Server
	token    string
	provider *stubProvider
	subs     *stubSubStore
	users    *stubUserStore
	poems    *stubPoemStore
}

func newBillingServer(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	credits := billing.CreditsConfig{FreeSignupCredits: 30, FreeChurnCredits: 3}
	plans := billing.NewPlans(billing.PlansConfig{
		MonthlyPriceID: "pri_monthly",
		YearlyPriceID:  "pri_yearly",
	}, credits)

	provider := &stubProvider{session: &billing.CheckoutSession{
		TransactionID: "txn_1",
		CheckoutURL:   "https://pay.example.com/txn_1",
	}}
	subs := &stubSubStore{byUserID: map[string]*billing.Subscription{}}
	userStore := &stubUserStore{byID: map[string]*user.User{
		"u1": {ID: "u1", Email: "ada@example.com", BillingCustomerID: "ctm_1", PoemCredits: 12},
	}}
	poemStore := &stubPoemStore{}

	reconciler := billing.NewReconciler(subs, userStore, plans, log)
	billingSvc := billing.NewService(provider, reconciler, subs, plans, log)
	users := user.NewService(userStore, nopMailer{}, nopStorage{}, credits, user.Config{BcryptCost: 4}, log)
	poems := poem.NewService(poemStore, nopGate{}, nopGenerator{}, log)

	jwtSvc, err := jwt.NewFromString("test-signing-key-0123456789abcdef")
	require.NoError(t, err)

	m := billingmodule.NewModule(billingSvc, users, poems, jwt.Middleware(jwtSvc), log)
	srv := httptest.NewServer(m.Router())
	t.Cleanup(srv.Close)

	now := time.Now()
	token, err := jwtSvc.Generate(jwt.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "u1",
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(time.Hour).Unix(),
		},
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	return &fixture{srv: srv, token: token, provider: provider, subs: subs, users: userStore, poems: poemStore}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func authed(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token, "Content-Type": "application/json"}
}

func TestWebhookMissingSignature(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	resp, env := f.do(t, http.MethodPost, "/webhook", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "Paddle-Signature")
}

func TestWebhookInvalidSignature(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	f.provider.parseErr = billing.ErrSignatureInvalid

	resp, _ := f.do(t, http.MethodPost, "/webhook", `{}`,
		map[string]string{"Paddle-Signature": "ts=1;h1=bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookActivationApplied(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	now := time.Now().UTC()
	f.provider.parseEvent = &billing.Event{
		Type:           billing.EventActivated,
		ProviderEvent:  "subscription.activated",
		OccurredAt:     now,
		SubscriptionID: "sub_1",
		CustomerID:     "ctm_1",
		PriceID:        "pri_monthly",
		PlanType:       billing.PlanMonthly,
		Status:         billing.StatusActive,
	}

	resp, env := f.do(t, http.MethodPost, "/webhook", `{"event_type":"subscription.activated"}`,
		map[string]string{"Paddle-Signature": "ts=1;h1=ok"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	require.Len(t, f.subs.upserted, 1)
	assert.Equal(t, "u1", f.subs.upserted[0].UserID)
	require.NotNil(t, f.users.entitlement)
	assert.Equal(t, billing.TierPro, f.users.entitlement.Tier)
	assert.Equal(t, billing.UnlimitedCredits, f.users.entitlement.PoemCredits)
}

func TestWebhookUnknownEventAcked(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	f.provider.parseEvent = &billing.Event{Type: billing.EventUnknown, ProviderEvent: "adjustment.created"}

	resp, env := f.do(t, http.MethodPost, "/webhook", `{"event_type":"adjustment.created"}`,
		map[string]string{"Paddle-Signature": "ts=1;h1=ok"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Empty(t, f.subs.upserted)
}

func TestWebhookUnresolvedOwner(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	f.provider.parseEvent = &billing.Event{
		Type:           billing.EventActivated,
		OccurredAt:     time.Now().UTC(),
		SubscriptionID: "sub_1",
		CustomerID:     "ctm_stranger",
		PlanType:       billing.PlanMonthly,
		Status:         billing.StatusActive,
	}

	resp, _ := f.do(t, http.MethodPost, "/webhook", `{}`,
		map[string]string{"Paddle-Signature": "ts=1;h1=ok"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	f.subs.byUserID["u1"] = &billing.Subscription{SubscriptionID: "sub_old", UserID: "u1", CustomerID: "ctm_1"}

	resp, env := f.do(t, http.MethodPost, "/checkout",
		`{"planType":"monthly"}`, authed(f.token))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)
	assert.Equal(t, "u1", f.provider.lastReq.UserID)
	assert.Equal(t, "ada@example.com", f.provider.lastReq.Email)
	assert.Equal(t, "ctm_1", f.provider.lastReq.CustomerID)

	var session billing.CheckoutSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "https://pay.example.com/txn_1", session.CheckoutURL)
}

func TestCheckoutFreePlanRejected(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	resp, env := f.do(t, http.MethodPost, "/checkout", `{"planType":"free"}`, authed(f.token))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestPortal(t *testing.T) {
	t.Parallel()

	t.Run("returns hosted portal links for the current subscription", func(t *testing.T) {
		t.Parallel()

		f := newBillingServer(t)
		f.subs.byUserID["u1"] = &billing.Subscription{
			SubscriptionID: "sub_1", UserID: "u1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PlanType: billing.PlanMonthly,
		}
		f.provider.portal = &billing.PortalLink{
			URL:       "https://customer-portal.paddle.com/overview",
			CancelURL: "https://customer-portal.paddle.com/subscriptions/sub_1/cancel",
		}

		resp, env := f.do(t, http.MethodPost, "/portal", "", authed(f.token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, env.Success)

		var link billing.PortalLink
		require.NoError(t, json.Unmarshal(env.Data, &link))
		assert.Equal(t, "https://customer-portal.paddle.com/overview", link.URL)
		assert.Contains(t, link.CancelURL, "/cancel")

		require.NotNil(t, f.provider.portalSub)
		assert.Equal(t, "sub_1", f.provider.portalSub.SubscriptionID)
	})

	t.Run("without a subscription there is nothing to manage", func(t *testing.T) {
		t.Parallel()

		f := newBillingServer(t)
		resp, _ := f.do(t, http.MethodPost, "/portal", "", authed(f.token))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("provider outage maps to bad gateway", func(t *testing.T) {
		t.Parallel()

		f := newBillingServer(t)
		f.subs.byUserID["u1"] = &billing.Subscription{
			SubscriptionID: "sub_1", UserID: "u1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PlanType: billing.PlanMonthly,
		}
		f.provider.portalErr = billing.ErrProviderError

		resp, _ := f.do(t, http.MethodPost, "/portal", "", authed(f.token))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestBillingHistory(t *testing.T) {
	t.Parallel()

	t.Run("lists the customer's transactions", func(t *testing.T) {
		t.Parallel()

		f := newBillingServer(t)
		f.subs.byUserID["u1"] = &billing.Subscription{
			SubscriptionID: "sub_1", UserID: "u1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PlanType: billing.PlanMonthly,
		}
		f.provider.transactions = []billing.Transaction{
			{ID: "txn_2", Status: "completed", Amount: "700", Currency: "USD"},
			{ID: "txn_1", Status: "completed", Amount: "700", Currency: "USD"},
		}

		resp, env := f.do(t, http.MethodGet, "/billing-history", "", authed(f.token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, env.Success)

		var history []billing.Transaction
		require.NoError(t, json.Unmarshal(env.Data, &history))
		require.Len(t, history, 2)
		assert.Equal(t, "txn_2", history[0].ID)
		assert.Equal(t, "ctm_1", f.provider.listCustomerID)
	})

	t.Run("never-subscribed users get an empty history", func(t *testing.T) {
		t.Parallel()

		f := newBillingServer(t)
		resp, env := f.do(t, http.MethodGet, "/billing-history", "", authed(f.token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, env.Success)
		assert.Equal(t, "[]", string(env.Data))
		assert.Empty(t, f.provider.listCustomerID)
	})
}

func TestCurrentDefaultsToFree(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	resp, env := f.do(t, http.MethodGet, "/current", "", authed(f.token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	assert.True(t, strings.Contains(string(env.Data), `"plan":"free"`))
}

func TestCurrentWithSubscription(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	f.subs.byUserID["u1"] = &billing.Subscription{
		SubscriptionID: "sub_1", UserID: "u1",
		Status: billing.StatusActive, PlanType: billing.PlanYearly,
	}

	resp, env := f.do(t, http.MethodGet, "/current", "", authed(f.token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Plan         string                `json:"plan"`
		Subscription *billing.Subscription `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "yearly", data.Plan)
	require.NotNil(t, data.Subscription)
	assert.Equal(t, "sub_1", data.Subscription.SubscriptionID)
}

func TestDetails(t *testing.T) {
	t.Parallel()

	t.Run("free user", func(t *testing.T) {
		f := newBillingServer(t)
		resp, env := f.do(t, http.MethodGet, "/details", "", authed(f.token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var data struct {
			Plan    string `json:"plan"`
			Credits int    `json:"credits"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "free", data.Plan)
		assert.Equal(t, 12, data.Credits)
	})

	t.Run("active subscriber", func(t *testing.T) {
		f := newBillingServer(t)
		f.subs.byUserID["u1"] = &billing.Subscription{
			SubscriptionID: "sub_1", UserID: "u1",
			Status: billing.StatusActive, PlanType: billing.PlanMonthly,
		}

		resp, env := f.do(t, http.MethodGet, "/details", "", authed(f.token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var data struct {
			Plan     string   `json:"plan"`
			Features []string `json:"features"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "monthly", data.Plan)
		assert.NotEmpty(t, data.Features)
	})

	t.Run("canceled subscription falls back to free", func(t *testing.T) {
		f := newBillingServer(t)
		f.subs.byUserID["u1"] = &billing.Subscription{
			SubscriptionID: "sub_1", UserID: "u1",
			Status: billing.StatusCanceled, PlanType: billing.PlanMonthly,
		}

		resp, env := f.do(t, http.MethodGet, "/details", "", authed(f.token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.Contains(string(env.Data), `"plan":"free"`))
	})
}

func TestUsage(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	resp, env := f.do(t, http.MethodGet, "/usage?startDate=2026-08-01&endDate=2026-08-15", "", authed(f.token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var usage poem.Usage
	require.NoError(t, json.Unmarshal(env.Data, &usage))
	assert.EqualValues(t, 4, usage.Total)

	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), f.poems.usageFrom)
	assert.Equal(t, 15, f.poems.usageTo.Day())
}

func TestUsageBadDates(t *testing.T) {
	t.Parallel()

	f := newBillingServer(t)
	resp, _ := f.do(t, http.MethodGet, "/usage?startDate=yesterday", "", authed(f.token))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
