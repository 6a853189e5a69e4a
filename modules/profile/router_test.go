package profile_test

import (
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
	"golang.org/x/crypto/bcrypt"

	profilemodule "github.com/versecraft/api/modules/profile"
	"github.com/versecraft/api/pkg/email"
	"github.com/versecraft/api/pkg/file"
	"github.com/versecraft/api/pkg/jwt"
	"github.com/versecraft/api/svc/billing"
	"github.com/versecraft/api/svc/user"
)

type stubStore struct {
	user.Store

	byID        map[string]*user.User
	updatedHash []byte
}

func (s *stubStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (s *stubStore) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (*user.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	return u, nil
}

func (s *stubStore) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	s.updatedHash = hash
	return nil
}

type nopMailer struct{}

func (nopMailer) SendEmail(ctx context.Context, p email.SendEmailParams) error { return nil }

type nopStorage struct{}

func (nopStorage) Save(ctx context.Context, fh *multipart.FileHeader, path string) (*file.File, error) {
	return &file.File{RelativePath: path}, nil
}
func (nopStorage) Delete(ctx context.Context, path string) error { return nil }
func (nopStorage) Exists(ctx context.Context, path string) bool  { return false }
func (nopStorage) URL(path string) string                        { return "https://cdn.versecraft.test/" + path }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func newProfileServer(t *testing.T, store *stubStore) (*httptest.Server, string) {
	t.Helper()

	jwtSvc, err := jwt.NewFromString("test-signing-key-0123456789abcdef")
	require.NoError(t, err)

	users := user.NewService(store, nopMailer{}, nopStorage{},
		billing.CreditsConfig{FreeSignupCredits: 30, FreeChurnCredits: 3},
		user.Config{BcryptCost: bcrypt.MinCost},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	m := profilemodule.NewModule(users, jwt.Middleware(jwtSvc),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
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
	return srv, token
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func seededStore(hash []byte) *stubStore {
	return &stubStore{byID: map[string]*user.User{
		"u1": {
			ID:            "u1",
			Email:         "ada@example.com",
			Name:          "Ada",
			PasswordHash:  hash,
			EmailVerified: true,
			Plan:          billing.TierFree,
			PoemCredits:   12,
			CreatedAt:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
}

func TestGetProfile(t *testing.T) {
	t.Parallel()

	srv, token := newProfileServer(t, seededStore(nil))

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	var p user.Profile
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, 12, p.PoemCredits)
}

func TestGetProfileUnauthorized(t *testing.T) {
	t.Parallel()

	srv, _ := newProfileServer(t, seededStore(nil))

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	store := seededStore(nil)
	srv, token := newProfileServer(t, store)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/update", token,
		`{"name":"Ada Lovelace","bio":"first programmer"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	assert.Equal(t, "Ada Lovelace", store.byID["u1"].Name)
	assert.Equal(t, "first programmer", store.byID["u1"].Bio)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("old password"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		store := seededStore(hash)
		srv, token := newProfileServer(t, store)

		resp, env := doJSON(t, http.MethodPost, srv.URL+"/change-password", token,
			`{"currentPassword":"old password","newPassword":"new password"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, env.Success)
		assert.NoError(t, bcrypt.CompareHashAndPassword(store.updatedHash, []byte("new password")))
	})

	t.Run("wrong current password", func(t *testing.T) {
		store := seededStore(hash)
		srv, token := newProfileServer(t, store)

		resp, env := doJSON(t, http.MethodPost, srv.URL+"/change-password", token,
			`{"currentPassword":"guess","newPassword":"new password"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.False(t, env.Success)
		assert.Nil(t, store.updatedHash)
	})

	t.Run("weak new password", func(t *testing.T) {
		store := seededStore(hash)
		srv, token := newProfileServer(t, store)

		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/change-password", token,
			`{"currentPassword":"old password","newPassword":"short"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStats(t *testing.T) {
	t.Parallel()

	srv, token := newProfileServer(t, seededStore(nil))

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/stats", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	var stats struct {
		PoemCredits      int       `json:"poemCredits"`
		SubscriptionPlan string    `json:"subscriptionPlan"`
		IsEmailVerified  bool      `json:"isEmailVerified"`
		JoinedDate       time.Time `json:"joinedDate"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 12, stats.PoemCredits)
	assert.Equal(t, "free", stats.SubscriptionPlan)
	assert.True(t, stats.IsEmailVerified)
	assert.Equal(t, 2025, stats.JoinedDate.Year())
}
