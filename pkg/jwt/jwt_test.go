package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/pkg/jwt"
)

const testKey = "test-signing-key-0123456789abcdef"

func TestService_GenerateParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		in := jwt.AccessClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-123",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
			Email: "poet@example.com",
			Plan:  "pro",
		}

		token, err := svc.Generate(in)
		require.NoError(t, err)

		var out jwt.AccessClaims
		require.NoError(t, svc.Parse(token, &out))
		assert.Equal(t, in.Subject, out.Subject)
		assert.Equal(t, in.Email, out.Email)
		assert.Equal(t, in.Plan, out.Plan)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.AccessClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-123",
				ExpiresAt: time.Now().Add(-time.Minute).Unix(),
			},
		})
		require.NoError(t, err)

		var out jwt.AccessClaims
		err = svc.Parse(token, &out)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.AccessClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-123"},
		})
		require.NoError(t, err)

		var out jwt.AccessClaims
		err = svc.Parse(token+"x", &out)
		assert.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.NewFromString("another-key-another-key-another!")
		require.NoError(t, err)

		token, err := svc.Generate(jwt.AccessClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-123"},
		})
		require.NoError(t, err)

		var out jwt.AccessClaims
		err = other.Parse(token, &out)
		assert.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()

		var out jwt.AccessClaims
		assert.ErrorIs(t, svc.Parse("not-a-token", &out), jwt.ErrInvalidToken)
	})

	t.Run("nil claims", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Generate(nil)
		assert.ErrorIs(t, err, jwt.ErrMissingClaims)
	})
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	_, err = jwt.NewFromString("")
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString(testKey)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := jwt.GetClaims(r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.Subject))
	})
	handler := jwt.Middleware(svc)(next)

	t.Run("valid token passes through", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.AccessClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-42",
				ExpiresAt: time.Now().Add(time.Hour).Unix(),
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", rec.Body.String())
	})

	t.Run("missing header rejected", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserID(t *testing.T) {
	t.Parallel()

	ctx := jwt.SetClaims(t.Context(), jwt.AccessClaims{
		StandardClaims: jwt.StandardClaims{Subject: "user-7"},
	})
	assert.Equal(t, "user-7", jwt.UserID(ctx))
	assert.Empty(t, jwt.UserID(t.Context()))
}
