package binder_test

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/pkg/binder"
)

type samplePayload struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

func TestBindJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes valid payload", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"jo@example.com","count":3}`))
		req.Header.Set("Content-Type", "application/json")

		var out samplePayload
		require.NoError(t, binder.BindJSON(req, &out))
		assert.Equal(t, "jo@example.com", out.Email)
		assert.Equal(t, 3, out.Count)
	})

	t.Run("accepts charset parameter", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"jo@example.com"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		var out samplePayload
		require.NoError(t, binder.BindJSON(req, &out))
	})

	t.Run("rejects missing content type", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{}`))
		var out samplePayload
		require.ErrorIs(t, binder.BindJSON(req, &out), binder.ErrMissingContentType)
	})

	t.Run("rejects wrong content type", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader("email=jo"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		var out samplePayload
		require.ErrorIs(t, binder.BindJSON(req, &out), binder.ErrUnsupportedMediaType)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":`))
		req.Header.Set("Content-Type", "application/json")

		var out samplePayload
		require.ErrorIs(t, binder.BindJSON(req, &out), binder.ErrInvalidJSON)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/json")

		var out samplePayload
		require.ErrorIs(t, binder.BindJSON(req, &out), binder.ErrInvalidJSON)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		t.Parallel()

		huge := bytes.Repeat([]byte("a"), binder.MaxJSONSize+10)
		req := httptest.NewRequest("POST", "/", bytes.NewReader(huge))
		req.Header.Set("Content-Type", "application/json")

		var out samplePayload
		require.ErrorIs(t, binder.BindJSON(req, &out), binder.ErrBodyTooLarge)
	})
}
