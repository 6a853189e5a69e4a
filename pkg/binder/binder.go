package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxJSONSize caps JSON request bodies at 1 MiB. Poem parameters and auth
// payloads are tiny; anything larger is abuse.
const MaxJSONSize = 1 << 20

var (
	ErrUnsupportedMediaType = errors.New("binder: unsupported media type")
	ErrMissingContentType   = errors.New("binder: missing content type")
	ErrInvalidJSON          = errors.New("binder: invalid json body")
	ErrBodyTooLarge         = errors.New("binder: request body too large")
)

// BindJSON decodes an application/json request body into v. The content
// type must be application/json; parameters like charset are tolerated.
func BindJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ErrMissingContentType
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: got %q, expected application/json", ErrUnsupportedMediaType, ct)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxJSONSize+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if len(body) > MaxJSONSize {
		return ErrBodyTooLarge
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidJSON)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
