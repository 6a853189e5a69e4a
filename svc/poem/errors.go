package poem

import "errors"

var (
	ErrInvalidRequest   = errors.New("poem: invalid generation request")
	ErrPoemNotFound     = errors.New("poem: not found or not owned by user")
	ErrGenerationFailed = errors.New("poem: generation failed")
	ErrEmptyCompletion  = errors.New("poem: model returned no content")
	ErrMissingAPIKey    = errors.New("poem: openai api key is required")
)
