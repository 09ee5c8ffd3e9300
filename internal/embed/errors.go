package embed

import "errors"

var (
	ErrUnavailable     = errors.New("embedding service unavailable")
	ErrTimeout         = errors.New("embedding request timeout")
	ErrInvalidResponse = errors.New("embedding service returned invalid response")
)
