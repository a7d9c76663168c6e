package domain

import "errors"

// ErrUnauthorized marks a rejected credential. It is fatal: retrying cannot
// fix a bad API key, so the run must terminate.
var ErrUnauthorized = errors.New("catalog rejected credentials")

// ErrExhausted marks a request that failed after the whole retry budget; the
// affected entity is skipped and naturally retried on a later run.
var ErrExhausted = errors.New("retry budget exhausted")
