package repository

import "errors"

var (
	// ErrDuplicateItem is the expected outcome of dedup, not a failure.
	ErrDuplicateItem = errors.New("duplicate item")

	// ErrTickOverlap means a compute tick was requested while another
	// was still running; the new tick is skipped.
	ErrTickOverlap = errors.New("compute tick overlap")

	// ErrInsufficientHistory means price history does not yet cover the
	// requested horizon; the caller should retry later.
	ErrInsufficientHistory = errors.New("insufficient price history")
)

// transientError marks a source error as retryable.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient and should be retried with backoff.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
