package engine

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidOrder rejects a request before any book mutation.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotFound is returned by Cancel for unknown or already removed ids.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidConfig is returned by New for unusable market parameters.
	ErrInvalidConfig = errors.New("invalid engine config")
	// ErrRestoreNonEmpty is returned when restoring into a book that already has orders.
	ErrRestoreNonEmpty = errors.New("restore into non-empty book")
)

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidOrder, format, args...)
}
