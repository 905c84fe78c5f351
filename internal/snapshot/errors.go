package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument marks a structurally invalid document. Nothing is
	// written when it is returned.
	ErrMalformedDocument = errors.New("malformed snapshot document")
	// ErrStoreUnavailable wraps every store failure, constraint violations
	// included. The surrounding transaction was rolled back and nothing was
	// written. Retrying only helps when the underlying cause was transient.
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
	// ErrUnknownUser is returned when a per-user operation names a user that
	// does not exist.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnsupportedFormat is returned for file extensions other than
	// .json, .yaml and .yml.
	ErrUnsupportedFormat = errors.New("unsupported snapshot format")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDocument, fmt.Sprintf(format, args...))
}

// storeErr tags err as a store failure unless it already carries one of
// this package's sentinels.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrUnknownUser) || errors.Is(err, ErrMalformedDocument) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
