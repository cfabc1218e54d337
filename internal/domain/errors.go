package domain

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrMalformedSnapshot marks a position snapshot that cannot be evaluated.
	ErrMalformedSnapshot = errors.New("malformed position snapshot")

	// ErrInvalidConfig marks rule configuration rejected at engine construction.
	ErrInvalidConfig = errors.New("invalid rule configuration")

	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownAction is returned for a button action outside the catalog.
	ErrUnknownAction = errors.New("unknown alert action")

	// ErrAlertNotOwned is returned when a user acts on someone else's alert.
	ErrAlertNotOwned = errors.New("alert belongs to another user")
)

type MalformedSnapshotError struct {
	Symbol string
	Field  string
	Reason string
}

func (e *MalformedSnapshotError) Error() string {
	return fmt.Sprintf("malformed snapshot %q: %s %s", e.Symbol, e.Field, e.Reason)
}

func (e *MalformedSnapshotError) Unwrap() error { return ErrMalformedSnapshot }

// SplitMalformed separates the per-position failures an AccountProvider
// reports next to its snapshots from the error that failed the whole call.
func SplitMalformed(err error) (malformed []error, rest error) {
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, ErrMalformedSnapshot) {
			malformed = append(malformed, e)
			continue
		}
		rest = multierr.Append(rest, e)
	}
	return malformed, rest
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
