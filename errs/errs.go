// Package errs defines the error taxonomy shared by the mapping engine.
//
// Every error returned by the engine wraps one of the sentinels below, so
// callers can classify failures with errors.Is. An infeasible partition is not
// an error; it is reported through partition.Cost.
package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrLookup marks a dimension, tensor or operator key that is absent from
	// the map it is looked up in.
	ErrLookup = errors.New("lookup error")

	// ErrConfiguration marks invalid user-supplied configuration, such as a
	// non-positive mesh field or an empty operator set.
	ErrConfiguration = errors.New("configuration error")
)

// Lookupf returns an error wrapping ErrLookup.
func Lookupf(format string, args ...any) error {
	return errors.Wrapf(ErrLookup, format, args...)
}

// Configf returns an error wrapping ErrConfiguration.
func Configf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// IsLookup reports whether err is a lookup error.
func IsLookup(err error) bool {
	return errors.Is(err, ErrLookup)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
