package utils

import (
	"github.com/pkg/errors"
)

// The three failure classes of the reconstruction pipeline. Callers match them with errors.Is.
var (
	// ErrConfiguration marks a fatal setup problem (unavailable detector, invalid capture mode).
	ErrConfiguration = errors.New("configuration error")
	// ErrData marks input that cannot be processed (missing metadata, malformed point line, no images).
	ErrData = errors.New("data error")
	// ErrInsufficientData marks a unit (pair or cluster) with too little support to continue.
	ErrInsufficientData = errors.New("insufficient data")
)

// NewConfigurationError wraps ErrConfiguration with a formatted message.
func NewConfigurationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// NewDataError wraps ErrData with a formatted message.
func NewDataError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrData, format, args...)
}

// NewInsufficientDataError wraps ErrInsufficientData with a formatted message.
func NewInsufficientDataError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInsufficientData, format, args...)
}

// IsRecoverable returns true when the error only invalidates the current unit of work.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
