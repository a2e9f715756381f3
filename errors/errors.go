// Package errors re-exports github.com/cockroachdb/errors and defines the
// failure taxonomy of the prediction service.
//
// Artifact errors are fatal at start. ErrClassLabelsUnavailable is recovered
// by the loader with a fallback label set. ErrInference is reported back to
// the user together with the details attached through WithDetailf.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

var (
	// ErrArtifactMissing indicates that an artifact file does not exist.
	ErrArtifactMissing = New("artifact missing")

	// ErrArtifactCorrupt indicates that an artifact could not be deserialized.
	ErrArtifactCorrupt = New("artifact corrupt")

	// ErrClassLabelsUnavailable indicates that the model does not expose its class labels.
	ErrClassLabelsUnavailable = New("class labels unavailable")

	// ErrInference indicates a failure while building the input row or running the model.
	ErrInference = New("inference failed")
)

// Missingf wraps cause as an ErrArtifactMissing error.
func Missingf(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return Wrapf(ErrArtifactMissing, format, args...)
	}
	return Wrapf(crdb.Mark(cause, ErrArtifactMissing), format, args...)
}

// Corruptf wraps cause as an ErrArtifactCorrupt error.
func Corruptf(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return Wrapf(ErrArtifactCorrupt, format, args...)
	}
	return Wrapf(crdb.Mark(cause, ErrArtifactCorrupt), format, args...)
}

// Inferencef wraps cause as an ErrInference error. A nil cause produces a new
// error from the format.
func Inferencef(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return crdb.Mark(Newf(format, args...), ErrInference)
	}
	return Wrapf(crdb.Mark(cause, ErrInference), format, args...)
}

// IsArtifactError reports whether err is one of the fatal artifact errors.
func IsArtifactError(err error) bool {
	return err != nil && IsAny(err, ErrArtifactMissing, ErrArtifactCorrupt)
}

// IsInferenceError reports whether err is or wraps ErrInference.
func IsInferenceError(err error) bool {
	return err != nil && Is(err, ErrInference)
}
