// Package agenterr attaches short machine-readable codes and a recoverability
// flag to fatal agent errors.
package agenterr

import (
	"errors"
	"fmt"
)

// Code is a short machine-readable error code.
type Code string

const (
	CodeUnknown         Code = "unknown"
	CodeConfigMissing   Code = "config_missing"
	CodeRoomConnect     Code = "room_connect"
	CodeParticipantWait Code = "participant_wait"
	CodeAudioSource     Code = "audio_source"
	CodeTrackPublish    Code = "track_publish"
	CodeRealtimeDial    Code = "realtime_dial"
	CodeReadyTimeout    Code = "ready_timeout"
)

// Error wraps an underlying error with a code and a recoverability flag.
type Error struct {
	Err         error
	ErrCode     Code
	Recoverable bool
}

func (e Error) Error() string {
	if e.Err == nil {
		return string(e.ErrCode)
	}
	return fmt.Sprintf("%s: %v", e.ErrCode, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a code to an error (no-op if err is nil or already coded).
func Wrap(err error, code Code) error {
	return wrap(err, code, false)
}

// WrapRecoverable attaches a code to an error and marks it recoverable in
// principle. Nothing currently retries on this flag; it is carried for
// supervisors that may.
func WrapRecoverable(err error, code Code) error {
	return wrap(err, code, true)
}

func wrap(err error, code Code, recoverable bool) error {
	if err == nil {
		return nil
	}
	var ae Error
	if errors.As(err, &ae) {
		return err
	}
	return Error{Err: err, ErrCode: code, Recoverable: recoverable}
}

// CodeOf extracts the code from an error, if present.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	var ae Error
	if errors.As(err, &ae) {
		return ae.ErrCode
	}
	return CodeUnknown
}

// IsRecoverable reports whether the error carries the recoverable flag.
func IsRecoverable(err error) bool {
	var ae Error
	if errors.As(err, &ae) {
		return ae.Recoverable
	}
	return false
}
