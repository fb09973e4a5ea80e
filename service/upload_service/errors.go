package upload_service

import (
	"errors"
	"fmt"
	"strings"

	"media-vault/storage"
)

// Error kinds surfaced by the coordinator. Match with errors.Is.
var (
	ErrSessionInit        = errors.New("session init failed")
	ErrPartURL            = errors.New("part url issuance failed")
	ErrComplete           = errors.New("complete failed")
	ErrCompleteValidation = errors.New("part list rejected")
	ErrAbort              = errors.New("abort failed")
	ErrProbe              = errors.New("media probe failed")
	ErrInvalidArgument    = errors.New("invalid argument")
)

var kindNames = map[error]string{
	ErrSessionInit:        "SessionInitError",
	ErrPartURL:            "PartUrlError",
	ErrComplete:           "CompleteError",
	ErrCompleteValidation: "CompleteValidationError",
	ErrAbort:              "AbortError",
	ErrProbe:              "ProbeError",
}

// Error wraps a failure with the step and session it happened in
type Error struct {
	Op       string
	UploadID string
	Key      string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.UploadID != "" {
		fmt.Fprintf(&b, " upload_id=%s", e.UploadID)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%s", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is makes a validation rejection also match ErrComplete
func (e *Error) Is(target error) bool {
	return e.Kind == ErrCompleteValidation && target == ErrComplete
}

// Terminal reports whether the provider rejected the call because the
// session is unknown, completed or aborted
func (e *Error) Terminal() bool {
	return errors.Is(e.Err, storage.ErrNoSuchUpload)
}

func newError(op, uploadId, key string, kind, err error) *Error {
	return &Error{Op: op, UploadID: uploadId, Key: key, Kind: kind, Err: err}
}

// KindName returns the client-visible name of the error kind, or
// "InternalError" for errors the coordinator did not produce.
// Argument errors keep the name of the step they failed in.
func KindName(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "InternalError"
	}
	if name, ok := kindNames[e.Kind]; ok {
		return name
	}
	return "InternalError"
}

// IsTerminal reports whether err carries a terminal-session rejection
func IsTerminal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Terminal()
}
