// Package fault classifies failures by the phase of a legacy tool call in
// which they happened: configuration, provisioning, process or validation.
package fault

import (
	"errors"
	"fmt"
)

// Kind names the phase that failed.
type Kind string

const (
	KindUnknown       Kind = ""
	KindConfiguration Kind = "configuration"
	KindProvision     Kind = "provision"
	KindLaunch        Kind = "launch"
	KindIO            Kind = "io"
	KindExit          Kind = "exit"
	KindTimeout       Kind = "timeout"
	KindCanceled      Kind = "canceled"
	KindMismatch      Kind = "mismatch"
)

// Error is a phase-tagged error. Status carries the exit status for KindExit.
type Error struct {
	Kind   Kind
	Tool   string
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Tool != "" {
		msg = e.Tool + ": " + msg
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Kind == KindExit {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Kinded is implemented by error types outside this package that belong to
// a phase, such as comparison mismatches.
type Kinded interface {
	FaultKind() Kind
}

// KindOf returns the phase of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.FaultKind()
	}
	return KindUnknown
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Configf builds a configuration error for tool.
func Configf(tool, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Tool: tool, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, tool, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Tool: tool, Op: op, Err: err}
}
