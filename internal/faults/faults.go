// Package faults defines the error taxonomy shared by every phase of a
// sweep study, and a collector that gathers non-fatal faults from
// concurrent workers.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a fault by how the pipeline reacts to it.
type Kind string

const (
	// KindConfiguration covers a missing or malformed source table, base
	// document or run template. Fatal: the study stops before any batch work.
	KindConfiguration Kind = "configuration"
	// KindRange covers an unusable range descriptor. The attribute (and so
	// its entity) is skipped.
	KindRange Kind = "range"
	// KindWrite covers a derived document or run config that could not be
	// written. The combination is skipped.
	KindWrite Kind = "write"
	// KindJob covers a simulator run that exited non-zero or failed to start.
	KindJob Kind = "job"
	// KindParse covers a malformed result document. The file is skipped.
	KindParse Kind = "parse"
	// KindCleanup covers transient artifacts that could not be removed.
	KindCleanup Kind = "cleanup"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInvalidRange  = errors.New("invalid range")
	ErrWrite         = errors.New("write error")
	ErrJobFailed     = errors.New("job failed")
	ErrParse         = errors.New("parse error")
	ErrCleanup       = errors.New("cleanup error")
)

var sentinels = map[Kind]error{
	KindConfiguration: ErrConfiguration,
	KindRange:         ErrInvalidRange,
	KindWrite:         ErrWrite,
	KindJob:           ErrJobFailed,
	KindParse:         ErrParse,
	KindCleanup:       ErrCleanup,
}

// Error is a classified fault. Subject names the file, job or
// entity/attribute the fault is about.
type Error struct {
	Kind    Kind
	Op      string
	Subject string
	Err     error
}

// New builds a classified fault.
func New(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// Newf builds a classified fault with a formatted cause.
func Newf(kind Kind, op, subject, format string, args ...interface{}) *Error {
	return New(kind, op, subject, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Op
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this fault's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsFatal reports whether err must stop the study.
func IsFatal(err error) bool {
	return KindOf(err) == KindConfiguration
}
