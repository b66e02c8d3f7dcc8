// Package etlerr defines the error kinds raised while provisioning and loading.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure
type Kind string

const (
	KindConnection   Kind = "connection"
	KindProvisioning Kind = "provisioning"
	KindParse        Kind = "parse"
	KindLoad         Kind = "load"
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrConnection   = &Error{Kind: KindConnection}
	ErrProvisioning = &Error{Kind: KindProvisioning}
	ErrParse        = &Error{Kind: KindParse}
	ErrLoad         = &Error{Kind: KindLoad}
)

// Error is a pipeline failure tied to an entity (table or database name)
type Error struct {
	Kind   Kind
	Entity string
	Op     string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Entity != "" {
		msg = fmt.Sprintf("%s in %s", msg, e.Entity)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Connection reports that a server or database could not be reached
func Connection(entity, op string, err error) *Error {
	return &Error{Kind: KindConnection, Entity: entity, Op: op, Err: err}
}

// Provisioning reports a failed database or table creation
func Provisioning(entity, op string, err error) *Error {
	return &Error{Kind: KindProvisioning, Entity: entity, Op: op, Err: err}
}

// Parse reports a source value that could not be coerced
func Parse(entity, op string, err error) *Error {
	return &Error{Kind: KindParse, Entity: entity, Op: op, Err: err}
}

// Load reports a failed extraction or bulk insert
func Load(entity, op string, err error) *Error {
	return &Error{Kind: KindLoad, Entity: entity, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// WithEntity fills in the entity of an *Error that lacks one; other errors are
// wrapped as load errors for entity.
func WithEntity(err error, entity string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Entity != "" {
			return err
		}
		cp := *e
		cp.Entity = entity
		return &cp
	}
	return Load(entity, "", err)
}
