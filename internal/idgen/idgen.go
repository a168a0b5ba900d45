// Package idgen generates the opaque identifiers attached to jobs and
// messages. It lives under internal because callers must not rely on the
// format; treat the identifiers as opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier. It is a variable so
// tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a fresh identifier.
func New() string { return NewFunc() }
