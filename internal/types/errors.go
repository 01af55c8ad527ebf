package types

import "errors"

// Sentinel errors for the seven error kinds of spec.md §7. They live in
// this low-level package so every component (rib, lpmtrie, neighcache,
// fibcore) can return/wrap the same values without an import cycle back to
// the root package.
var (
	ErrInvalidArg   = errors.New("invalid argument")
	ErrNotFound     = errors.New("not found")
	ErrExists       = errors.New("exists")
	ErrNotPermitted = errors.New("not permitted")
	ErrNoSpace      = errors.New("no space")
	ErrResolverFail = errors.New("resolver subscription failed")
	ErrInternal     = errors.New("internal error")
)
