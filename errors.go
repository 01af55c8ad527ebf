package fibcore

import "github.com/gatekeeper-fib/fibcore/internal/types"

// Error kinds surfaced across every entry point (spec.md §7). Mutations
// are all-or-nothing: on any error the observable state is identical to
// the pre-call state.
var (
	ErrInvalidArg   = types.ErrInvalidArg
	ErrNotFound     = types.ErrNotFound
	ErrExists       = types.ErrExists
	ErrNotPermitted = types.ErrNotPermitted
	ErrNoSpace      = types.ErrNoSpace
	ErrResolverFail = types.ErrResolverFail
	ErrInternal     = types.ErrInternal
)
