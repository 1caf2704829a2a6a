// Package vu defines the workload abstraction: a virtual user exposing a
// single async operation, and the builder that produces one bound to a
// borrowed datastore.
package vu

import (
	"context"

	"github.com/trueleo/rusher/datastore"
	"github.com/trueleo/rusher/outcome"
)

// User is any value exposing a single operation, called sequentially by its
// owning executor driver loop — an implementation must never be re-entered
// concurrently with itself.
type User interface {
	Call(ctx context.Context) outcome.Outcome
}

// Func adapts a plain function to User, the same blanket-impl convenience
// the original's trait offers for closures.
type Func func(ctx context.Context) outcome.Outcome

// Call implements User.
func (f Func) Call(ctx context.Context) outcome.Outcome { return f(ctx) }

// Builder produces a User bound to store, lazily, on demand from an
// executor. Implementations must be safe to call concurrently: the
// Constant, Shared and PerUser executors build one user in each driver
// goroutine at the same time.
type Builder interface {
	Build(ctx context.Context, store *datastore.Store) (User, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, store *datastore.Store) (User, error)

// Build implements Builder.
func (f BuilderFunc) Build(ctx context.Context, store *datastore.Store) (User, error) {
	return f(ctx, store)
}
