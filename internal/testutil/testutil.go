// Package testutil carries small test doubles shared across package tests,
// mirroring the donor's lib/testutils/minirunner and
// testutils.SimpleLogrusHook.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/trueleo/rusher/datastore"
	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/vu"
)

// FuncUser adapts a plain func into a vu.User while counting how many times
// it was called, for assertions on iteration counts.
type FuncUser struct {
	fn    func(ctx context.Context) outcome.Outcome
	calls atomic.Uint64
}

// NewFuncUser wraps fn as a counting vu.User.
func NewFuncUser(fn func(ctx context.Context) outcome.Outcome) *FuncUser {
	return &FuncUser{fn: fn}
}

func (u *FuncUser) Call(ctx context.Context) outcome.Outcome {
	u.calls.Add(1)
	if u.fn == nil {
		return nil
	}
	return u.fn(ctx)
}

// Calls reports how many times Call has been invoked (counted on entry).
func (u *FuncUser) Calls() uint64 { return u.calls.Load() }

// MiniBuilder is a vu.Builder that hands out whatever users its New func
// returns and records every user it built, for assertions on pool growth.
type MiniBuilder struct {
	New func(ctx context.Context, store *datastore.Store) (vu.User, error)

	mu    sync.Mutex
	built []vu.User
}

func (b *MiniBuilder) Build(ctx context.Context, store *datastore.Store) (vu.User, error) {
	u, err := b.New(ctx, store)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.built = append(b.built, u)
	b.mu.Unlock()
	return u, nil
}

// Built returns every user MiniBuilder has built so far.
func (b *MiniBuilder) Built() []vu.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]vu.User, len(b.built))
	copy(out, b.built)
	return out
}

// LogHook is a logrus.Hook that records every entry fired at it, mirroring
// the donor's testutils.SimpleLogrusHook.
type LogHook struct {
	mu      sync.Mutex
	entries []*logrus.Entry
	levels  []logrus.Level
}

// NewLogHook builds a LogHook that fires for the given levels (all levels
// if none given).
func NewLogHook(levels ...logrus.Level) *LogHook {
	return &LogHook{levels: levels}
}

func (h *LogHook) Levels() []logrus.Level {
	if len(h.levels) == 0 {
		return logrus.AllLevels
	}
	return h.levels
}

func (h *LogHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

// Entries returns every entry recorded so far.
func (h *LogHook) Entries() []*logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*logrus.Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Drain clears recorded entries.
func (h *LogHook) Drain() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}
