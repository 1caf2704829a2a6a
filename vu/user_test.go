package vu_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueleo/rusher/datastore"
	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/vu"
)

type counterUser struct {
	calls int
}

func (c *counterUser) Call(_ context.Context) outcome.Outcome {
	c.calls++
	return nil
}

func TestFuncAdaptsToUser(t *testing.T) {
	t.Parallel()

	called := false
	var u vu.User = vu.Func(func(_ context.Context) outcome.Outcome {
		called = true
		return nil
	})

	require.NoError(t, u.Call(context.Background()))
	assert.True(t, called)
}

func TestBuilderFuncBorrowsStore(t *testing.T) {
	t.Parallel()

	store := datastore.New()
	datastore.Insert(store, "seed-value")

	builder := vu.BuilderFunc(func(_ context.Context, s *datastore.Store) (vu.User, error) {
		v := datastore.MustGet[string](s)
		return &stringEchoUser{value: v}, nil
	})

	built, err := builder.Build(context.Background(), store)
	require.NoError(t, err)

	echo, ok := built.(*stringEchoUser)
	require.True(t, ok)
	assert.Equal(t, "seed-value", echo.value)
}

type stringEchoUser struct{ value string }

func (s *stringEchoUser) Call(_ context.Context) outcome.Outcome { return nil }

func TestUserIsSequentialPerInstance(t *testing.T) {
	t.Parallel()

	u := &counterUser{}
	for i := 0; i < 5; i++ {
		require.NoError(t, u.Call(context.Background()))
	}
	assert.Equal(t, 5, u.calls)
}
