package datastore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueleo/rusher/datastore"
)

type client struct{ baseURL string }

func TestInsertAndGet(t *testing.T) {
	t.Parallel()
	s := datastore.New()

	datastore.Insert(s, []string{"a", "b", "c"})
	datastore.Insert(s, client{baseURL: "https://example.invalid"})

	words, ok := datastore.Get[[]string](s)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, words)

	c, ok := datastore.Get[client](s)
	require.True(t, ok)
	assert.Equal(t, "https://example.invalid", c.baseURL)
}

func TestGetMissingTypeIsFalse(t *testing.T) {
	t.Parallel()
	s := datastore.New()

	_, ok := datastore.Get[int](s)
	assert.False(t, ok)
}

func TestMustGetPanicsWhenAbsent(t *testing.T) {
	t.Parallel()
	s := datastore.New()

	assert.Panics(t, func() {
		datastore.MustGet[string](s)
	})
}

func TestInsertSameTypeTwicePanics(t *testing.T) {
	t.Parallel()
	s := datastore.New()
	datastore.Insert(s, 1)

	assert.Panics(t, func() {
		datastore.Insert(s, 2)
	})
}

func TestInitializerFunc(t *testing.T) {
	t.Parallel()
	s := datastore.New()

	var init datastore.Initializer = datastore.InitializerFunc(func(s *datastore.Store) {
		datastore.Insert(s, "seeded")
	})
	init.InitStore(s)

	v, ok := datastore.Get[string](s)
	require.True(t, ok)
	assert.Equal(t, "seeded", v)
}
