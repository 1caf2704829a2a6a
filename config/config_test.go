package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueleo/rusher/config"
)

func TestLoadAppliesDefaultsWhenEnvEmpty(t *testing.T) {
	t.Parallel()

	opts, err := config.Load(nil)
	require.NoError(t, err)
	assert.True(t, opts.EnableTUI.ValueOrZero())
	assert.False(t, opts.EnableWeb.ValueOrZero())
	assert.Equal(t, ":8080", opts.WebAddr.ValueOrZero())
	assert.Equal(t, 400*time.Millisecond, opts.TickInterval())
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"RUSHER_WEB":              "true",
		"RUSHER_WEB_ADDR":         ":9090",
		"RUSHER_TICK_INTERVAL_MS": "100",
		"RUSHER_MESSAGE_BUFFER":   "512",
	}

	opts, err := config.Load(env)
	require.NoError(t, err)
	assert.True(t, opts.EnableWeb.ValueOrZero())
	assert.Equal(t, ":9090", opts.WebAddr.ValueOrZero())
	assert.Equal(t, 100*time.Millisecond, opts.TickInterval())
	assert.EqualValues(t, 512, opts.MessageBuffer.ValueOrZero())
}
