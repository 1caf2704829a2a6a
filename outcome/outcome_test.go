package outcome_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueleo/rusher/outcome"
)

func TestGenericErrorUnwraps(t *testing.T) {
	t.Parallel()
	base := errors.New("connection reset")
	err := outcome.Generic(base)

	assert.Equal(t, base.Error(), err.Error())
	assert.ErrorIs(t, err, base)
	assert.False(t, outcome.IsTermination(err))
}

func TestTerminationErrorIsDetected(t *testing.T) {
	t.Parallel()
	err := outcome.Terminationf("target refused connection: %w", errors.New("ECONNREFUSED"))

	require.True(t, outcome.IsTermination(err))

	wrapped := fmt.Errorf("iteration failed: %w", err)
	assert.True(t, outcome.IsTermination(wrapped))

	assert.False(t, outcome.IsTermination(outcome.Generic(errors.New("transient"))))
}

func TestAsPanic(t *testing.T) {
	t.Parallel()

	err := outcome.AsPanic("boom")
	require.True(t, outcome.IsTermination(err))
	assert.Contains(t, err.Error(), "boom")

	err2 := outcome.AsPanic(errors.New("nil pointer"))
	assert.Contains(t, err2.Error(), "nil pointer")
}
