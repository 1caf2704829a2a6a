package executor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trueleo/rusher/executor"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     executor.Config
		wantErr bool
	}{
		{"once", executor.NewOnce(), false},
		{"constant ok", executor.NewConstant(1, time.Second), false},
		{"constant zero users", executor.NewConstant(0, time.Second), true},
		{"shared ok", executor.NewShared(2, 10, time.Second), false},
		{"shared zero iterations", executor.NewShared(2, 0, time.Second), true},
		{"per_user ok", executor.NewPerUser(1, 1), false},
		{"ramping_user no stages", executor.NewRampingUser(1, nil), true},
		{"ramping_user ok", executor.NewRampingUser(1, []executor.Stage{{Duration: time.Second, Target: 1}}), false},
		{
			"arrival rate ok",
			executor.NewConstantArrivalRate(1, executor.Rate{Count: 1, Window: time.Second}, 1, time.Second),
			false,
		},
		{
			"arrival rate zero max_users",
			executor.NewRampingArrivalRate(1, 0, []executor.RateStage{{Rate: executor.Rate{Count: 1, Window: time.Second}, Duration: time.Second}}),
			true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisciplineString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "once", executor.Once.String())
	assert.Equal(t, "ramping_arrival_rate", executor.RampingArrivalRate.String())
}
