package config

import (
	"fmt"

	"github.com/trueleo/rusher/executor"
)

// ToExecutorConfig converts the declarative PlanSpec into an executor.Config
// built with the executor.NewXxx constructors, then checks it with
// Config.Validate, the same check executor.New applies.
func (p PlanSpec) ToExecutorConfig() (executor.Config, error) {
	var cfg executor.Config

	switch p.Discipline {
	case "once":
		cfg = executor.NewOnce()
	case "constant":
		cfg = executor.NewConstant(uint64(p.Users), p.Duration)
	case "shared":
		cfg = executor.NewShared(uint64(p.Users), uint64(p.Iterations), p.Duration)
	case "per_user":
		cfg = executor.NewPerUser(uint64(p.Users), uint64(p.Iterations))
	case "ramping_user":
		stages := make([]executor.Stage, len(p.Stages))
		for i, s := range p.Stages {
			stages[i] = executor.Stage{Target: uint64(s.Target), Duration: s.Duration}
		}
		cfg = executor.NewRampingUser(uint64(p.PreAllocate), stages)
	case "constant_arrival_rate":
		cfg = executor.NewConstantArrivalRate(
			uint64(p.PreAllocate),
			executor.Rate{Count: uint64(p.Rate), Window: p.RatePer},
			uint64(p.MaxUsers),
			p.Duration,
		)
	case "ramping_arrival_rate":
		stages := make([]executor.RateStage, len(p.RateStages))
		for i, s := range p.RateStages {
			stages[i] = executor.RateStage{
				Rate:     executor.Rate{Count: uint64(s.Target), Window: p.RatePer},
				Duration: s.Duration,
			}
		}
		cfg = executor.NewRampingArrivalRate(uint64(p.PreAllocate), uint64(p.MaxUsers), stages)
	default:
		return executor.Config{}, fmt.Errorf("config: unknown discipline %q", p.Discipline)
	}

	if err := cfg.Validate(); err != nil {
		return executor.Config{}, fmt.Errorf("config: plan %q: %w", p.Label, err)
	}
	return cfg, nil
}
