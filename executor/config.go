// Package executor implements the seven load-generation disciplines: Once,
// Constant, Shared, PerUser, RampingUser, ConstantArrivalRate, and
// RampingArrivalRate. Each discipline drives one or more vu.User values
// built from a shared vu.Builder and forwards per-iteration outcomes to an
// unbounded-by-convention channel while reporting lifecycle and task-time
// telemetry through a telemetry.Bridge.
package executor

import (
	"fmt"
	"time"
)

// Discipline names one of the seven executor kinds a Config describes.
type Discipline int

const (
	Once Discipline = iota
	Constant
	Shared
	PerUser
	RampingUser
	ConstantArrivalRate
	RampingArrivalRate
)

func (d Discipline) String() string {
	switch d {
	case Once:
		return "once"
	case Constant:
		return "constant"
	case Shared:
		return "shared"
	case PerUser:
		return "per_user"
	case RampingUser:
		return "ramping_user"
	case ConstantArrivalRate:
		return "constant_arrival_rate"
	case RampingArrivalRate:
		return "ramping_arrival_rate"
	default:
		return "unknown"
	}
}

// Rate is a count of iteration starts per time window, e.g. Rate{Count: 10,
// Window: time.Second} means "10 starts per second".
type Rate struct {
	Count  uint64
	Window time.Duration
}

// Stage is one step of a RampingUser plan: grow the pool to at least
// `Target` users and run it for `Duration`. The pool never shrinks, so a
// smaller Target than an earlier stage's keeps the larger pool.
type Stage struct {
	Duration time.Duration
	Target   uint64
}

// RateStage is one step of a RampingArrivalRate plan: issue at `Rate` for
// `Duration`.
type RateStage struct {
	Rate     Rate
	Duration time.Duration
}

// Config is a tagged union describing one executor's discipline and its
// parameters. Use the constructor functions rather than building Config
// directly; they fill in the fields the Discipline needs, and Validate
// (called by New) checks that combination.
type Config struct {
	Discipline Discipline

	Users       uint64
	Iterations  uint64
	Duration    time.Duration
	PreAllocate uint64
	MaxUsers    uint64

	Stages     []Stage
	RateStages []RateStage
}

// NewOnce builds a Config for a single build-and-call-once executor.
func NewOnce() Config {
	return Config{Discipline: Once}
}

// NewConstant builds a Config for `users` drivers looping continuously for
// `duration`.
func NewConstant(users uint64, duration time.Duration) Config {
	return Config{Discipline: Constant, Users: users, Duration: duration}
}

// NewShared builds a Config for `users` drivers racing to consume
// `iterations` total operations, bounded by `duration`.
func NewShared(users, iterations uint64, duration time.Duration) Config {
	return Config{Discipline: Shared, Users: users, Iterations: iterations, Duration: duration}
}

// NewPerUser builds a Config where each of `users` drivers performs exactly
// `iterations` operations.
func NewPerUser(users, iterations uint64) Config {
	return Config{Discipline: PerUser, Users: users, Iterations: iterations}
}

// NewRampingUser builds a Config stepping the user pool through stages,
// starting from a pool of preAllocate users.
func NewRampingUser(preAllocate uint64, stages []Stage) Config {
	return Config{Discipline: RampingUser, PreAllocate: preAllocate, Stages: stages}
}

// NewConstantArrivalRate builds a Config for a single-stage open model:
// start operations at `rate`, up to `maxUsers` concurrent user slots, for
// `duration`. Implemented as RampingArrivalRate with one stage.
func NewConstantArrivalRate(preAllocate uint64, rate Rate, maxUsers uint64, duration time.Duration) Config {
	return NewRampingArrivalRate(preAllocate, maxUsers, []RateStage{{Rate: rate, Duration: duration}})
}

// NewRampingArrivalRate builds a Config for an open model stepping the
// target rate through stages, growing the user pool on demand up to
// maxUsers.
func NewRampingArrivalRate(preAllocate, maxUsers uint64, stages []RateStage) Config {
	return Config{Discipline: RampingArrivalRate, PreAllocate: preAllocate, MaxUsers: maxUsers, RateStages: stages}
}

// Validate reports a non-nil error if the Config's fields are inconsistent
// with its Discipline.
func (c Config) Validate() error {
	switch c.Discipline {
	case Once:
		return nil
	case Constant:
		return requirePositive("users", c.Users)
	case Shared:
		if err := requirePositive("users", c.Users); err != nil {
			return err
		}
		return requirePositive("iterations", c.Iterations)
	case PerUser:
		if err := requirePositive("users", c.Users); err != nil {
			return err
		}
		return requirePositive("iterations", c.Iterations)
	case RampingUser:
		if len(c.Stages) == 0 {
			return fmt.Errorf("executor: ramping_user requires at least one stage")
		}
		return nil
	case ConstantArrivalRate, RampingArrivalRate:
		if len(c.RateStages) == 0 {
			return fmt.Errorf("executor: ramping_arrival_rate requires at least one stage")
		}
		if c.MaxUsers == 0 {
			return fmt.Errorf("executor: ramping_arrival_rate requires max_users > 0")
		}
		return nil
	default:
		return fmt.Errorf("executor: unknown discipline %d", c.Discipline)
	}
}

func requirePositive(field string, v uint64) error {
	if v == 0 {
		return fmt.Errorf("executor: %s must be > 0", field)
	}
	return nil
}
