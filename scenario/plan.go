// Package scenario mirrors the original's logical module: a Scenario groups
// one or more execution Plans, each pairing a vu.Builder and an
// executor.Config against its own freshly-initialized datastore.Store.
package scenario

import (
	"fmt"
	"time"

	"github.com/trueleo/rusher/datastore"
	"github.com/trueleo/rusher/executor"
	"github.com/trueleo/rusher/vu"
)

// Plan is one execution plan: a builder, the discipline it runs under, the
// store initializers that populate its private datastore, and an optional
// delay before the plan starts relative to its scenario's entry.
type Plan struct {
	label        string
	builder      vu.Builder
	config       executor.Config
	initializers []datastore.Initializer
	startAfter   time.Duration
}

// NewPlan builds a Plan driving builder under cfg.
func NewPlan(builder vu.Builder, cfg executor.Config) *Plan {
	return &Plan{builder: builder, config: cfg}
}

// WithLabel sets the plan's display label, overriding the default derived
// from its discipline.
func (p *Plan) WithLabel(label string) *Plan {
	p.label = label
	return p
}

// WithInitializer appends a datastore initializer, run in the order added
// before this plan's executor is built.
func (p *Plan) WithInitializer(init datastore.Initializer) *Plan {
	p.initializers = append(p.initializers, init)
	return p
}

// WithStartAfter delays this plan's start by d relative to its scenario's
// entry (default zero).
func (p *Plan) WithStartAfter(d time.Duration) *Plan {
	p.startAfter = d
	return p
}

// Label returns the plan's display label, deriving one from its discipline
// and parameters if none was set explicitly.
func (p *Plan) Label() string {
	if p.label != "" {
		return p.label
	}
	switch p.config.Discipline {
	case executor.Once:
		return "Once"
	case executor.Constant:
		return fmt.Sprintf("Constant (%d users) %s", p.config.Users, p.config.Duration)
	case executor.Shared:
		return fmt.Sprintf("Shared (%d users) %d", p.config.Users, p.config.Iterations)
	case executor.PerUser:
		return fmt.Sprintf("PerUser (%d users) %d", p.config.Users, p.config.Iterations)
	case executor.RampingUser:
		return fmt.Sprintf("RampingUser (%d stages)", len(p.config.Stages))
	case executor.ConstantArrivalRate:
		return fmt.Sprintf("ConstantArrivalRate %d", p.config.MaxUsers)
	case executor.RampingArrivalRate:
		return fmt.Sprintf("RampingArrivalRate (%d stages)", len(p.config.RateStages))
	default:
		return p.config.Discipline.String()
	}
}

// StartAfter returns the plan's configured start delay.
func (p *Plan) StartAfter() time.Duration { return p.startAfter }

// Config returns the plan's executor configuration.
func (p *Plan) Config() executor.Config { return p.config }

// Builder returns the plan's user builder.
func (p *Plan) Builder() vu.Builder { return p.builder }

// NewStore builds a fresh datastore for this plan, running its initializers
// in the order they were added.
func (p *Plan) NewStore() *datastore.Store {
	store := datastore.New()
	for _, init := range p.initializers {
		init.InitStore(store)
	}
	return store
}
