// Package config loads run configuration the way the donor loads its own
// cloud and output configs: environment variables decoded through
// mstoykov/envconfig into gopkg.in/guregu/null.v3 fields, merged on top of
// in-code defaults, per SPEC_FULL.md's AMBIENT STACK.
package config

import (
	"time"

	"github.com/mstoykov/envconfig"
	null "gopkg.in/guregu/null.v3"
)

// Options holds the environment-overridable engine knobs: display
// consumers, telemetry coalescing, and buffer sizes.
type Options struct {
	EnableTUI null.Bool   `envconfig:"RUSHER_TUI"`
	EnableWeb null.Bool   `envconfig:"RUSHER_WEB"`
	WebAddr   null.String `envconfig:"RUSHER_WEB_ADDR"`

	TickIntervalMs null.Int `envconfig:"RUSHER_TICK_INTERVAL_MS"`
	MessageBuffer  null.Int `envconfig:"RUSHER_MESSAGE_BUFFER"`
}

// Defaults returns the baseline Options, so Load never has to guess at
// unset fields. WebAddr, TickIntervalMs and MessageBuffer match the
// defaults engine.Options fills in; EnableTUI defaults to true here, while
// engine.Options leaves it off unless set.
func Defaults() Options {
	return Options{
		EnableTUI:      null.BoolFrom(true),
		EnableWeb:      null.BoolFrom(false),
		WebAddr:        null.StringFrom(":8080"),
		TickIntervalMs: null.IntFrom(400),
		MessageBuffer:  null.IntFrom(256),
	}
}

// Apply overlays the set (Valid) fields of cfg onto the receiver, skipping
// an empty WebAddr, the same
// merge discipline the donor's cloud config applies env values over
// defaults with.
func (o Options) Apply(cfg Options) Options {
	if cfg.EnableTUI.Valid {
		o.EnableTUI = cfg.EnableTUI
	}
	if cfg.EnableWeb.Valid {
		o.EnableWeb = cfg.EnableWeb
	}
	if cfg.WebAddr.Valid && cfg.WebAddr.String != "" {
		o.WebAddr = cfg.WebAddr
	}
	if cfg.TickIntervalMs.Valid {
		o.TickIntervalMs = cfg.TickIntervalMs
	}
	if cfg.MessageBuffer.Valid {
		o.MessageBuffer = cfg.MessageBuffer
	}
	return o
}

// TickInterval converts the configured millisecond count to a
// time.Duration, falling back to 400ms if unset.
func (o Options) TickInterval() time.Duration {
	if !o.TickIntervalMs.Valid {
		return 400 * time.Millisecond
	}
	return time.Duration(o.TickIntervalMs.Int64) * time.Millisecond
}

// Load reads Options via envconfig from the given env map (not the process
// environment), applied on top of Defaults().
func Load(env map[string]string) (Options, error) {
	result := Defaults()

	envOpts := Options{}
	if err := envconfig.Process("", &envOpts, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return result, err
	}

	return result.Apply(envOpts), nil
}
