package engine

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures a Runner. All fields are optional; zero values pick
// the defaults documented below.
type Options struct {
	// EnableTUI starts a terminal progress display consuming the message
	// stream for the lifetime of the run.
	EnableTUI bool
	// EnableWeb starts an HTTP server exposing the message stream as
	// Server-Sent Events for the lifetime of the run.
	EnableWeb bool
	// WebAddr is the listen address used when EnableWeb is set. Defaults
	// to ":8080".
	WebAddr string

	// Logger receives executor and runner diagnostics. Defaults to
	// logrus.StandardLogger().
	Logger logrus.FieldLogger
	// TickInterval controls how often the telemetry bridge coalesces
	// ExecutorUpdate messages. Defaults to 400ms, per spec.md §4.5.
	TickInterval time.Duration
	// MessageBuffer sizes the telemetry bridge's outgoing channel.
	// Defaults to 256.
	MessageBuffer int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 400 * time.Millisecond
	}
	if o.MessageBuffer <= 0 {
		o.MessageBuffer = 256
	}
	if o.WebAddr == "" {
		o.WebAddr = ":8080"
	}
	return o
}
