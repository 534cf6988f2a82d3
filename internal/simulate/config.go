// Package simulate drives a running session over HTTP the way a host does
// and checks the outcome.
package simulate

import (
	"errors"
	"time"
)

// Default configuration constants.
const (
	DefaultRounds       = 10
	DefaultTimeout      = 10 * time.Second
	DefaultRoundTimeout = 30 * time.Second
	DefaultRoundLength  = 120 * time.Second
)

// ErrRoundTimeout is returned when the session does not finish a round in time.
var ErrRoundTimeout = errors.New("round not processed in time")

// Config holds the simulation settings.
type Config struct {
	// BaseURL of the session HTTP API.
	BaseURL string
	// Rounds is the number of normal rounds to play.
	Rounds int
	// Annihilations is the number of annihilation rounds played after them.
	Annihilations int
	// Duplicates sends a second normal end after each processed round.
	Duplicates bool
	// RoundLength is the simulated time between round starts.
	RoundLength time.Duration
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// RoundTimeout bounds the wait for one round to be processed.
	RoundTimeout time.Duration
	// PollInterval is the delay between stats polls.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Rounds < 0 {
		c.Rounds = 0
	}
	if c.Annihilations < 0 {
		c.Annihilations = 0
	}
	if c.RoundLength <= 0 {
		c.RoundLength = DefaultRoundLength
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = DefaultRoundTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
}
