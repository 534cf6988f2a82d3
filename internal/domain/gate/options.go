// Package gate decides which round completion events may trigger recognition.
package gate

import "github.com/okian/stagedrops/pkg/logger"

// Option applies a configuration option to the gate.
type Option func(*stateGate)

// WithLogger sets a custom logger for the gate.
func WithLogger(l logger.Logger) Option {
	return func(g *stateGate) {
		if l != nil {
			g.logger = l
		}
	}
}
