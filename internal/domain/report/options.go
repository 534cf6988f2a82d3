package report

import (
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithEnabled turns reporting on or off.
func WithEnabled(enabled bool) Option {
	return func(p *Pipeline) {
		p.enabled = enabled
	}
}

// WithServer sets the region tag of the game server.
func WithServer(server string) Option {
	return func(p *Pipeline) {
		p.server = server
	}
}

// WithCredential sets the initial identity sent with uploads.
func WithCredential(id string) Option {
	return func(p *Pipeline) {
		p.credential = id
	}
}

// WithSource sets the source tag of the payload.
func WithSource(source string) Option {
	return func(p *Pipeline) {
		if source != "" {
			p.source = source
		}
	}
}

// WithVersion sets the client version of the payload.
func WithVersion(version string) Option {
	return func(p *Pipeline) {
		if version != "" {
			p.version = version
		}
	}
}

// WithRetries sets how many times the uploader may retry.
func WithRetries(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithSink sets the notification sink.
func WithSink(sink notify.Sink) Option {
	return func(p *Pipeline) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
