package service

import (
	"time"

	"github.com/okian/stagedrops/internal/domain/drops"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/internal/domain/report"
	"github.com/okian/stagedrops/internal/domain/stats"
	"github.com/okian/stagedrops/internal/domain/timing"
	"github.com/okian/stagedrops/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum number of pending round events.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithHistorySize sets how many notifications are kept for observers.
func WithHistorySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.historySize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStopTargets sets the item quantities that end the session.
func WithStopTargets(targets map[string]int) Option {
	return func(s *Service) {
		s.stopTargets = targets
	}
}

// WithTimings sets the host task timing table.
func WithTimings(table timing.Table) Option {
	return func(s *Service) {
		s.timings = table
	}
}

// WithFrameSource sets where settlement frames come from.
func WithFrameSource(frames drops.FrameSource) Option {
	return func(s *Service) {
		s.frames = frames
	}
}

// WithAnalyzer sets the drop analyzer.
func WithAnalyzer(analyzer drops.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = analyzer
	}
}

// WithControl sets the host control surface. Defaults to a recorder the
// host can poll.
func WithControl(control Control) Option {
	return func(s *Service) {
		if control != nil {
			s.control = control
		}
	}
}

// WithItemNames sets the item display name lookup.
func WithItemNames(names stats.ItemNames) Option {
	return func(s *Service) {
		s.names = names
	}
}

// WithStageCatalog sets the stage metadata lookup.
func WithStageCatalog(catalog stats.StageCatalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithUploader sets the report transport.
func WithUploader(uploader report.Uploader) Option {
	return func(s *Service) {
		s.uploader = uploader
	}
}

// WithReportOptions configures the reporting pipeline.
func WithReportOptions(opts ...report.Option) Option {
	return func(s *Service) {
		s.reportOpts = append(s.reportOpts, opts...)
	}
}

// WithSink adds an observer for session notifications.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithClock overrides the wall clock used for round timing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
