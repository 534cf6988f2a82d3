// Package service wires one automation session: the round pipeline, its
// event queue and worker, the reporting pipeline and the notification
// history.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stagedrops/internal/adapters/hostctl"
	eventqueue "github.com/okian/stagedrops/internal/adapters/mq/queue"
	"github.com/okian/stagedrops/internal/adapters/mq/worker"
	"github.com/okian/stagedrops/internal/adapters/repository"
	"github.com/okian/stagedrops/internal/domain/drops"
	"github.com/okian/stagedrops/internal/domain/gate"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/internal/domain/report"
	"github.com/okian/stagedrops/internal/domain/round"
	"github.com/okian/stagedrops/internal/domain/session"
	"github.com/okian/stagedrops/internal/domain/stats"
	"github.com/okian/stagedrops/internal/domain/stop"
	"github.com/okian/stagedrops/internal/domain/timing"
	"github.com/okian/stagedrops/pkg/logger"
)

const (
	defaultQueueSize   = 64
	defaultHistorySize = 256
	stopTimeout        = 10 * time.Second
)

// Control is the host surface the session steers.
type Control interface {
	timing.Control
	stop.Control
}

// ItemTotal is one row of the session totals.
type ItemTotal struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// Stats is the observable state of the session.
type Stats struct {
	Started        bool             `json:"started"`
	LastRoundStart int64            `json:"lastRoundStart"`
	QueueLength    int              `json:"queueLength"`
	QueueCapacity  int              `json:"queueCapacity"`
	Processed      int64            `json:"processed"`
	ReportPending  bool             `json:"reportPending"`
	Totals         []ItemTotal      `json:"totals"`
	Latest         *model.RoundInfo `json:"latest,omitempty"`
}

type noUploads struct{}

func (noUploads) Upload(context.Context, report.UploadRequest) (report.Receipt, error) {
	return report.Receipt{}, fmt.Errorf("%w: uploader", ErrMissingDependency)
}

// Service is one automation session.
type Service struct {
	mu sync.RWMutex

	// Dependencies
	frames     drops.FrameSource
	analyzer   drops.Analyzer
	control    Control
	names      stats.ItemNames
	catalog    stats.StageCatalog
	uploader   report.Uploader
	reportOpts []report.Option
	sinks      []notify.Sink

	// Configuration
	queueSize   int
	historySize int
	stopTargets map[string]int
	timings     timing.Table
	now         func() time.Time

	// Components
	state      *session.State
	store      *repository.TallyStore
	aggregator *stats.Aggregator
	reporter   *report.Pipeline
	pipeline   *round.Pipeline
	history    *notify.History
	events     *eventqueue.InMemoryQueue[model.Event]
	worker     *worker.InMemoryWorker[model.Event]

	processed atomic.Int64
	started   bool
	logger    logger.Logger
}

// New constructs a session. Components are built on Start.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:   defaultQueueSize,
		historySize: defaultHistorySize,
		timings:     timing.DefaultTable(),
		now:         time.Now,
		state:       session.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("session")
	}
	s.history = notify.NewHistory(s.historySize)

	return s
}

// Start builds the components and starts the event worker and the upload
// worker. They run until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.frames == nil || s.analyzer == nil {
		return fmt.Errorf("%w: frame source and analyzer are required", ErrMissingDependency)
	}

	sink := notify.Fanout(append([]notify.Sink{s.history, notify.NewLogSink(s.logger)}, s.sinks...))
	if s.control == nil {
		s.control = hostctl.New(sink)
	}
	// A restarted session begins with no round and no pending overrides.
	s.state.Reset()
	if rec, ok := s.control.(*hostctl.Recorder); ok {
		rec.Reset()
	}
	uploader := s.uploader
	if uploader == nil {
		uploader = noUploads{}
	}

	s.store = repository.NewTallyStore(ctx)
	s.aggregator = stats.NewAggregator(s.store,
		stats.WithItemNames(s.names),
		stats.WithStageCatalog(s.catalog),
		stats.WithSink(sink),
	)
	s.reporter = report.NewPipeline(uploader, append(s.reportOpts, report.WithSink(sink))...)
	if s.reporter.Enabled() && s.uploader == nil {
		_ = s.store.Close()
		return fmt.Errorf("%w: reporting is enabled without an uploader", ErrMissingDependency)
	}

	s.pipeline = round.NewPipeline(round.Deps{
		Gate:       gate.New(s.state),
		Calibrator: timing.NewCalibrator(s.timings, s.control, timing.WithClock(s.now)),
		Recognizer: drops.NewRecognizer(s.frames, s.analyzer, s.timings, s.state),
		Aggregator: s.aggregator,
		Evaluator:  stop.NewEvaluator(s.stopTargets, stop.WithSink(sink)),
		Reporter:   s.reporter,
		Control:    s.control,
		Sink:       sink,
	})

	s.events = eventqueue.NewInMemoryQueue[model.Event](eventqueue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker[model.Event](s.events,
		worker.HandlerFunc[model.Event](func(ctx context.Context, ev model.Event) error {
			defer s.processed.Add(1)
			out := s.pipeline.Process(ctx, ev)
			if out.Err != nil && recoverable(out.Err) {
				s.logger.Debug(ctx, "round skipped", logger.String("eventID", ev.ID), logger.Error(out.Err))
				return nil
			}
			return out.Err
		}),
		worker.WithName("round-worker"),
		worker.WithLogger(s.logger),
	)

	s.reporter.Start(ctx)
	go s.worker.Run(ctx)

	s.started = true
	s.logger.Info(ctx, "session started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("stopTargets", len(s.stopTargets)),
		logger.Bool("reporting", s.reporter.Enabled()),
	)

	return nil
}

// Stop drains the event queue, waits for the pending upload and releases
// the session.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping session...")

	_ = s.events.Close()
	select {
	case <-s.worker.Done():
	case <-ctx.Done():
		_ = s.worker.Shutdown(ctx)
	}
	if err := s.reporter.Stop(ctx); err != nil {
		s.logger.Warn(ctx, "report pipeline did not stop cleanly", logger.Error(err))
	}
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "session stopped")
}

func (s *Service) running() (*round.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.pipeline, nil
}

// Process runs one event synchronously. The host bridge uses this path.
func (s *Service) Process(ctx context.Context, ev model.Event) (round.Outcome, error) {
	p, err := s.running()
	if err != nil {
		return round.Outcome{}, err
	}
	out := p.Process(ctx, ev)
	s.processed.Add(1)
	return out, nil
}

// Enqueue schedules an event for the session worker.
func (s *Service) Enqueue(ctx context.Context, ev model.Event) error {
	if !ev.Tag.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownTag, ev.Tag)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	if !s.events.Enqueue(ctx, ev) {
		if s.events.IsClosed() {
			return eventqueue.ErrClosed
		}
		return ErrQueueFull
	}
	s.logger.Debug(ctx, "event queued", logger.String("eventID", ev.ID), logger.String("tag", string(ev.Tag)))
	return nil
}

// RoundStarted records that the host started a round at t.
func (s *Service) RoundStarted(ctx context.Context, t time.Time) {
	if t.IsZero() {
		t = s.now()
	}
	s.state.SetLastRoundStart(t.Unix())
	s.logger.Debug(ctx, "round started", logger.Int64("at", t.Unix()))
}

// Stats returns the session totals and the last round.
func (s *Service) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Stats{
		Started:        s.started,
		LastRoundStart: s.state.LastRoundStart(),
		Processed:      s.processed.Load(),
		Totals:         []ItemTotal{},
	}
	if !s.started {
		return out
	}

	out.QueueLength = s.events.Len(ctx)
	out.QueueCapacity = s.events.Cap()
	out.ReportPending = s.reporter.Pending()
	for _, e := range s.store.Ranked(ctx) {
		name := e.ItemID
		if s.names != nil {
			if n := s.names.ItemName(e.ItemID); n != "" {
				name = n
			}
		}
		out.Totals = append(out.Totals, ItemTotal{ItemID: e.ItemID, ItemName: name, Quantity: e.Quantity})
	}
	if latest, ok := s.aggregator.Latest(); ok {
		out.Latest = &latest
	}
	return out
}

// Notifications returns up to limit recent notifications, newest first.
func (s *Service) Notifications(limit int) []model.Notification {
	return s.history.Recent(limit)
}

// Overrides returns the pending host overrides when the session records
// them itself.
func (s *Service) Overrides() (map[string]hostctl.Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.control.(*hostctl.Recorder)
	if !ok {
		return nil, false
	}
	return rec.Overrides(), true
}

// Halted reports whether the recorded overrides stop the host loop.
func (s *Service) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.control.(*hostctl.Recorder)
	return ok && rec.Halted()
}

// recoverable reports whether err only skipped the rest of one round after
// observers were notified.
func recoverable(err error) bool {
	for _, skip := range []error{
		drops.ErrRecognitionFailed,
		report.ErrUnknownStage,
		report.ErrNotMaxStars,
		report.ErrUnknownDrop,
		report.ErrUploadPending,
		context.Canceled,
	} {
		if errors.Is(err, skip) {
			return true
		}
	}
	return false
}

// Started reports whether the session is running.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
