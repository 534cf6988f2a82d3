// Package report submits recognized rounds to the drop statistics service.
//
// Uploads run on a single background worker. At most one upload is pending at
// a time; a round that finds the slot taken is skipped, not queued.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/okian/stagedrops/internal/adapters/mq/queue"
	"github.com/okian/stagedrops/internal/adapters/mq/worker"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// Subtask names the reporting step in notifications.
const Subtask = "ReportToPenguinStats"

// Service is the upload target name.
const Service = "penguin-stats"

const (
	defaultRetries = 5
	defaultSource  = "stagedrops"
	defaultVersion = "dev"
)

// UploadRequest is one submission handed to the transport.
type UploadRequest struct {
	Service    string
	Body       []byte
	Credential string
	Retries    int
}

// Receipt is what the service answered.
type Receipt struct {
	// Identity is set when the service assigned a new client identity.
	Identity string
}

// Uploader delivers a report. Retries are the uploader's business.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (Receipt, error)
}

type job struct {
	stageID string
	body    []byte
}

// Pipeline validates rounds and hands them to the upload worker.
type Pipeline struct {
	enabled  bool
	server   string
	source   string
	version  string
	retries  int
	uploader Uploader
	sink     notify.Sink
	logger   logger.Logger

	credMu     sync.RWMutex
	credential string

	pending atomic.Bool
	queue   *queue.InMemoryQueue[job]
	worker  *worker.InMemoryWorker[job]
	started atomic.Bool
}

// NewPipeline creates a pipeline over uploader. Reporting is disabled until
// WithEnabled(true) is passed.
func NewPipeline(uploader Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   defaultSource,
		version:  defaultVersion,
		retries:  defaultRetries,
		uploader: uploader,
		sink:     notify.Fanout{},
		logger:   logger.Get().Named("report"),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.queue = queue.NewInMemoryQueue[job](queue.WithCapacity(1), queue.WithMetrics(false))
	p.worker = worker.NewInMemoryWorker[job](p.queue, worker.HandlerFunc[job](p.upload),
		worker.WithName("report-upload"), worker.WithLogger(p.logger))

	return p
}

// Start runs the upload worker until ctx is done or Stop is called.
func (p *Pipeline) Start(ctx context.Context) {
	if p.started.Swap(true) {
		return
	}
	go p.worker.Run(ctx)
}

// Stop closes the upload queue and waits for the pending upload.
func (p *Pipeline) Stop(ctx context.Context) error {
	_ = p.queue.Close()
	if !p.started.Load() {
		return nil
	}
	select {
	case <-p.worker.Done():
		return nil
	case <-ctx.Done():
		return p.worker.Shutdown(ctx)
	}
}

// Enabled reports whether rounds are submitted.
func (p *Pipeline) Enabled() bool {
	return p.enabled
}

// Pending reports whether an upload is in flight.
func (p *Pipeline) Pending() bool {
	return p.pending.Load()
}

// Credential returns the identity used for the next upload.
func (p *Pipeline) Credential() string {
	p.credMu.RLock()
	defer p.credMu.RUnlock()
	return p.credential
}

// Submit checks the round and schedules its upload. It returns nil when the
// round is not meant to be reported, and a sentinel error when it was
// skipped for a reason observers were told about.
func (p *Pipeline) Submit(ctx context.Context, round model.Round, info model.RoundInfo) error {
	if !p.enabled || round.Annihilation {
		return nil
	}
	if !Servers[p.server] {
		p.logger.Debug(ctx, "server not reported", logger.String("server", p.server))
		return nil
	}

	if info.Stage.StageID == "" {
		p.fail(ctx, "unknown_stage", model.NewNotification(model.KindReportError, Subtask, "unknown stage").
			With("stage_code", info.Stage.StageCode))
		return ErrUnknownStage
	}
	if info.Stars != model.MaxStars {
		p.fail(ctx, "not_max_stars", model.NewNotification(model.KindReportError, Subtask, "non-maximum clear").
			With("stars", fmt.Sprint(info.Stars)))
		return ErrNotMaxStars
	}

	payload, err := BuildPayload(p.server, p.source, p.version, info)
	if err != nil {
		p.fail(ctx, "unknown_drop", model.NewNotification(model.KindReportError, Subtask, "unknown drop present").
			With("stage_id", info.Stage.StageID))
		return err
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if !p.started.Load() {
		return ErrNotStarted
	}
	if !p.pending.CompareAndSwap(false, true) {
		p.fail(ctx, "pending", model.NewNotification(model.KindReportError, Subtask, "upload pending").
			With("stage_id", info.Stage.StageID))
		return ErrUploadPending
	}
	if !p.queue.Enqueue(ctx, job{stageID: payload.StageID, body: body}) {
		p.pending.Store(false)
		p.fail(ctx, "pending", model.NewNotification(model.KindReportError, Subtask, "upload pending").
			With("stage_id", info.Stage.StageID))
		return ErrUploadPending
	}

	p.logger.Info(ctx, "report scheduled",
		logger.String("stageId", payload.StageID),
		logger.Int("drops", len(payload.Drops)),
	)
	return nil
}

func (p *Pipeline) upload(ctx context.Context, j job) error {
	defer p.pending.Store(false)

	started := time.Now()
	receipt, err := p.uploader.Upload(ctx, UploadRequest{
		Service:    Service,
		Body:       j.body,
		Credential: p.Credential(),
		Retries:    p.retries,
	})
	metrics.RecordUploadLatency(float64(time.Since(started).Milliseconds()))

	if err != nil {
		n := model.NewNotification(model.KindReportError, Subtask, "upload failed").
			With("stage_id", j.stageID).
			With("error", err.Error())
		p.fail(ctx, "failed", n)
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if receipt.Identity != "" {
		p.credMu.Lock()
		p.credential = receipt.Identity
		p.credMu.Unlock()
		p.logger.Info(ctx, "learned reporting identity", logger.String("identity", receipt.Identity))
	}

	metrics.RecordReport("success")
	p.sink.Notify(ctx, model.NewNotification(model.KindReportSuccess, Subtask, "").
		With("stage_id", j.stageID).
		With("identity", p.Credential()))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, outcome string, n model.Notification) {
	metrics.RecordReport(outcome)
	p.sink.Notify(ctx, n)
}
