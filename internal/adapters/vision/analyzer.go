package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/okian/stagedrops/internal/domain/drops"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/pkg/logger"
)

// Analyzer reference resolution.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

type analyzerDrop struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
	DropType string `json:"dropType"`
}

type analyzerResponse struct {
	Success bool `json:"success"`
	Stage   struct {
		StageCode  string `json:"stageCode"`
		Difficulty string `json:"difficulty"`
	} `json:"stage"`
	Stars int            `json:"stars"`
	Drops []analyzerDrop `json:"drops"`
}

// AnalyzerClient sends settlement frames to a drop analyzer service.
type AnalyzerClient struct {
	url    string
	width  int
	height int
	http   *http.Client
	logger logger.Logger
}

// AnalyzerOption applies a configuration option to the AnalyzerClient.
type AnalyzerOption func(*AnalyzerClient)

// WithResolution sets the resolution frames are scaled to before upload.
func WithResolution(width, height int) AnalyzerOption {
	return func(a *AnalyzerClient) {
		if width > 0 && height > 0 {
			a.width = width
			a.height = height
		}
	}
}

// WithAnalyzerTimeout sets the request timeout.
func WithAnalyzerTimeout(d time.Duration) AnalyzerOption {
	return func(a *AnalyzerClient) {
		if d > 0 {
			a.http.Timeout = d
		}
	}
}

// NewAnalyzerClient creates an analyzer client for url.
func NewAnalyzerClient(url string, opts ...AnalyzerOption) *AnalyzerClient {
	a := &AnalyzerClient{
		url:    url,
		width:  DefaultWidth,
		height: DefaultHeight,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger.Get().Named("analyzer"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Analyze implements drops.Analyzer.
func (a *AnalyzerClient) Analyze(ctx context.Context, frame image.Image) (drops.Result, error) {
	if frame == nil {
		return drops.Result{}, ErrEmptyFrame
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Normalize(frame, a.width, a.height)); err != nil {
		return drops.Result{}, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, &buf)
	if err != nil {
		return drops.Result{}, fmt.Errorf("build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := a.http.Do(req)
	if err != nil {
		return drops.Result{}, fmt.Errorf("analyze: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return drops.Result{}, fmt.Errorf("%w: analyzer %d", ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return drops.Result{}, fmt.Errorf("read analyzer response: %w", err)
	}

	var out analyzerResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return drops.Result{}, fmt.Errorf("decode analyzer response: %w", err)
	}
	if !out.Success {
		a.logger.Debug(ctx, "analyzer could not read the frame")
		return drops.Result{}, nil
	}

	an, err := toAnalysis(out)
	if err != nil {
		return drops.Result{}, err
	}
	return drops.Result{OK: true, Analysis: an}, nil
}

func toAnalysis(r analyzerResponse) (model.Analysis, error) {
	an := model.Analysis{
		Stage: model.StageIdentity{Code: r.Stage.StageCode, Difficulty: model.Difficulty(r.Stage.Difficulty)},
		Stars: r.Stars,
		Drops: make([]model.DropRecord, 0, len(r.Drops)),
	}
	if an.Stage.Difficulty == "" {
		an.Stage.Difficulty = model.DifficultyNormal
	}
	for _, d := range r.Drops {
		if d.Quantity < 0 {
			return model.Analysis{}, fmt.Errorf("%w: %s quantity %d", ErrBadAnalysis, d.ItemID, d.Quantity)
		}
		dt := model.DropType(d.DropType)
		if dt == "" {
			dt = model.DropUnknown
		}
		an.Drops = append(an.Drops, model.DropRecord{
			ItemID:   d.ItemID,
			ItemName: d.ItemName,
			Quantity: d.Quantity,
			DropType: dt,
		})
	}
	return an, nil
}
