package vision

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/okian/stagedrops/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// FrameClient fetches the current screen from an HTTP capture backend.
type FrameClient struct {
	url    string
	http   *http.Client
	logger logger.Logger
}

// NewFrameClient creates a capture client for url.
func NewFrameClient(url string, timeout time.Duration) *FrameClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &FrameClient{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger.Get().Named("capture"),
	}
}

// CaptureFrame implements drops.FrameSource.
func (c *FrameClient) CaptureFrame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build capture request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: capture %d", ErrStatus, resp.StatusCode)
	}
	img, format, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, "frame captured",
		logger.String("format", format),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()),
	)
	return img, nil
}
