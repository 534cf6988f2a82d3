package simulate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/stagedrops/internal/app"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/pkg/logger"
)

// Report summarizes a simulation.
type Report struct {
	EventsSent     int
	EventsRefused  int
	Processed      int64
	DropsUpdated   int
	RecognitionErr int
	StageInvalid   int
	Halted         bool
	Totals         []service.ItemTotal
	Duration       time.Duration
}

// Run plays the configured rounds against the session at cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (Report, error) {
	cfg.applyDefaults()
	log := logger.Get().Named("simulate")
	c := newClient(cfg.BaseURL, cfg.Timeout)
	started := time.Now()

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("annihilations", cfg.Annihilations),
		logger.Bool("duplicates", cfg.Duplicates),
	)

	if err := checkHealth(ctx, c); err != nil {
		return Report{}, fmt.Errorf("session health check failed: %w", err)
	}

	var st service.Stats
	if _, err := c.get(ctx, "/stats", &st); err != nil {
		return Report{}, err
	}
	processed := st.Processed

	var rep Report
	clock := time.Now().Add(-time.Duration(cfg.Rounds) * cfg.RoundLength)
	for i := 0; i < cfg.Rounds; i++ {
		clock = clock.Add(cfg.RoundLength)
		if err := startRound(ctx, c, clock); err != nil {
			return rep, err
		}

		tags := []model.Tag{model.TagNormalEnd}
		if cfg.Duplicates {
			tags = append(tags, model.TagNormalEnd)
		}
		for _, tag := range tags {
			accepted, err := sendEvent(ctx, c, tag)
			if err != nil {
				return rep, err
			}
			if !accepted {
				rep.EventsRefused++
				continue
			}
			rep.EventsSent++
			processed++
			// Each event must land before the next one so the gate sees them in order.
			if err := waitProcessed(ctx, c, cfg, processed); err != nil {
				return rep, fmt.Errorf("round %d: %w", i+1, err)
			}
		}
	}

	for i := 0; i < cfg.Annihilations; i++ {
		accepted, err := sendEvent(ctx, c, model.TagAnnihilationEnd)
		if err != nil {
			return rep, err
		}
		if !accepted {
			rep.EventsRefused++
			continue
		}
		rep.EventsSent++
		processed++
		if err := waitProcessed(ctx, c, cfg, processed); err != nil {
			return rep, fmt.Errorf("annihilation %d: %w", i+1, err)
		}
	}

	if err := collect(ctx, c, &rep); err != nil {
		return rep, err
	}
	rep.Duration = time.Since(started)

	log.Info(ctx, "simulation completed",
		logger.Int("eventsSent", rep.EventsSent),
		logger.Int("eventsRefused", rep.EventsRefused),
		logger.Int("dropsUpdated", rep.DropsUpdated),
		logger.Int("recognitionErrors", rep.RecognitionErr),
		logger.Bool("halted", rep.Halted),
		logger.Duration("took", rep.Duration),
	)
	return rep, nil
}

func checkHealth(ctx context.Context, c *client) error {
	code, err := c.get(ctx, "/healthz", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", code)
	}
	return nil
}

func startRound(ctx context.Context, c *client, at time.Time) error {
	code, err := c.post(ctx, "/rounds/start", map[string]int64{"started_at": at.Unix()}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("round start refused with status: %d", code)
	}
	return nil
}

// sendEvent posts one event. It reports false when the session pushed back.
func sendEvent(ctx context.Context, c *client, tag model.Tag) (bool, error) {
	code, err := c.post(ctx, "/events", map[string]string{"tag": string(tag)}, nil)
	if err != nil {
		return false, err
	}
	switch code {
	case http.StatusAccepted:
		return true, nil
	case http.StatusTooManyRequests:
		return false, nil
	default:
		return false, fmt.Errorf("event refused with status: %d", code)
	}
}

func waitProcessed(ctx context.Context, c *client, cfg Config, want int64) error {
	deadline := time.Now().Add(cfg.RoundTimeout)
	for {
		var st service.Stats
		if _, err := c.get(ctx, "/stats", &st); err != nil {
			return err
		}
		if st.Processed >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: processed %d of %d", ErrRoundTimeout, st.Processed, want)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

type controlResponse struct {
	Halted bool `json:"halted"`
}

// collect fills the report from the session read endpoints.
func collect(ctx context.Context, c *client, rep *Report) error {
	var st service.Stats
	if _, err := c.get(ctx, "/stats", &st); err != nil {
		return err
	}
	rep.Processed = st.Processed
	rep.Totals = st.Totals

	var ns notificationsResponse
	if _, err := c.get(ctx, "/notifications?limit=256", &ns); err != nil {
		return err
	}
	for _, n := range ns.Notifications {
		switch n.Kind {
		case model.KindDropsUpdated:
			rep.DropsUpdated++
		case model.KindRecognitionError:
			rep.RecognitionErr++
		case model.KindStageInvalid:
			rep.StageInvalid++
		}
	}

	var ctrl controlResponse
	code, err := c.get(ctx, "/control", &ctrl)
	if err != nil {
		return err
	}
	rep.Halted = code == http.StatusOK && ctrl.Halted
	return nil
}
