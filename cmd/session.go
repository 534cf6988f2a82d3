package main

import (
	"context"
	"fmt"

	"github.com/okian/stagedrops/internal/adapters/catalog"
	"github.com/okian/stagedrops/internal/adapters/upload"
	"github.com/okian/stagedrops/internal/adapters/vision"
	service "github.com/okian/stagedrops/internal/app"
	"github.com/okian/stagedrops/internal/config"
	"github.com/okian/stagedrops/internal/domain/report"
	"github.com/okian/stagedrops/internal/domain/timing"
	"github.com/okian/stagedrops/pkg/logger"
)

// sessionOptions maps the configuration onto session options shared by
// every host mode.
func sessionOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]service.Option, error) {
	if cfg.Analyzer.URL == "" {
		return nil, fmt.Errorf("%w: analyzer.url is required", config.ErrInvalidConfig)
	}

	names, err := catalog.Load(cfg.Catalog.ItemsPath, cfg.Catalog.StagesPath)
	if err != nil {
		return nil, err
	}
	items, stages := names.Size()
	log.Info(ctx, "catalog loaded", logger.Int("items", items), logger.Int("stages", stages))

	opts := []service.Option{
		service.WithLogger(log.Named("session")),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithHistorySize(cfg.HistorySize),
		service.WithStopTargets(cfg.StopTargets),
		service.WithTimings(timing.Table{Pre: cfg.PreDelays, Post: cfg.PostDelays}),
		service.WithAnalyzer(vision.NewAnalyzerClient(cfg.Analyzer.URL,
			vision.WithResolution(cfg.Analyzer.Width, cfg.Analyzer.Height),
			vision.WithAnalyzerTimeout(config.Millis(cfg.Analyzer.TimeoutMS)),
		)),
		service.WithItemNames(names),
		service.WithStageCatalog(names),
	}

	if cfg.Report.Enabled {
		opts = append(opts,
			service.WithUploader(upload.New(
				upload.WithURL(cfg.Report.URL),
				upload.WithTimeout(config.Millis(cfg.Report.TimeoutMS)),
				upload.WithLogger(log.Named("upload")),
			)),
			service.WithReportOptions(
				report.WithEnabled(true),
				report.WithServer(cfg.Report.Server),
				report.WithCredential(cfg.Report.PenguinID),
				report.WithRetries(cfg.Report.Retries),
				report.WithSource(cfg.Report.Source),
				report.WithVersion(Version),
			),
		)
	}
	return opts, nil
}
