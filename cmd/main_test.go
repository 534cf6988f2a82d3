package main

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	service "github.com/okian/stagedrops/internal/app"
	"github.com/okian/stagedrops/internal/config"
	"github.com/okian/stagedrops/internal/domain/drops"
	"github.com/okian/stagedrops/internal/domain/timing"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type blankFrames struct{}

func (blankFrames) CaptureFrame(context.Context) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 2, 2)), nil
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, image.Image) (drops.Result, error) {
	return drops.Result{}, nil
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it should carry serve, agent and simulate", func() {
			names := []string{}
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "agent")
			convey.So(names, convey.ShouldContain, "simulate")
		})

		convey.Convey("When agent runs without an identifier", func() {
			root.SetArgs([]string{"agent"})
			root.SetOut(&strings.Builder{})
			root.SetErr(&strings.Builder{})
			err := root.Execute()

			convey.Convey("Then it should fail on arguments", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "accepts 1 arg")
			})
		})

		convey.Convey("When serve runs without a capture endpoint", func() {
			_ = os.Setenv("STAGEDROPS_ANALYZER__URL", "http://127.0.0.1:1/analyze")
			defer func() { _ = os.Unsetenv("STAGEDROPS_ANALYZER__URL") }()
			root.SetArgs([]string{"serve"})
			root.SetOut(&strings.Builder{})
			root.SetErr(&strings.Builder{})
			err := root.Execute()

			convey.Convey("Then it should refuse the config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestSessionOptions(t *testing.T) {
	convey.Convey("Given a loaded config", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When no analyzer is configured", func() {
			_, err := sessionOptions(ctx, cfg, logger.Get())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the catalog file is missing", func() {
			cfg.Analyzer.URL = "http://127.0.0.1:1/analyze"
			cfg.Catalog.ItemsPath = filepath.Join(t.TempDir(), "missing.json")
			_, err := sessionOptions(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When reporting is enabled", func() {
			cfg.Analyzer.URL = "http://127.0.0.1:1/analyze"
			cfg.Report.Enabled = true
			opts, err := sessionOptions(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the session should start with an uploader", func() {
				svc := service.New(append(opts, service.WithFrameSource(blankFrames{}))...)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				defer svc.Stop()
				convey.So(svc.Started(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given the HTTP server of a running session", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithFrameSource(blankFrames{}),
			service.WithAnalyzer(failingAnalyzer{}),
			service.WithTimings(timing.Table{}),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := newHTTPServer(ctx, ":0", svc)
		ts := httptest.NewServer(srv.Handler)
		defer ts.Close()

		convey.Convey("Then every route should be mounted", func() {
			for _, path := range []string{"/healthz", "/stats", "/notifications", "/control", "/metrics", "/openapi.yaml", "/api-docs"} {
				resp, err := http.Get(ts.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("And events should reach the session", func() {
			resp, err := http.Post(ts.URL+"/events", "application/json", strings.NewReader(`{"tag":"normal-end"}`))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
		})
	})
}
