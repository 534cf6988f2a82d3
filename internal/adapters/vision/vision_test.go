package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	Convey("Given a 640x360 frame", t, func() {
		src := testFrame(640, 360)

		Convey("When normalized to 320x180", func() {
			dst := Normalize(src, 320, 180)

			Convey("Then it should have the target size", func() {
				So(dst.Bounds().Dx(), ShouldEqual, 320)
				So(dst.Bounds().Dy(), ShouldEqual, 180)
			})
		})

		Convey("When the size already matches or is unset", func() {
			So(Normalize(src, 640, 360) == image.Image(src), ShouldBeTrue)
			So(Normalize(src, 0, 0) == image.Image(src), ShouldBeTrue)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Given a PNG frame", t, func() {
		img, format, err := Decode(bytes.NewReader(encodePNG(testFrame(8, 4))))

		Convey("Then it should decode", func() {
			So(err, ShouldBeNil)
			So(format, ShouldEqual, "png")
			So(img.Bounds().Dx(), ShouldEqual, 8)
		})
	})

	Convey("Given garbage", t, func() {
		_, _, err := Decode(bytes.NewReader([]byte("not an image")))

		Convey("Then decoding should fail", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFrameClient(t *testing.T) {
	Convey("Given a capture backend", t, func() {
		var status atomic.Int32
		status.Store(http.StatusOK)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if s := int(status.Load()); s != http.StatusOK {
				w.WriteHeader(s)
				return
			}
			_, _ = w.Write(encodePNG(testFrame(16, 9)))
		}))
		Reset(srv.Close)
		c := NewFrameClient(srv.URL, 0)

		Convey("When a frame is captured", func() {
			img, err := c.CaptureFrame(context.Background())

			Convey("Then it should be decoded", func() {
				So(err, ShouldBeNil)
				So(img.Bounds().Dx(), ShouldEqual, 16)
			})
		})

		Convey("When the backend fails", func() {
			status.Store(http.StatusBadGateway)
			_, err := c.CaptureFrame(context.Background())

			Convey("Then an error should be returned", func() {
				So(errors.Is(err, ErrStatus), ShouldBeTrue)
			})
		})
	})
}

func TestAnalyzerClient(t *testing.T) {
	Convey("Given an analyzer service", t, func() {
		var answer atomic.Value
		answer.Store(`{"success":true,"stage":{"stageCode":"1-7","difficulty":"TOUGH"},"stars":3,
			"drops":[{"itemId":"30012","itemName":"Orirock Cube","quantity":2,"dropType":"NORMAL_DROP"},
			{"itemId":"","quantity":1,"dropType":""}]}`)
		var width atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if img, err := png.Decode(bytes.NewReader(body)); err == nil {
				width.Store(int32(img.Bounds().Dx()))
			}
			_, _ = w.Write([]byte(answer.Load().(string)))
		}))
		Reset(srv.Close)
		a := NewAnalyzerClient(srv.URL, WithResolution(64, 36))

		Convey("When a frame is analyzed", func() {
			res, err := a.Analyze(context.Background(), testFrame(128, 72))

			Convey("Then the frame should be scaled and the analysis mapped", func() {
				So(err, ShouldBeNil)
				So(width.Load(), ShouldEqual, 64)
				So(res.OK, ShouldBeTrue)
				So(res.Analysis.Stage, ShouldResemble, model.StageIdentity{Code: "1-7", Difficulty: model.DifficultyTough})
				So(res.Analysis.Stars, ShouldEqual, 3)
				So(res.Analysis.Drops, ShouldHaveLength, 2)
				So(res.Analysis.Drops[0].DropType, ShouldEqual, model.DropNormal)
				So(res.Analysis.Drops[1].DropType, ShouldEqual, model.DropUnknown)
			})
		})

		Convey("When the analyzer cannot read the frame", func() {
			answer.Store(`{"success":false}`)
			res, err := a.Analyze(context.Background(), testFrame(64, 36))

			Convey("Then the result should not be ok", func() {
				So(err, ShouldBeNil)
				So(res.OK, ShouldBeFalse)
			})
		})

		Convey("When a drop quantity is negative", func() {
			answer.Store(`{"success":true,"stage":{"stageCode":"1-7"},"stars":3,
				"drops":[{"itemId":"30012","quantity":2},{"itemId":"30013","quantity":-1}]}`)
			res, err := a.Analyze(context.Background(), testFrame(64, 36))

			Convey("Then the whole analysis should be rejected", func() {
				So(errors.Is(err, ErrBadAnalysis), ShouldBeTrue)
				So(res.OK, ShouldBeFalse)
			})
		})

		Convey("When the answer is malformed", func() {
			answer.Store(`{"success":`)
			_, err := a.Analyze(context.Background(), testFrame(64, 36))

			Convey("Then an error should be returned", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When no frame is given", func() {
			_, err := a.Analyze(context.Background(), nil)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, ErrEmptyFrame), ShouldBeTrue)
			})
		})
	})
}
