package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/stagedrops/internal/domain/report"
	"github.com/okian/stagedrops/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestClientUpload(t *testing.T) {
	Convey("Given a statistics service", t, func() {
		ctx := context.Background()
		var calls atomic.Int32
		var status atomic.Int32
		status.Store(http.StatusOK)
		var gotAuth, gotBody atomic.Value

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			gotAuth.Store(r.Header.Get(AuthorizationHeader))
			body, _ := io.ReadAll(r.Body)
			gotBody.Store(string(body))
			if s := int(status.Load()); s != http.StatusOK {
				w.WriteHeader(s)
				return
			}
			w.Header().Set(IdentityHeader, "987654")
			w.WriteHeader(http.StatusCreated)
		}))
		Reset(srv.Close)

		c := New(WithURL(srv.URL), WithBackoff(time.Millisecond, 2*time.Millisecond))
		req := report.UploadRequest{Service: report.Service, Body: []byte(`{"server":"CN"}`), Credential: "123", Retries: 5}

		Convey("When the upload succeeds", func() {
			receipt, err := c.Upload(ctx, req)

			Convey("Then the credential should be sent and the identity learned", func() {
				So(err, ShouldBeNil)
				So(receipt.Identity, ShouldEqual, "987654")
				So(gotAuth.Load(), ShouldEqual, "PenguinID 123")
				So(gotBody.Load(), ShouldEqual, `{"server":"CN"}`)
				So(calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When no credential is known", func() {
			req.Credential = ""
			_, err := c.Upload(ctx, req)

			Convey("Then no authorization header should be sent", func() {
				So(err, ShouldBeNil)
				So(gotAuth.Load(), ShouldEqual, "")
			})
		})

		Convey("When the service keeps failing", func() {
			status.Store(http.StatusServiceUnavailable)
			_, err := c.Upload(ctx, req)

			Convey("Then it should try once plus the retries", func() {
				So(errors.Is(err, ErrStatus), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 6)
			})
		})

		Convey("When the service rejects the report", func() {
			status.Store(http.StatusBadRequest)
			_, err := c.Upload(ctx, req)

			Convey("Then it should not retry", func() {
				So(errors.Is(err, ErrRejected), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})
}
