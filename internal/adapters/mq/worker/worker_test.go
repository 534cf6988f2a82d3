package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/stagedrops/internal/adapters/mq/queue"
	"github.com/okian/stagedrops/internal/adapters/mq/worker"
	logging "github.com/okian/stagedrops/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

type collector struct {
	mu    sync.Mutex
	items []string
	fail  string
}

func (c *collector) Handle(_ context.Context, item string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	if item == c.fail {
		return errors.New("handler failed")
	}
	return nil
}

func (c *collector) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.items...)
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue[string](queue.WithCapacity(8), queue.WithMetrics(false))
		c := &collector{fail: "b"}
		w := worker.NewInMemoryWorker[string](q, c, worker.WithName("test-worker"))

		Convey("When items are queued and the queue is closed", func() {
			for _, it := range []string{"a", "b", "c"} {
				So(q.Enqueue(ctx, it), ShouldBeTrue)
			}
			So(q.Close(), ShouldBeNil)
			go w.Run(ctx)

			Convey("Then every item should be handled in order despite errors", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not finish")
				}
				So(c.seen(), ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When the worker is shut down", func() {
			go w.Run(ctx)
			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			Convey("Then it should stop and tolerate repeated shutdowns", func() {
				So(w.Shutdown(sctx), ShouldBeNil)
				So(w.Shutdown(sctx), ShouldBeNil)
			})
		})

		Convey("When the worker never ran", func() {
			sctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			Convey("Then shutdown should time out", func() {
				So(w.Shutdown(sctx), ShouldNotBeNil)
			})
		})
	})
}

func TestHandlerFunc(t *testing.T) {
	Convey("Given a handler func", t, func() {
		var got int
		h := worker.HandlerFunc[int](func(_ context.Context, n int) error {
			got = n
			return nil
		})

		Convey("Then it should forward the item", func() {
			So(h.Handle(context.Background(), 7), ShouldBeNil)
			So(got, ShouldEqual, 7)
		})
	})
}
