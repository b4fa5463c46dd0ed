package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/airscore/internal/adapters/mq/queue"
	"github.com/okian/airscore/internal/adapters/mq/worker"
	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/internal/domain/model"
	logging "github.com/okian/airscore/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockAppender struct {
	mu      sync.Mutex
	records []model.MeasurementRecord
	err     error
}

func (m *mockAppender) Append(_ context.Context, records []model.MeasurementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockAppender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func row(name, avg string) ingest.RawRow {
	return ingest.RawRow{
		"节点名称":    name,
		"平均速度":    avg,
		"最高速度":    "20MB",
		"TLS RTT": "60ms",
		"HTTPS延迟": "200ms",
	}
}

func batch(id string, rows ...ingest.RawRow) queue.Batch {
	return ingest.Batch{ID: id, ProviderID: 3, ProviderName: "Gamma", TestTime: "2024-10-09 21:07:14", Rows: rows}
}

func TestInMemoryWorker_Process(t *testing.T) {
	convey.Convey("Given a worker", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		app := &mockAppender{}
		var rejected []string
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), app,
			worker.WithName("test-worker"),
			worker.WithRejectHook(func(b worker.Batch) { rejected = append(rejected, b.Key()) }),
		)

		convey.Convey("When a batch mixes good and bad rows", func() {
			bad := row("broken", "5MB")
			delete(bad, "HTTPS延迟")
			out, err := w.Process(ctx, batch("b1", row("hk-1", "10MB"), bad, row("jp-1", "512KB")))

			convey.Convey("Then good rows are appended and bad rows reported", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.Accepted, convey.ShouldEqual, 2)
				convey.So(len(out.Dropped), convey.ShouldEqual, 1)
				convey.So(out.Dropped[0].Index, convey.ShouldEqual, 1)
				convey.So(out.Dropped[0].Field, convey.ShouldEqual, ingest.FieldHTTPSDelay)
				convey.So(app.count(), convey.ShouldEqual, 2)
				convey.So(app.records[0].NodeID, convey.ShouldEqual, "3:hk-1")
				convey.So(app.records[1].AverageSpeed.Or(-1), convey.ShouldEqual, 0.5)
				convey.So(rejected, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When every row is dropped", func() {
			_, err := w.Process(ctx, batch("b2", ingest.RawRow{"节点名称": "only-name"}))

			convey.Convey("Then the batch is rejected and the hook fires", func() {
				convey.So(errors.Is(err, worker.ErrNoRecords), convey.ShouldBeTrue)
				convey.So(app.count(), convey.ShouldEqual, 0)
				convey.So(rejected, convey.ShouldResemble, []string{"b2"})
			})
		})

		convey.Convey("When the test time cannot be read", func() {
			b := batch("b3", row("hk-1", "10MB"))
			b.TestTime = "tomorrow"
			_, err := w.Process(ctx, b)

			convey.So(errors.Is(err, ingest.ErrInvalidBatch), convey.ShouldBeTrue)
			convey.So(rejected, convey.ShouldResemble, []string{"b3"})
		})

		convey.Convey("When the appender fails", func() {
			app.err = errors.New("disk full")
			_, err := w.Process(ctx, batch("b4", row("hk-1", "10MB")))

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(rejected, convey.ShouldResemble, []string{"b4"})
		})
	})
}

func TestInMemoryWorker_Run(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		app := &mockAppender{}
		w := worker.NewInMemoryWorker(q, app)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When batches are queued and the queue is closed", func() {
			convey.So(q.Enqueue(ctx, batch("r1", row("a", "1MB"))), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, batch("r2", row("b", "2MB"), row("c", "3MB"))), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the worker drains them and stops", func() {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(app.count(), convey.ShouldBeBetweenOrEqual, 0, 3)
			})
		})

		convey.Convey("When shut down twice", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		app := &mockAppender{}

		convey.Convey("When created with a non-positive count", func() {
			p := worker.NewPool(0, q, app)
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("When many batches are processed concurrently", func() {
			p := worker.NewPool(4, q, app)
			ctx := context.Background()
			p.Start(ctx)

			for i := range 100 {
				convey.So(q.Enqueue(ctx, batch(fmt.Sprintf("c%d", i), row(fmt.Sprintf("n%d", i), "4MB"))), convey.ShouldBeNil)
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := p.Shutdown(sctx)

			convey.Convey("Then shutdown drains every batch", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(app.count(), convey.ShouldEqual, 100)
			})
		})
	})
}
