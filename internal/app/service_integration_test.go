package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/airscore/internal/app"
	"github.com/okian/airscore/internal/adapters/sqlite"
	"github.com/okian/airscore/internal/domain/ingest"
	. "github.com/smartystreets/goconvey/convey"
	_ "modernc.org/sqlite"
)

const upstreamSchema = `
CREATE TABLE sr_merchant (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	UNIQUE(name)
);
CREATE TABLE sr_speed_test_record (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pic_id INTEGER,
	merchant_id INTEGER NOT NULL,
	merchant_name TEXT NOT NULL,
	node_id INTEGER NOT NULL,
	node_name TEXT NOT NULL,
	average_speed REAL NOT NULL,
	max_speed REAL NOT NULL,
	tls_rtt REAL,
	https_delay REAL,
	test_time DATETIME,
	host_info TEXT
);
INSERT INTO sr_merchant (id, name) VALUES (1, '龙猫云'), (2, '一云梯'), (7, 'JulangCloud巨浪云');
INSERT INTO sr_speed_test_record
	(pic_id, merchant_id, merchant_name, node_id, node_name, average_speed, max_speed, tls_rtt, https_delay, test_time)
VALUES
	(1, 7, 'JulangCloud巨浪云', 5, '台湾 - 01', 39.69, 77.75, 61, 493, '2024-10-09 21:07:14'),
	(1, 7, 'JulangCloud巨浪云', 5, '台湾 - 01', 7.02, 9.01, 184, NULL, '2024-10-09 21:07:14'),
	(2, 1, '龙猫云', 6, '香港 01', 12.5, 30, 80, 300, '2024-08-01 08:00:00'),
	(3, 2, '一云梯', 3, '美国 01', 3.2, 6.1, 150, 900, NULL);
`

func upstream(t *testing.T) *sqlite.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speedtest.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(upstreamSchema); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	src, err := sqlite.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by the upstream database", t, func() {
		svc := newService(service.WithSource(upstream(t)))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			Convey("Then the first run ranks the database records", func() {
				rankings, err := svc.Ranking(ctx, 0)
				So(err, ShouldBeNil)
				So(len(rankings), ShouldEqual, 3)

				So(rankings[0].ProviderID, ShouldEqual, 7)
				So(rankings[0].NodeCount, ShouldEqual, 1)
				So(rankings[0].Nodes[0].Samples, ShouldEqual, 2)
				So(rankings[0].P75, ShouldAlmostEqual, 1.0)

				// 龙猫云's only record is outside the window: zero filled.
				So(rankings[1].ProviderID, ShouldEqual, 1)
				So(rankings[1].NodeCount, ShouldEqual, 0)
				So(rankings[2].ProviderID, ShouldEqual, 2)
				So(rankings[2].NodeCount, ShouldEqual, 1)
			})

			Convey("Then ingested batches are scored alongside the database", func() {
				b := ingest.Batch{
					PicMD5: "9f2c", ProviderID: 2, ProviderName: "renamed", TestTime: "2024-10-09 22:00:00",
					Rows: []ingest.RawRow{row("fast", "100MB", "200MB", "10ms", "50ms")},
				}
				So(svc.SeenAndRecord(ctx, b.Key()), ShouldBeFalse)
				So(svc.Enqueue(ctx, b), ShouldBeNil)
				So(waitForRecords(svc, 4), ShouldBeTrue)

				summary, err := svc.Rescore(ctx)
				So(err, ShouldBeNil)
				So(summary.ValidRecords, ShouldEqual, 4)

				r, rank, err := svc.Provider(ctx, 2)
				So(err, ShouldBeNil)
				So(rank, ShouldEqual, 1)
				So(r.ProviderName, ShouldEqual, "一云梯")
				So(r.NodeCount, ShouldEqual, 2)
				So(r.Nodes[0].NodeID, ShouldEqual, "2:fast")
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newService(service.WithWorkerCount(4), service.WithQueueSize(1_000))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When goroutines ingest, rescore and read concurrently", func() {
			const producers, perProducer = 8, 25
			var wg sync.WaitGroup
			var failures atomic.Int64

			for p := range producers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range perProducer {
						b := fastBatch(fmt.Sprintf("p%d-%d", p, i))
						b.ProviderID = int64(p + 1)
						b.Rows[0]["节点名称"] = fmt.Sprintf("node-%d", i)
						if svc.SeenAndRecord(ctx, b.Key()) {
							failures.Add(1)
							continue
						}
						if err := svc.Enqueue(ctx, b); err != nil {
							failures.Add(1)
						}
					}
				}()
			}
			for range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 10 {
						if _, err := svc.Rescore(ctx); err != nil {
							failures.Add(1)
						}
						if _, err := svc.Ranking(ctx, 5); err != nil {
							failures.Add(1)
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then every batch lands and the final ranking covers every provider", func() {
				So(failures.Load(), ShouldEqual, 0)
				So(waitForRecords(svc, producers*perProducer), ShouldBeTrue)

				summary, err := svc.Rescore(ctx)
				So(err, ShouldBeNil)
				So(summary.Providers, ShouldEqual, producers)
				So(summary.Nodes, ShouldEqual, producers*perProducer)
			})
		})
	})
}
