package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	_ "modernc.org/sqlite"

	"github.com/okian/airscore/internal/adapters/sqlite"
)

const fixtureSchema = `
CREATE TABLE sr_merchant (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	gmt_create TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	gmt_modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	name TEXT,
	website_url TEXT,
	article_url TEXT,
	article_title TEXT,
	UNIQUE(name)
);
CREATE TABLE sr_speed_test_record (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	gmt_create TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	gmt_modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
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
	(pic_id, merchant_id, merchant_name, node_id, node_name, average_speed, max_speed, tls_rtt, https_delay, test_time, host_info)
VALUES
	(1, 7, 'JulangCloud巨浪云', 5, '台湾 - 01', 39.69, 77.75, 61, 493, '2024-10-09 21:07:14', 'hk-probe'),
	(1, 7, 'JulangCloud巨浪云', 5, '台湾 - 01', 7.02, 9.01, 184, NULL, '2024-10-09 21:07:14', NULL),
	(2, 1, '龙猫云', 6, ' 香港 01 ', 12.5, 30, 80, 300, '2024-08-01 08:00:00', NULL),
	(3, 2, '一云梯', 3, '美国 01', 3.2, 6.1, 150, 900, NULL, NULL);
`

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speedtest.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSource(t *testing.T) {
	Convey("Given an upstream database", t, func() {
		ctx := context.Background()
		src, err := sqlite.Open(fixture(t))
		So(err, ShouldBeNil)
		Reset(func() { _ = src.Close() })

		Convey("When listing providers", func() {
			providers, err := src.Providers(ctx)

			Convey("Then the directory is ordered by id", func() {
				So(err, ShouldBeNil)
				So(len(providers), ShouldEqual, 3)
				So(providers[0].ID, ShouldEqual, 1)
				So(providers[2].Name, ShouldEqual, "JulangCloud巨浪云")
			})
		})

		Convey("When listing all records", func() {
			records, err := src.Records(ctx, time.Time{})

			Convey("Then every row is mapped into a measurement record", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 4)

				first := records[0]
				So(first.ProviderID, ShouldEqual, 7)
				So(first.NodeID, ShouldEqual, "7:台湾 - 01")
				So(first.AverageSpeed.Or(-1), ShouldEqual, 39.69)
				So(first.HostInfo, ShouldEqual, "hk-probe")
				So(first.ObservedAt.Equal(time.Date(2024, 10, 9, 13, 7, 14, 0, time.UTC)), ShouldBeTrue)

				So(records[1].HTTPSDelay.Valid(), ShouldBeFalse)
				So(records[2].NodeID, ShouldEqual, "1:香港 01")
				So(records[3].ObservedAt.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When listing records since a cutoff", func() {
			since := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
			records, err := src.Records(ctx, since)

			Convey("Then older records are skipped and undated ones kept", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 3)
				for _, r := range records {
					So(r.ProviderID, ShouldNotEqual, 1)
				}
			})
		})

		Convey("When loading a snapshot", func() {
			snap, err := src.Load(ctx, time.Time{})

			Convey("Then directory and records are both filled", func() {
				So(err, ShouldBeNil)
				So(len(snap.Directory), ShouldEqual, 3)
				So(len(snap.Records), ShouldEqual, 4)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := src.Load(cctx, time.Time{})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a path without the upstream tables", t, func() {
		src, err := sqlite.Open(filepath.Join(t.TempDir(), "empty.db"))

		Convey("Then reading fails", func() {
			if err == nil {
				_, err = src.Providers(context.Background())
				_ = src.Close()
			}
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an empty path", t, func() {
		_, err := sqlite.Open("  ")
		So(err, ShouldNotBeNil)
	})
}
