package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOpen_PragmasOnEveryConnection(t *testing.T) {
	Convey("Given a source opened over an existing database", t, func() {
		path := filepath.Join(t.TempDir(), "pragma.db")
		raw, err := sql.Open("sqlite", path)
		So(err, ShouldBeNil)
		_, err = raw.Exec(`CREATE TABLE sr_merchant (id INTEGER PRIMARY KEY, name TEXT)`)
		So(err, ShouldBeNil)
		So(raw.Close(), ShouldBeNil)

		src, err := Open(path)
		So(err, ShouldBeNil)
		defer src.Close()
		ctx := context.Background()

		Convey("When two connections are held at once", func() {
			first, err := src.db.Conn(ctx)
			So(err, ShouldBeNil)
			defer first.Close()
			second, err := src.db.Conn(ctx)
			So(err, ShouldBeNil)
			defer second.Close()

			Convey("Then both carry the busy timeout and are read-only", func() {
				for _, conn := range []*sql.Conn{first, second} {
					var timeout, queryOnly int
					So(conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout), ShouldBeNil)
					So(conn.QueryRowContext(ctx, "PRAGMA query_only").Scan(&queryOnly), ShouldBeNil)
					So(timeout, ShouldEqual, busyTimeoutMS)
					So(queryOnly, ShouldEqual, 1)

					_, err := conn.ExecContext(ctx, `INSERT INTO sr_merchant (name) VALUES ('x')`)
					So(err, ShouldNotBeNil)
				}
			})
		})
	})
}
