// Package sqlite reads speed-test records and the provider directory from
// the upstream crawler's SQLite database. It never writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/internal/domain/model"
)

// Source is a read-only view over sr_merchant and sr_speed_test_record.
type Source struct {
	db *sql.DB
}

// Snapshot is everything one scoring run needs from the database.
type Snapshot struct {
	Directory []model.Provider
	Records   []model.MeasurementRecord
}

// busyTimeoutMS bounds how long a read waits on the crawler's write lock.
const busyTimeoutMS = 5000

// dsn builds a read-only DSN. Pragmas go through the DSN so every pooled
// connection gets them, not only the first one.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)&_pragma=query_only(1)", path, busyTimeoutMS)
}

// Open opens the database at path read-only.
func Open(path string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, eris.New("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &Source{db: db}, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *Source {
	return &Source{db: db}
}

// Close closes the underlying handle.
func (s *Source) Close() error {
	return s.db.Close()
}

// Providers returns the provider directory ordered by id.
func (s *Source) Providers(ctx context.Context) ([]model.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, COALESCE(name, '') FROM sr_merchant ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list merchants")
	}
	defer rows.Close()

	var out []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan merchant")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list merchants iterate")
}

// Records returns speed-test records tested at or after since, plus the
// records that carry no test time. A zero since returns every record.
func (s *Source) Records(ctx context.Context, since time.Time) ([]model.MeasurementRecord, error) {
	query := `SELECT merchant_id, merchant_name, node_name, average_speed, max_speed,
		tls_rtt, https_delay, CAST(test_time AS TEXT), COALESCE(host_info, '')
		FROM sr_speed_test_record`
	var args []any
	if !since.IsZero() {
		query += ` WHERE test_time IS NULL OR test_time = '' OR test_time >= ?`
		args = append(args, since.In(ingest.TestTimeZone).Format(ingest.TestTimeLayout))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list speed test records")
	}
	defer rows.Close()

	var out []model.MeasurementRecord
	for rows.Next() {
		var (
			rec        model.MeasurementRecord
			avg, peak  sql.NullFloat64
			rtt, delay sql.NullFloat64
			testTime   any
		)
		if err := rows.Scan(&rec.ProviderID, &rec.ProviderName, &rec.NodeName,
			&avg, &peak, &rtt, &delay, &testTime, &rec.HostInfo); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan speed test record")
		}
		rec.NodeName = strings.TrimSpace(rec.NodeName)
		rec.NodeID = ingest.NodeID(rec.ProviderID, rec.NodeName)
		rec.AverageSpeed = metric(avg)
		rec.MaxSpeed = metric(peak)
		rec.TLSRTT = metric(rtt)
		rec.HTTPSDelay = metric(delay)
		if rec.ObservedAt, err = observedAt(testTime); err != nil {
			return nil, eris.Wrapf(err, "sqlite: record of node %s", rec.NodeID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list speed test records iterate")
}

// Load reads the directory and the records concurrently.
func (s *Source) Load(ctx context.Context, since time.Time) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Directory, err = s.Providers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Records, err = s.Records(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func metric(v sql.NullFloat64) model.Metric {
	if !v.Valid {
		return model.None()
	}
	return model.Some(v.Float64)
}

// driverTimeLayout is how the driver stores a time.Time argument.
const driverTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// observedAt accepts the shapes test_time comes back in: NULL, text in the
// screenshot layout, or text the driver wrote for a time.Time.
func observedAt(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, eris.Errorf("unexpected test_time type %T", v)
	}
	if t, err := time.Parse(driverTimeLayout, strings.TrimSpace(s)); err == nil {
		return t, nil
	}
	return ingest.ParseTestTime(s)
}
