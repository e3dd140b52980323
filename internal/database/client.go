// Package database provides the SQLite measurement store client used by the
// speciation tools. Raw instrument tables are opened read-only for analysis
// and read-write for ingestion.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// TimestampLayout is the timestamp format stored in the raw tables.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrNoOverlap indicates the two raw tables share no common date range.
var ErrNoOverlap = errors.New("no overlapping date range between instrument tables")

// Client holds a connection to the SQLite measurement store.
type Client struct {
	DB     *sql.DB // Exported so ingestion can build vendor-specific statements
	logger *zap.SugaredLogger
}

// Open opens the store read-write, creating the database file if missing.
func Open(path string, logger *zap.SugaredLogger) (*Client, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging SQLite database: %w", err)
	}

	return &Client{DB: db, logger: logger}, nil
}

// OpenReadOnly opens the store for queries only.
func OpenReadOnly(path string, logger *zap.SugaredLogger) (*Client, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file not found: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database read-only: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging SQLite database: %w", err)
	}

	return &Client{DB: db, logger: logger}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.DB.Close()
}

// VerifyReadWrite round-trips a throwaway table to confirm the store is
// writable on this filesystem.
func (c *Client) VerifyReadWrite(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "_install_test" (id INTEGER PRIMARY KEY, msg TEXT)`,
		`INSERT INTO "_install_test" (msg) VALUES ('write test')`,
		`DROP TABLE "_install_test"`,
	}
	for _, stmt := range stmts {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("read/write verification failed: %w", err)
		}
	}
	return nil
}

// FetchAE33Samples returns the raw absorption rows with timestamps in
// [from, to), ordered by time. Non-numeric channel cells become NaN.
func (c *Client) FetchAE33Samples(ctx context.Context, table string, from, to time.Time) ([]AE33Sample, error) {
	query := fmt.Sprintf(`SELECT datetime, "BC1", "BC2", "BC3", "BC4", "BC5", "BC6", "BC7"
		FROM %q WHERE datetime >= ? AND datetime < ? ORDER BY datetime`, table)

	rows, err := c.DB.QueryContext(ctx, query, from.Format(TimestampLayout), to.Format(TimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var samples []AE33Sample
	for rows.Next() {
		var ts string
		var chans [7]sql.NullFloat64
		if err := rows.Scan(&ts, &chans[0], &chans[1], &chans[2], &chans[3], &chans[4], &chans[5], &chans[6]); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		t, err := time.Parse(TimestampLayout, ts)
		if err != nil {
			c.logger.Warnw("skipping row with unparseable timestamp", "table", table, "timestamp", ts)
			continue
		}
		s := AE33Sample{Time: t}
		for i, v := range chans {
			s.Abs[i] = nullToNaN(v)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// FetchTCASamples returns the raw carbon-analyzer rows with timestamps in
// [from, to), ordered by time. Non-numeric cells become NaN.
func (c *Client) FetchTCASamples(ctx context.Context, table string, from, to time.Time) ([]TCASample, error) {
	query := fmt.Sprintf(`SELECT "StartTimeLocal", "TCconc", "CO2", "EC", "OC", "AE33_BC6"
		FROM %q WHERE "StartTimeLocal" >= ? AND "StartTimeLocal" < ? ORDER BY "StartTimeLocal"`, table)

	rows, err := c.DB.QueryContext(ctx, query, from.Format(TimestampLayout), to.Format(TimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var samples []TCASample
	for rows.Next() {
		var ts string
		var tc, co2, ec, oc, bc6 sql.NullFloat64
		if err := rows.Scan(&ts, &tc, &co2, &ec, &oc, &bc6); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		t, err := time.Parse(TimestampLayout, ts)
		if err != nil {
			c.logger.Warnw("skipping row with unparseable timestamp", "table", table, "timestamp", ts)
			continue
		}
		samples = append(samples, TCASample{
			Time:   t,
			TCconc: nullToNaN(tc),
			CO2:    nullToNaN(co2),
			EC:     nullToNaN(ec),
			OC:     nullToNaN(oc),
			BC6:    nullToNaN(bc6),
		})
	}
	return samples, rows.Err()
}

// FetchTimestamps returns the ordered timestamp column of a raw table.
// A limit of 0 fetches every row.
func (c *Client) FetchTimestamps(ctx context.Context, table, column string, limit int) ([]time.Time, error) {
	query := fmt.Sprintf(`SELECT %q FROM %q WHERE %q IS NOT NULL ORDER BY %q`, column, table, column, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying timestamps from %s: %w", table, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scanning timestamp: %w", err)
		}
		t, err := time.Parse(TimestampLayout, ts)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FetchTimestampsRange returns the ordered timestamp column restricted to
// [from, to].
func (c *Client) FetchTimestampsRange(ctx context.Context, table, column string, from, to time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(`SELECT %q FROM %q WHERE %q >= ? AND %q <= ? ORDER BY %q`,
		column, table, column, column, column)

	rows, err := c.DB.QueryContext(ctx, query, from.Format(TimestampLayout), to.Format(TimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("querying timestamps from %s: %w", table, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scanning timestamp: %w", err)
		}
		t, err := time.Parse(TimestampLayout, ts)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Stats returns the time coverage of a raw table.
func (c *Client) Stats(ctx context.Context, table, column string) (TableStats, error) {
	query := fmt.Sprintf(`SELECT MIN(%q), MAX(%q), COUNT(*) FROM %q`, column, column, table)

	var minTS, maxTS sql.NullString
	var count int64
	if err := c.DB.QueryRowContext(ctx, query).Scan(&minTS, &maxTS, &count); err != nil {
		return TableStats{}, fmt.Errorf("querying stats for %s: %w", table, err)
	}

	var stats TableStats
	stats.Count = count
	if minTS.Valid {
		if t, err := time.Parse(TimestampLayout, minTS.String); err == nil {
			stats.Min = t
		}
	}
	if maxTS.Valid {
		if t, err := time.Parse(TimestampLayout, maxTS.String); err == nil {
			stats.Max = t
		}
	}
	return stats, nil
}

// OverlapRange returns the date range covered by both instruments.
func OverlapRange(a, b TableStats) (time.Time, time.Time, error) {
	start := a.Min
	if b.Min.After(start) {
		start = b.Min
	}
	end := a.Max
	if b.Max.Before(end) {
		end = b.Max
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrNoOverlap
	}
	return start, end, nil
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
