// Package ingest parses the two vendor file formats and loads them into the
// raw measurement tables. Loads are idempotent: rows already present are
// left untouched, so re-running over the same files adds nothing.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cass-aq/speciation/internal/database"
)

var ae33FieldSplit = regexp.MustCompile(`\s+|;`)

// AE33Row is one parsed measurement line of an AE33 export file. Channel
// values are float64 or nil when the cell was not numeric.
type AE33Row struct {
	Datetime string
	Date     string
	Time     string
	Channels []interface{}
}

// AE33File is a parsed AE33 export: the normalized header set (datetime,
// date, time, then the vendor channel names) and the data rows.
type AE33File struct {
	Headers []string
	Rows    []AE33Row
}

// ParseAE33File reads an AE33 whitespace-delimited export. The header line
// is the first line starting with "Date"; rows failing to parse a timestamp
// or with a short field count are skipped.
func ParseAE33File(path string) (*AE33File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var headers []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "Date") {
			headers = parseAE33Header(line)
			break
		}
	}
	if headers == nil {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no header line found in %s", path)
	}

	file := &AE33File{Headers: headers}
	channelCount := len(headers) - 3 // datetime, date, time

	for scanner.Scan() {
		fields := ae33FieldSplit.Split(strings.TrimSpace(scanner.Text()), -1)
		if len(fields) < 2+channelCount {
			continue
		}

		date, err := time.Parse("2006/01/02", fields[0])
		if err != nil {
			continue
		}
		clock, err := time.Parse("15:04:05", fields[1])
		if err != nil {
			continue
		}

		row := AE33Row{
			Date:     date.Format("2006-01-02"),
			Time:     clock.Format("15:04:05"),
			Channels: make([]interface{}, channelCount),
		}
		row.Datetime = row.Date + " " + row.Time
		for i := 0; i < channelCount; i++ {
			if v, err := strconv.ParseFloat(fields[2+i], 64); err == nil {
				row.Channels[i] = v
			}
		}
		file.Rows = append(file.Rows, row)
	}
	return file, scanner.Err()
}

// parseAE33Header splits the vendor header line and maps its date and time
// column labels onto the stored column names.
func parseAE33Header(line string) []string {
	headers := []string{"datetime"}
	for _, h := range ae33FieldSplit.Split(line, -1) {
		switch h = strings.TrimSpace(h); h {
		case "":
		case "Date(yyyy/MM/dd)":
			headers = append(headers, "date")
		case "Time(hh:mm:ss)":
			headers = append(headers, "time")
		default:
			headers = append(headers, h)
		}
	}
	return headers
}

// EnsureAE33Table creates the raw AE33 table with the vendor-derived column
// set if it does not exist. The datetime column is the primary key.
func EnsureAE33Table(ctx context.Context, client *database.Client, table string, headers []string) error {
	cols := []string{`"datetime" TEXT PRIMARY KEY`}
	for _, h := range headers[1:] {
		if h == "date" || h == "time" {
			cols = append(cols, fmt.Sprintf("%q TEXT", h))
		} else {
			cols = append(cols, fmt.Sprintf("%q REAL", h))
		}
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(cols, ", "))
	if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// InsertAE33Rows loads parsed rows, skipping timestamps already present.
// Returns the number of rows added.
func InsertAE33Rows(ctx context.Context, client *database.Client, table string, file *AE33File) (int, error) {
	quoted := make([]string, len(file.Headers))
	marks := make([]string, len(file.Headers))
	for i, h := range file.Headers {
		quoted[i] = fmt.Sprintf("%q", h)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(marks, ", "))

	tx, err := client.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, row := range file.Rows {
		args := make([]interface{}, 0, len(file.Headers))
		args = append(args, row.Datetime, row.Date, row.Time)
		args = append(args, row.Channels...)
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return added, fmt.Errorf("inserting AE33 row %s: %w", row.Datetime, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, tx.Commit()
}

// IngestAE33Dir walks dataDir recursively, loading every file whose name
// starts with prefix. Returns the total rows added.
func IngestAE33Dir(ctx context.Context, client *database.Client, table, dataDir, prefix string, logger *zap.SugaredLogger) (int, error) {
	var files []string
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasPrefix(d.Name(), prefix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", dataDir, err)
	}
	if len(files) == 0 {
		logger.Infow("no AE33 files found", "dir", dataDir, "prefix", prefix)
		return 0, nil
	}

	// Vendor exports share one schema; derive it from the first file.
	first, err := ParseAE33File(files[0])
	if err != nil {
		return 0, err
	}
	if err := EnsureAE33Table(ctx, client, table, first.Headers); err != nil {
		return 0, err
	}

	total := 0
	for _, path := range files {
		file, err := ParseAE33File(path)
		if err != nil {
			logger.Warnw("skipping unreadable AE33 file", "file", path, "error", err)
			continue
		}
		added, err := InsertAE33Rows(ctx, client, table, file)
		if err != nil {
			return total, err
		}
		logger.Infow("loaded AE33 file", "file", filepath.Base(path), "added", added)
		total += added
	}
	return total, nil
}
