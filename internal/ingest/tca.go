package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cass-aq/speciation/internal/database"
)

// tcaNumericColumns are the analyzer columns stored with REAL affinity;
// everything else in the vendor CSV is carried as text.
var tcaNumericColumns = map[string]bool{
	"TCcounts": true, "TCmass": true, "TCconc": true,
	"AE33_BC6": true, "AE33_b": true,
	"OC": true, "EC": true, "CO2": true, "Volume": true,
}

// TCARow is one parsed row of a TCA export CSV. Values are float64, string,
// or nil, positionally matching the file's header; Date is derived from the
// StartTimeLocal column.
type TCARow struct {
	ID     int64
	Values []interface{}
	Date   interface{}
}

// TCAFile is a parsed TCA export CSV.
type TCAFile struct {
	Headers []string
	Rows    []TCARow
}

// ParseTCAFile reads a TCA analyzer CSV export. Rows with a malformed ID or
// a short field count are skipped; timestamp columns are normalized and
// blank when unparseable.
func ParseTCAFile(path string) (*TCAFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	if len(headers) == 0 || headers[0] != "ID" {
		return nil, fmt.Errorf("missing ID column in %s", path)
	}

	startIdx := -1
	for i, h := range headers {
		if h == "StartTimeLocal" {
			startIdx = i
		}
	}

	file := &TCAFile{Headers: headers}
	for {
		fields, err := reader.Read()
		if err != nil {
			break
		}
		if len(fields) != len(headers) {
			continue
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}

		row := TCARow{ID: id, Values: make([]interface{}, len(headers))}
		row.Values[0] = id
		for i := 1; i < len(headers); i++ {
			switch {
			case strings.Contains(headers[i], "Time"):
				if t, err := time.Parse(database.TimestampLayout, fields[i]); err == nil {
					row.Values[i] = t.Format(database.TimestampLayout)
				}
			case tcaNumericColumns[headers[i]]:
				if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
					row.Values[i] = v
				}
			default:
				row.Values[i] = fields[i]
			}
		}
		if startIdx >= 0 {
			if s, ok := row.Values[startIdx].(string); ok && s != "" {
				row.Date = strings.SplitN(s, " ", 2)[0]
			}
		}
		file.Rows = append(file.Rows, row)
	}
	return file, nil
}

// EnsureTCATable creates the raw TCA table from the vendor header set if it
// does not exist. The vendor row ID is the primary key and a derived date
// column is appended for day-level filtering.
func EnsureTCATable(ctx context.Context, client *database.Client, table string, headers []string) error {
	cols := []string{`"ID" INTEGER PRIMARY KEY`}
	for _, h := range headers[1:] {
		switch {
		case strings.Contains(h, "Time"):
			cols = append(cols, fmt.Sprintf("%q TEXT", h))
		case tcaNumericColumns[h]:
			cols = append(cols, fmt.Sprintf("%q REAL", h))
		default:
			cols = append(cols, fmt.Sprintf("%q TEXT", h))
		}
	}
	cols = append(cols, `"date" TEXT`)
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(cols, ", "))
	if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// InsertTCARows loads parsed rows, skipping IDs already present. Returns
// the number of rows added.
func InsertTCARows(ctx context.Context, client *database.Client, table string, file *TCAFile) (int, error) {
	quoted := make([]string, 0, len(file.Headers)+1)
	marks := make([]string, 0, len(file.Headers)+1)
	for _, h := range file.Headers {
		quoted = append(quoted, fmt.Sprintf("%q", h))
		marks = append(marks, "?")
	}
	quoted = append(quoted, `"date"`)
	marks = append(marks, "?")
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(marks, ", "))

	tx, err := client.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, row := range file.Rows {
		args := append(append([]interface{}{}, row.Values...), row.Date)
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return added, fmt.Errorf("inserting TCA row %d: %w", row.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, tx.Commit()
}

// IngestTCADir loads every CSV in dataDir whose name starts with prefix.
// Returns the total rows added.
func IngestTCADir(ctx context.Context, client *database.Client, table, dataDir, prefix string, logger *zap.SugaredLogger) (int, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", dataDir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".csv") {
			files = append(files, filepath.Join(dataDir, e.Name()))
		}
	}
	if len(files) == 0 {
		logger.Infow("no TCA files found", "dir", dataDir, "prefix", prefix)
		return 0, nil
	}

	total := 0
	for _, path := range files {
		file, err := ParseTCAFile(path)
		if err != nil {
			logger.Warnw("skipping unreadable TCA file", "file", path, "error", err)
			continue
		}
		if err := EnsureTCATable(ctx, client, table, file.Headers); err != nil {
			return total, err
		}
		added, err := InsertTCARows(ctx, client, table, file)
		if err != nil {
			return total, err
		}
		logger.Infow("loaded TCA file", "file", filepath.Base(path), "added", added)
		total += added
	}
	return total, nil
}
