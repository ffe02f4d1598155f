// Package store persists structured extraction output in per-job DuckDB
// files so chart queries over large archives never hold the full series in
// memory.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/alonraif/NGL-sub000/internal/models"
)

// Sample is one stored time-series row. Which columns are meaningful depends
// on the series family: bandwidth rows carry the kbps pair, resource and
// modem-statistic rows carry Value.
type Sample struct {
	Series    string    `json:"series"`
	Timestamp time.Time `json:"timestamp"`
	TotalKbps int       `json:"totalKbps"`
	VideoKbps int       `json:"videoKbps"`
	Value     float64   `json:"value"`
	Note      string    `json:"note,omitempty"`
}

// SampleStore batches samples into a DuckDB file, one per extraction job.
// Inserts go through the native Appender; indexes are created once in
// Finalize after the last insert.
type SampleStore struct {
	db          *sql.DB
	dbPath      string
	sampleCount int
	batchSize   int
	batch       []Sample
	series      map[string]struct{}
	minTs       int64
	maxTs       int64
	lastError   error

	// Limits concurrent chunk queries so a burst of chart pans cannot
	// spike memory.
	querySem chan struct{}
}

const chunkRowCap = 500000

// NewSampleStore creates the backing DuckDB file for a job in dir.
func NewSampleStore(dir, jobID string) (*SampleStore, error) {
	return NewSampleStoreAtPath(filepath.Join(dir, fmt.Sprintf("job_%s.duckdb", jobID)))
}

// NewSampleStoreAtPath creates a new store at a specific path. Used for
// persistent caching of finished extractions.
func NewSampleStoreAtPath(dbPath string) (*SampleStore, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[SampleStore] Pragma warning: %v\n", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE samples (
			id         INTEGER PRIMARY KEY,
			series     VARCHAR NOT NULL,
			timestamp  BIGINT NOT NULL,
			total_kbps INTEGER,
			video_kbps INTEGER,
			value      DOUBLE,
			note       VARCHAR
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create samples table: %w", err)
	}

	return &SampleStore{
		db:        db,
		dbPath:    dbPath,
		batchSize: 50000,
		batch:     make([]Sample, 0, 50000),
		series:    make(map[string]struct{}, 16),
		querySem:  make(chan struct{}, 3),
	}, nil
}

// OpenSampleStore opens an existing job database read-only for querying.
func OpenSampleStore(dbPath string) (*SampleStore, error) {
	connector, err := duckdb.NewConnector(dbPath+"?access_mode=read_only", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connector: %w", err)
	}
	db := sql.OpenDB(connector)

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}

	// An empty table scans as NULL; zero stands in for both bounds.
	var minTs, maxTs sql.NullInt64
	_ = db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM samples").Scan(&minTs, &maxTs)

	series := make(map[string]struct{})
	rows, err := db.Query("SELECT DISTINCT series FROM samples")
	if err == nil {
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err == nil {
				series[s] = struct{}{}
			}
		}
		rows.Close()
	}

	return &SampleStore{
		db:          db,
		dbPath:      dbPath,
		sampleCount: count,
		batchSize:   50000,
		series:      series,
		minTs:       minTs.Int64,
		maxTs:       maxTs.Int64,
		querySem:    make(chan struct{}, 3),
	}, nil
}

// Add appends one sample to the store, flushing when the batch fills.
func (ss *SampleStore) Add(s Sample) {
	ss.batch = append(ss.batch, s)
	ss.series[s.Series] = struct{}{}

	tsMs := s.Timestamp.UnixMilli()
	if ss.sampleCount == 0 || tsMs < ss.minTs {
		ss.minTs = tsMs
	}
	if tsMs > ss.maxTs {
		ss.maxTs = tsMs
	}
	ss.sampleCount++

	if len(ss.batch) >= ss.batchSize {
		if err := ss.flushBatch(); err != nil {
			ss.lastError = err
			fmt.Printf("[SampleStore] flush error: %v\n", err)
		}
	}
}

// AddResult stores every storable series a structured extraction produced.
// Line-filter output has no series representation and is skipped.
func (ss *SampleStore) AddResult(res *models.ExtractionResult) {
	switch parsed := res.Parsed.(type) {
	case []models.BandwidthPoint:
		for _, p := range parsed {
			ss.Add(Sample{
				Series:    res.Mode,
				Timestamp: p.Timestamp,
				TotalKbps: p.TotalKbps,
				VideoKbps: p.VideoKbps,
				Note:      p.Note,
			})
		}
	case models.ModemSeries:
		for id, samples := range parsed.Modems {
			for _, s := range samples {
				ss.Add(Sample{
					Series:    "modem:" + id,
					Timestamp: s.Timestamp,
					TotalKbps: s.PotentialKbps,
					Value:     s.LossPercent,
				})
			}
		}
		for _, a := range parsed.Aggregated {
			ss.Add(Sample{Series: "aggregate", Timestamp: a.Timestamp, TotalKbps: a.TotalKbps})
		}
	case []models.ResourceSample:
		for _, s := range parsed {
			series := res.Mode + ":" + s.Component
			note := ""
			if s.Warning {
				note = "warning"
			}
			ss.Add(Sample{Series: series, Timestamp: s.Timestamp, Value: s.Value, Note: note})
		}
	}
}

// LastError returns the last error that occurred during batch flush.
func (ss *SampleStore) LastError() error {
	return ss.lastError
}

// flushBatch writes the pending batch through the native Appender.
func (ss *SampleStore) flushBatch() error {
	if len(ss.batch) == 0 {
		return nil
	}

	conn, err := ss.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "samples")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		baseID := ss.sampleCount - len(ss.batch)
		for i, s := range ss.batch {
			err := appender.AppendRow(
				int32(baseID+i),
				s.Series,
				s.Timestamp.UnixMilli(),
				int32(s.TotalKbps),
				int32(s.VideoKbps),
				s.Value,
				s.Note,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	ss.batch = ss.batch[:0]
	return nil
}

// Finalize flushes the remaining batch and creates the timestamp index.
// Index creation is deferred to here so inserts stay fast.
func (ss *SampleStore) Finalize() error {
	if err := ss.flushBatch(); err != nil {
		return err
	}
	if _, err := ss.db.Exec("CREATE INDEX idx_ts ON samples(timestamp)"); err != nil {
		return fmt.Errorf("idx_ts creation failed: %w", err)
	}
	if ss.sampleCount > 100000 {
		if _, err := ss.db.Exec("CREATE INDEX idx_series_ts ON samples(series, timestamp)"); err != nil {
			fmt.Printf("[SampleStore] Warning: idx_series_ts creation failed: %v\n", err)
		}
	}
	return nil
}

// Len returns the total number of stored samples.
func (ss *SampleStore) Len() int {
	return ss.sampleCount
}

// Series lists the distinct series names, sorted.
func (ss *SampleStore) Series() []string {
	out := make([]string, 0, len(ss.series))
	for s := range ss.series {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TimeRange returns the stored time span, or ok=false for an empty store.
func (ss *SampleStore) TimeRange() (start, end time.Time, ok bool) {
	if ss.sampleCount == 0 {
		return time.Time{}, time.Time{}, false
	}
	return time.UnixMilli(ss.minTs), time.UnixMilli(ss.maxTs), true
}

// Chunk returns samples with start <= ts <= end, optionally restricted to
// the named series, ordered by timestamp. Results are capped at chunkRowCap
// rows.
func (ss *SampleStore) Chunk(ctx context.Context, start, end time.Time, series []string) ([]Sample, error) {
	select {
	case ss.querySem <- struct{}{}:
		defer func() { <-ss.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	query := `
		SELECT series, timestamp, total_kbps, video_kbps, value, note
		FROM samples WHERE timestamp >= ? AND timestamp <= ?
	`
	args := []interface{}{start.UnixMilli(), end.UnixMilli()}

	if len(series) > 0 {
		placeholders := make([]string, len(series))
		for i, s := range series {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " AND series IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += fmt.Sprintf(" ORDER BY timestamp LIMIT %d", chunkRowCap)

	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]Sample, 0, 1000)
	for rows.Next() {
		var s Sample
		var tsMs int64
		var note sql.NullString
		if err := rows.Scan(&s.Series, &tsMs, &s.TotalKbps, &s.VideoKbps, &s.Value, &note); err != nil {
			return nil, err
		}
		s.Timestamp = time.UnixMilli(tsMs)
		s.Note = note.String
		samples = append(samples, s)
	}
	if len(samples) == chunkRowCap {
		fmt.Printf("[SampleStore] Warning: chunk query truncated at %d rows\n", chunkRowCap)
	}
	return samples, rows.Err()
}

// Path returns the backing database file path.
func (ss *SampleStore) Path() string {
	return ss.dbPath
}

// Close closes the database and removes the backing file.
func (ss *SampleStore) Close() error {
	if ss.db != nil {
		ss.db.Close()
	}
	if ss.dbPath != "" {
		os.Remove(ss.dbPath)
	}
	return nil
}

// Release closes the database connection but keeps the backing file, for
// stores whose file is owned by a persistent cache.
func (ss *SampleStore) Release() error {
	if ss.db != nil {
		return ss.db.Close()
	}
	return nil
}
