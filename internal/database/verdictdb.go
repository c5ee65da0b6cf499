package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/phishguard/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "phishguard.db"

// VerdictDB provides SQLite-based storage for verdict records.
// It is safe for concurrent use.
type VerdictDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures VerdictDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	// Read-only commands such as `history` leave it false.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ErrNotFound is returned by Open when the database does not exist and
// CreateIfNotExists is false.
var ErrNotFound = errors.New("database not found")

// Open opens or creates a VerdictDB in dbDir.
func Open(dbDir string, opts Options) (*VerdictDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	vdb := &VerdictDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := vdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return vdb, nil
}

// Path returns the database file path.
func (vdb *VerdictDB) Path() string {
	return vdb.dbPath
}

// Close closes the database connection.
func (vdb *VerdictDB) Close() error {
	return vdb.db.Close()
}

func (vdb *VerdictDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		url TEXT NOT NULL,
		url_hash TEXT NOT NULL,
		verdict TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		features TEXT NOT NULL,
		session_id TEXT,
		sweep_id TEXT,
		closed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_hash ON verdicts(url_hash);
	CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON verdicts(timestamp);
	CREATE INDEX IF NOT EXISTS idx_verdicts_verdict ON verdicts(verdict);
	`

	_, err := vdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveVerdict inserts a record and returns its ID. A missing URL hash or
// timestamp is filled in.
func (vdb *VerdictDB) SaveVerdict(ctx context.Context, rec *model.VerdictRecord) (int64, error) {
	if rec.URLHash == "" {
		rec.URLHash = model.HashURL(rec.URL)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize features: %w", err)
	}

	query := `
	INSERT INTO verdicts (timestamp, url, url_hash, verdict, score, features, session_id, sweep_id, closed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := vdb.db.ExecContext(ctx, query,
		rec.Timestamp.UTC().Format(timestampLayout),
		rec.URL,
		rec.URLHash,
		rec.Verdict.String(),
		rec.Score,
		string(featuresJSON),
		rec.SessionID,
		rec.SweepID,
		rec.Closed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert verdict: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read verdict id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// Filter narrows ListVerdicts. The zero value lists everything.
type Filter struct {
	// URL restricts results to one exact URL.
	URL string

	// PhishingOnly drops benign verdicts.
	PhishingOnly bool

	// Since drops verdicts older than the given time.
	Since time.Time

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

const selectColumns = `SELECT id, timestamp, url, url_hash, verdict, score, features, session_id, sweep_id, closed FROM verdicts`

// ListVerdicts returns matching verdicts, newest first.
func (vdb *VerdictDB) ListVerdicts(ctx context.Context, f Filter) ([]model.VerdictRecord, error) {
	query := selectColumns + " WHERE 1=1"
	args := make([]any, 0)

	if f.URL != "" {
		query += " AND url_hash = ?"
		args = append(args, model.HashURL(f.URL))
	}
	if f.PhishingOnly {
		query += " AND verdict = ?"
		args = append(args, model.VerdictPhishing.String())
	}
	if !f.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, f.Since.UTC().Format(timestampLayout))
	}

	query += " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := vdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	records := make([]model.VerdictRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LatestVerdict returns the newest verdict for url, or nil if there is none.
func (vdb *VerdictDB) LatestVerdict(ctx context.Context, url string) (*model.VerdictRecord, error) {
	query := selectColumns + " WHERE url_hash = ? ORDER BY timestamp DESC, id DESC LIMIT 1"

	rec, err := scanRecord(vdb.db.QueryRowContext(ctx, query, model.HashURL(url)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountByVerdict returns the number of stored verdicts per label.
func (vdb *VerdictDB) CountByVerdict(ctx context.Context) (map[model.Verdict]int, error) {
	rows, err := vdb.db.QueryContext(ctx, "SELECT verdict, COUNT(*) FROM verdicts GROUP BY verdict")
	if err != nil {
		return nil, fmt.Errorf("failed to count verdicts: %w", err)
	}
	defer rows.Close()

	counts := map[model.Verdict]int{
		model.VerdictBenign:   0,
		model.VerdictPhishing: 0,
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		v, err := model.ParseVerdict(label)
		if err != nil {
			return nil, fmt.Errorf("corrupt verdict row: %w", err)
		}
		counts[v] += n
	}

	return counts, rows.Err()
}

// ListURLs returns every distinct URL with a stored verdict, sorted.
func (vdb *VerdictDB) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := vdb.db.QueryContext(ctx, "SELECT DISTINCT url FROM verdicts ORDER BY url")
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, url)
	}

	return urls, rows.Err()
}

// PruneBefore deletes verdicts older than t and returns how many were removed.
func (vdb *VerdictDB) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := vdb.db.ExecContext(ctx, "DELETE FROM verdicts WHERE timestamp < ?", t.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune verdicts: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.VerdictRecord, error) {
	var (
		rec          model.VerdictRecord
		timestamp    string
		label        string
		featuresJSON string
		sessionID    sql.NullString
		sweepID      sql.NullString
	)

	err := s.Scan(
		&rec.ID,
		&timestamp,
		&rec.URL,
		&rec.URLHash,
		&label,
		&rec.Score,
		&featuresJSON,
		&sessionID,
		&sweepID,
		&rec.Closed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan verdict: %w", err)
	}

	rec.Timestamp = parseTimestamp(timestamp)
	rec.SessionID = sessionID.String
	rec.SweepID = sweepID.String

	if rec.Verdict, err = model.ParseVerdict(label); err != nil {
		return rec, fmt.Errorf("corrupt verdict row %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
		return rec, fmt.Errorf("failed to parse features of verdict %d: %w", rec.ID, err)
	}

	return rec, nil
}

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time if no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
