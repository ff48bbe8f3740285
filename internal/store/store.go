// Package store keeps verified STAMP records in SQLite, one row per packet.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"gnss-stamp/internal/stamp"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db  *sql.DB
	log *log.Logger
}

// Open opens (or creates) the database at path and migrates it to the latest
// schema. ":memory:" gives a private in-memory database.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases shared and avoids SQLITE_BUSY
	// between our own writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, log: logger}
	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{log: s.log}
	// m is not closed: that would close s.db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (uint, error) {
	var v uint
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&v)
	return v, err
}

type migrateLogger struct{ log *log.Logger }

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf("migrate: "+strings.TrimSpace(format), v...)
}

func (l *migrateLogger) Verbose() bool { return false }

func (s *Store) Close() error { return s.db.Close() }

// StoredRecord is a row of stamp_records.
type StoredRecord struct {
	RunID  string
	Seq    int
	Raw    []byte
	Record stamp.Record
}

// InsertRecord stores one verified record with its raw packet bytes.
func (s *Store) InsertRecord(ctx context.Context, runID string, seq int, raw []byte, rec stamp.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stamp_records (
			run_id, seq, raw_hex, version, timestamp_sec, timestamp_nsec, time_utc,
			latitude, longitude, altitude, device_id, link_id, sync_status, sync_name, crc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, strings.ToUpper(hex.EncodeToString(raw)),
		rec.Version, rec.TimestampSec, rec.TimestampNsec, rec.Timestamp(),
		nullable(rec.Latitude), nullable(rec.Longitude), nullable(rec.Altitude),
		rec.DeviceID.String(), rec.LinkID, int32(rec.SyncStatus), rec.SyncStatus.String(),
		fmt.Sprintf("%04X", rec.CRC),
	)
	if err != nil {
		return fmt.Errorf("insert record %s/%d: %w", runID, seq, err)
	}
	return nil
}

// SQLite stores NaN as NULL; make that explicit and map it back on read.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// Records returns the rows of one run in sequence order.
func (s *Store) Records(ctx context.Context, runID string) ([]StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, raw_hex, version, timestamp_sec, timestamp_nsec,
			latitude, longitude, altitude, device_id, link_id, sync_status, crc
		FROM stamp_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var (
			sr            StoredRecord
			rawHex, devID string
			crcHex        string
			lat, lon, alt sql.NullFloat64
			sync          int32
		)
		r := &sr.Record
		if err := rows.Scan(&sr.RunID, &sr.Seq, &rawHex, &r.Version, &r.TimestampSec, &r.TimestampNsec,
			&lat, &lon, &alt, &devID, &r.LinkID, &sync, &crcHex); err != nil {
			return nil, err
		}
		if sr.Raw, err = hex.DecodeString(rawHex); err != nil {
			return nil, fmt.Errorf("row %s/%d raw_hex: %w", sr.RunID, sr.Seq, err)
		}
		if r.DeviceID, err = stamp.ParseDeviceID(devID); err != nil {
			return nil, fmt.Errorf("row %s/%d: %w", sr.RunID, sr.Seq, err)
		}
		crc, err := strconv.ParseUint(crcHex, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("row %s/%d crc: %w", sr.RunID, sr.Seq, err)
		}
		r.CRC = uint16(crc)
		r.Latitude, r.Longitude, r.Altitude = orNaN(lat), orNaN(lon), orNaN(alt)
		r.SyncStatus = stamp.SyncStatus(sync)
		r.Time = time.Unix(r.TimestampSec, int64(r.TimestampNsec)).UTC()
		r.CRCValid = true
		out = append(out, sr)
	}
	return out, rows.Err()
}

// Count returns the number of stored records across all runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stamp_records").Scan(&n)
	return n, err
}

// RunStats are the per-run counters kept in the runs table.
type RunStats struct {
	Total, Success, CRCFailures, FormatErrors, OtherErrors int
}

// BeginRun registers a run before its records are inserted.
func (s *Store) BeginRun(ctx context.Context, runID, source string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO runs (run_id, source) VALUES (?, ?)", runID, source)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, st RunStats) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = CURRENT_TIMESTAMP,
			total = ?, success = ?, crc_fail = ?, format_err = ?, other_err = ?
		WHERE run_id = ?`,
		st.Total, st.Success, st.CRCFailures, st.FormatErrors, st.OtherErrors, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}

// Run returns the counters stored for runID.
func (s *Store) Run(ctx context.Context, runID string) (RunStats, error) {
	var st RunStats
	err := s.db.QueryRowContext(ctx,
		"SELECT total, success, crc_fail, format_err, other_err FROM runs WHERE run_id = ?", runID,
	).Scan(&st.Total, &st.Success, &st.CRCFailures, &st.FormatErrors, &st.OtherErrors)
	return st, err
}
