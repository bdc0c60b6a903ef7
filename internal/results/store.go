// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package results persists run-level traffic snapshots to SQLite, so a
// completed or in-progress run's per-stream counters survive the process
// and can be queried after the fact rather than only scraped live off
// Prometheus.
package results

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"grimm.is/gwemu/internal/errors"
	"grimm.is/gwemu/internal/stats"
)

// Store handles persistence of per-stream snapshots to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the results database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "open results db")
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		config_path TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stream_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		sample_time INTEGER NOT NULL,
		stream_name TEXT NOT NULL,
		direction TEXT NOT NULL,
		flow_id INTEGER NOT NULL,
		rx_packets INTEGER NOT NULL,
		tx_packets INTEGER NOT NULL,
		rx_loss INTEGER NOT NULL,
		rx_pps REAL NOT NULL,
		tx_pps REAL NOT NULL,
		tx_bps_l2 REAL NOT NULL,
		rx_bps_l2 REAL NOT NULL,
		rx_bps_l3 REAL NOT NULL,
		rx_delay_min_nsec INTEGER NOT NULL,
		rx_delay_max_nsec INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stream_snapshots_run ON stream_snapshots(run_id);
	CREATE INDEX IF NOT EXISTS idx_stream_snapshots_name ON stream_snapshots(stream_name, sample_time);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun records the start of a new run, tagged with a fresh UUID so
// multiple runs against the same DUT can be told apart independent of the
// database's own row numbering. It returns the row id used internally to
// key stream_snapshots, and the run's UUID for external reporting.
func (s *Store) StartRun(configPath string, startedAt time.Time) (int64, string, error) {
	runUUID := uuid.New().String()
	res, err := s.db.Exec(`INSERT INTO runs (run_uuid, started_at, config_path) VALUES (?, ?, ?)`, runUUID, startedAt.Unix(), configPath)
	if err != nil {
		return 0, "", errors.Wrap(err, errors.KindInternal, "insert run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", errors.Wrap(err, errors.KindInternal, "read run id")
	}
	return id, runUUID, nil
}

// RecordSnapshots persists a batch of per-stream records sampled at
// sampleTime under runID, in one transaction.
func (s *Store) RecordSnapshots(runID int64, sampleTime time.Time, records []stats.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "begin snapshot transaction")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stream_snapshots (
			run_id, sample_time, stream_name, direction, flow_id,
			rx_packets, tx_packets, rx_loss, rx_pps, tx_pps,
			tx_bps_l2, rx_bps_l2, rx_bps_l3, rx_delay_min_nsec, rx_delay_max_nsec
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, errors.KindInternal, "prepare snapshot insert")
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			runID, sampleTime.Unix(), r.Name, r.Direction, r.FlowID,
			r.RXPackets, r.TXPackets, r.RXLoss, r.RXPPS, r.TXPPS,
			r.TXBpsL2, r.RXBpsL2, r.RXBpsL3, r.RXDelayMinNsec, r.RXDelayMaxNsec,
		)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, errors.KindInternal, "insert snapshot")
		}
	}

	return tx.Commit()
}

// StreamHistory returns every recorded snapshot for name within a run,
// ordered oldest first.
func (s *Store) StreamHistory(runID int64, name string) ([]stats.Record, error) {
	rows, err := s.db.Query(`
		SELECT stream_name, direction, flow_id, rx_packets, tx_packets, rx_loss,
		       rx_pps, tx_pps, tx_bps_l2, rx_bps_l2, rx_bps_l3,
		       rx_delay_min_nsec, rx_delay_max_nsec
		FROM stream_snapshots
		WHERE run_id = ? AND stream_name = ?
		ORDER BY sample_time ASC
	`, runID, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "query stream history")
	}
	defer rows.Close()

	var out []stats.Record
	for rows.Next() {
		var r stats.Record
		if err := rows.Scan(
			&r.Name, &r.Direction, &r.FlowID, &r.RXPackets, &r.TXPackets, &r.RXLoss,
			&r.RXPPS, &r.TXPPS, &r.TXBpsL2, &r.RXBpsL2, &r.RXBpsL3,
			&r.RXDelayMinNsec, &r.RXDelayMaxNsec,
		); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan stream history row")
		}
		out = append(out, r)
	}
	return out, nil
}

// Summary aggregates loss and throughput across every stream in a run, for
// a single end-of-run report.
type Summary struct {
	RunUUID       string
	StreamCount   int
	TotalRXLoss   uint64
	TotalRXPacket uint64
}

// RunSummary aggregates the most recent snapshot of every stream in runID.
func (s *Store) RunSummary(runID int64) (Summary, error) {
	var runUUID string
	if err := s.db.QueryRow(`SELECT run_uuid FROM runs WHERE id = ?`, runID).Scan(&runUUID); err != nil {
		return Summary{}, errors.Wrap(err, errors.KindInternal, "scan run uuid")
	}

	row := s.db.QueryRow(`
		SELECT COUNT(DISTINCT stream_name), COALESCE(SUM(rx_loss), 0), COALESCE(SUM(rx_packets), 0)
		FROM stream_snapshots s
		WHERE run_id = ? AND sample_time = (
			SELECT MAX(sample_time) FROM stream_snapshots WHERE run_id = s.run_id AND stream_name = s.stream_name
		)
	`, runID)

	sum := Summary{RunUUID: runUUID}
	if err := row.Scan(&sum.StreamCount, &sum.TotalRXLoss, &sum.TotalRXPacket); err != nil {
		return Summary{}, errors.Wrap(err, errors.KindInternal, "scan run summary")
	}
	return sum, nil
}
