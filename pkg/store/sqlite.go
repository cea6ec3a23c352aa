package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded Store backend. The database is opened in WAL
// mode so the read-only auditor/sweeper passes do not block the
// resolver's write transaction.
type SQLite struct {
	sqlStore
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite-backed store at the given
// DSN. Use ":memory:" for an ephemeral database in tests.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer at a time keeps the resolver transaction simple.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(context.Background(), `PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	s := &SQLite{sqlStore: sqlStore{db: db, d: dialectSQLite}, db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS contracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_number TEXT NOT NULL DEFAULT '',
		worksite_id INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		work_content TEXT NOT NULL DEFAULT '',
		responsibility_scope TEXT NOT NULL DEFAULT '',
		worksite_name TEXT NOT NULL DEFAULT '',
		worksite_address TEXT NOT NULL DEFAULT '',
		supervisor_name TEXT NOT NULL DEFAULT '',
		supervisor_department TEXT NOT NULL DEFAULT '',
		work_days TEXT,
		work_start_time TEXT,
		work_end_time TEXT,
		break_minutes INTEGER,
		safety_measures TEXT NOT NULL DEFAULT '',
		agency_complaint TEXT,
		client_complaint TEXT,
		termination_measures TEXT NOT NULL DEFAULT '',
		agency_manager TEXT,
		client_manager TEXT,
		hourly_rate REAL,
		overtime_rate REAL,
		overtime_max_day REAL,
		overtime_max_month REAL,
		number_of_workers INTEGER NOT NULL DEFAULT 0,
		dispatch_start TEXT,
		dispatch_end TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contracts_status_end ON contracts(status, dispatch_end);
	CREATE INDEX IF NOT EXISTS idx_contracts_worksite ON contracts(worksite_id);

	CREATE TABLE IF NOT EXISTS worksites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worksite_key TEXT NOT NULL UNIQUE,
		company_name TEXT NOT NULL DEFAULT '',
		plant_name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		company_address TEXT NOT NULL DEFAULT '',
		plant_address TEXT NOT NULL DEFAULT '',
		client_responsible_name TEXT NOT NULL DEFAULT '',
		client_responsible_department TEXT NOT NULL DEFAULT '',
		client_complaint_name TEXT NOT NULL DEFAULT '',
		agency_responsible_name TEXT NOT NULL DEFAULT '',
		agency_complaint_name TEXT NOT NULL DEFAULT '',
		cutoff_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		name_kana TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		company_name TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		line_name TEXT NOT NULL DEFAULT '',
		worksite_id INTEGER,
		hourly_rate REAL,
		billing_rate REAL,
		nationality TEXT NOT NULL DEFAULT '',
		residency_type TEXT NOT NULL DEFAULT '',
		document_expiry TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status);
	CREATE INDEX IF NOT EXISTS idx_workers_expiry ON workers(document_expiry);

	CREATE TABLE IF NOT EXISTS contract_workers (
		contract_id INTEGER NOT NULL,
		worker_id INTEGER NOT NULL,
		PRIMARY KEY (contract_id, worker_id)
	);
	CREATE INDEX IF NOT EXISTS idx_contract_workers_worker ON contract_workers(worker_id);

	CREATE TABLE IF NOT EXISTS contract_sequences (
		year_month TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), ddl); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

// NextContractNumber increments the month's counter atomically inside
// SQLite (single UPSERT + RETURNING), never in process memory.
func (s *SQLite) NextContractNumber(ctx context.Context, yearMonth string) (string, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contract_sequences (year_month, value) VALUES (?, 1)
		ON CONFLICT(year_month) DO UPDATE SET value = value + 1
		RETURNING value`, yearMonth).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("next contract number: %w", err)
	}
	return fmt.Sprintf("K-%s-%04d", yearMonth, value), nil
}

// WithTx runs fn against a transactional view; an error (or panic)
// rolls every write back.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx Store) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &sqliteTx{sqlStore: sqlStore{db: dbTx, d: dialectSQLite}, tx: dbTx}
	defer func() {
		if p := recover(); p != nil {
			_ = dbTx.Rollback()
			panic(p)
		}
	}()
	if err := fn(txStore); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// sqliteTx is the transactional view handed to WithTx callbacks.
type sqliteTx struct {
	sqlStore
	tx *sql.Tx
}

func (t *sqliteTx) NextContractNumber(ctx context.Context, yearMonth string) (string, error) {
	var value int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO contract_sequences (year_month, value) VALUES (?, 1)
		ON CONFLICT(year_month) DO UPDATE SET value = value + 1
		RETURNING value`, yearMonth).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("next contract number: %w", err)
	}
	return fmt.Sprintf("K-%s-%04d", yearMonth, value), nil
}

// Nested transactions are not supported; the resolver holds exactly one.
func (t *sqliteTx) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*sqliteTx)(nil)
)
