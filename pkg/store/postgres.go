package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres is the server-grade Store backend. Same accessor surface as
// SQLite; deployments pick one via DATABASE_URL.
type Postgres struct {
	sqlStore
	db *sql.DB
}

// OpenPostgres connects to Postgres and ensures the schema exists.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Postgres{sqlStore: sqlStore{db: db, d: dialectPostgres}, db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresFromDB wraps an existing connection (used by tests with
// sqlmock); no migration is attempted.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{sqlStore: sqlStore{db: db, d: dialectPostgres}, db: db}
}

// Close releases the underlying connection pool.
func (s *Postgres) Close() error { return s.db.Close() }

func (s *Postgres) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS contracts (
		id BIGSERIAL PRIMARY KEY,
		contract_number TEXT NOT NULL DEFAULT '',
		worksite_id BIGINT NOT NULL DEFAULT 0,
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
		hourly_rate DOUBLE PRECISION,
		overtime_rate DOUBLE PRECISION,
		overtime_max_day DOUBLE PRECISION,
		overtime_max_month DOUBLE PRECISION,
		number_of_workers INTEGER NOT NULL DEFAULT 0,
		dispatch_start TEXT,
		dispatch_end TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contracts_status_end ON contracts(status, dispatch_end);

	CREATE TABLE IF NOT EXISTS worksites (
		id BIGSERIAL PRIMARY KEY,
		worksite_key TEXT NOT NULL UNIQUE,
		company_name TEXT NOT NULL DEFAULT '',
		plant_name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
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
		id BIGSERIAL PRIMARY KEY,
		worker_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		name_kana TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		company_name TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		line_name TEXT NOT NULL DEFAULT '',
		worksite_id BIGINT,
		hourly_rate DOUBLE PRECISION,
		billing_rate DOUBLE PRECISION,
		nationality TEXT NOT NULL DEFAULT '',
		residency_type TEXT NOT NULL DEFAULT '',
		document_expiry TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status);

	CREATE TABLE IF NOT EXISTS contract_workers (
		contract_id BIGINT NOT NULL,
		worker_id BIGINT NOT NULL,
		PRIMARY KEY (contract_id, worker_id)
	);
	CREATE INDEX IF NOT EXISTS idx_contract_workers_worker ON contract_workers(worker_id);

	CREATE TABLE IF NOT EXISTS contract_sequences (
		year_month TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), ddl); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

// NextContractNumber relies on Postgres row locking: the INSERT … ON
// CONFLICT DO UPDATE is atomic, so two concurrent callers can never
// draw the same number.
func (s *Postgres) NextContractNumber(ctx context.Context, yearMonth string) (string, error) {
	return pgNextContractNumber(ctx, s.db, yearMonth)
}

func pgNextContractNumber(ctx context.Context, db dbtx, yearMonth string) (string, error) {
	var value int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO contract_sequences (year_month, value) VALUES ($1, 1)
		ON CONFLICT (year_month) DO UPDATE SET value = contract_sequences.value + 1
		RETURNING value`, yearMonth).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("next contract number: %w", err)
	}
	return fmt.Sprintf("K-%s-%04d", yearMonth, value), nil
}

// WithTx runs fn inside one Postgres transaction.
func (s *Postgres) WithTx(ctx context.Context, fn func(tx Store) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &postgresTx{sqlStore: sqlStore{db: dbTx, d: dialectPostgres}, tx: dbTx}
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

type postgresTx struct {
	sqlStore
	tx *sql.Tx
}

func (t *postgresTx) NextContractNumber(ctx context.Context, yearMonth string) (string, error) {
	return pgNextContractNumber(ctx, t.tx, yearMonth)
}

// Nested transactions are not supported; the resolver holds exactly one.
func (t *postgresTx) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*postgresTx)(nil)
)
