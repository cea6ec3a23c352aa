package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// dbtx is the subset of *sql.DB / *sql.Tx the queries run against.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for Postgres.
func (d dialect) rebind(query string) string {
	if d == dialectSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore carries the backend-independent query logic. SQLite and
// Postgres wrap it with their own DDL and sequence statements.
type sqlStore struct {
	db dbtx
	d  dialect
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func fmtDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.Day(*t).Format(dateLayout)
}

func fmtTimeOfDay(t *domain.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s.String, err)
	}
	return &t, nil
}

func parseTimeOfDay(s sql.NullString) (*domain.TimeOfDay, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", s.String, err)
	}
	return &domain.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(b), nil
}

func unmarshalContact(s sql.NullString) (*domain.ContactBlock, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var c domain.ContactBlock
	if err := json.Unmarshal([]byte(s.String), &c); err != nil {
		return nil, fmt.Errorf("unmarshal contact column: %w", err)
	}
	return &c, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

const contractColumns = `id, contract_number, worksite_id, status,
	work_content, responsibility_scope, worksite_name, worksite_address,
	supervisor_name, supervisor_department, work_days, work_start_time,
	work_end_time, break_minutes, safety_measures, agency_complaint,
	client_complaint, termination_measures, agency_manager, client_manager,
	hourly_rate, overtime_rate, overtime_max_day, overtime_max_month,
	number_of_workers, dispatch_start, dispatch_end, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (*domain.Contract, error) {
	var (
		c                              domain.Contract
		status                         string
		workDays, agencyC, clientC     sql.NullString
		agencyM, clientM               sql.NullString
		startT, endT                   sql.NullString
		breakMin                       sql.NullInt64
		hourly, overtime, otDay, otMon sql.NullFloat64
		dispStart, dispEnd             sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(&c.ID, &c.ContractNumber, &c.WorksiteID, &status,
		&c.WorkContent, &c.ResponsibilityScope, &c.WorksiteName, &c.WorksiteAddress,
		&c.SupervisorName, &c.SupervisorDepartment, &workDays, &startT,
		&endT, &breakMin, &c.SafetyMeasures, &agencyC,
		&clientC, &c.TerminationMeasures, &agencyM, &clientM,
		&hourly, &overtime, &otDay, &otMon,
		&c.NumberOfWorkers, &dispStart, &dispEnd, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan contract: %w", err)
	}
	c.Status = domain.ContractStatus(status)
	if workDays.Valid && workDays.String != "" {
		if err := json.Unmarshal([]byte(workDays.String), &c.WorkDays); err != nil {
			return nil, fmt.Errorf("unmarshal work_days: %w", err)
		}
	}
	if c.WorkStartTime, err = parseTimeOfDay(startT); err != nil {
		return nil, err
	}
	if c.WorkEndTime, err = parseTimeOfDay(endT); err != nil {
		return nil, err
	}
	if breakMin.Valid {
		v := int(breakMin.Int64)
		c.BreakMinutes = &v
	}
	if c.AgencyComplaint, err = unmarshalContact(agencyC); err != nil {
		return nil, err
	}
	if c.ClientComplaint, err = unmarshalContact(clientC); err != nil {
		return nil, err
	}
	if c.AgencyManager, err = unmarshalContact(agencyM); err != nil {
		return nil, err
	}
	if c.ClientManager, err = unmarshalContact(clientM); err != nil {
		return nil, err
	}
	if hourly.Valid {
		c.HourlyRate = &hourly.Float64
	}
	if overtime.Valid {
		c.OvertimeRate = &overtime.Float64
	}
	if otDay.Valid {
		c.OvertimeMaxHoursDay = &otDay.Float64
	}
	if otMon.Valid {
		c.OvertimeMaxHoursMon = &otMon.Float64
	}
	if c.DispatchStart, err = parseDate(dispStart); err != nil {
		return nil, err
	}
	if c.DispatchEnd, err = parseDate(dispEnd); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

func (s *sqlStore) GetContract(ctx context.Context, id int64) (*domain.Contract, error) {
	query := s.d.rebind(`SELECT ` + contractColumns + ` FROM contracts WHERE id = ?`)
	return scanContract(s.db.QueryRowContext(ctx, query, id))
}

func (s *sqlStore) ListContracts(ctx context.Context, f ContractFilter) ([]*domain.Contract, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.WorksiteID != nil {
		where = append(where, "worksite_id = ?")
		args = append(args, *f.WorksiteID)
	}
	if f.StartFrom != nil {
		where = append(where, "dispatch_start >= ?")
		args = append(args, fmtDate(f.StartFrom))
	}
	if f.EndUntil != nil {
		where = append(where, "dispatch_end <= ?")
		args = append(args, fmtDate(f.EndUntil))
	}
	if f.EndOn != nil {
		where = append(where, "dispatch_end = ?")
		args = append(args, fmtDate(f.EndOn))
	}
	if f.EndBefore != nil {
		where = append(where, "dispatch_end < ?")
		args = append(args, fmtDate(f.EndBefore))
	}
	query := `SELECT ` + contractColumns + ` FROM contracts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return out, nil
}

func (s *sqlStore) contractArgs(c *domain.Contract) ([]any, error) {
	workDays, err := marshalJSON(c.WorkDays)
	if err != nil {
		return nil, err
	}
	agencyC, err := marshalJSON(c.AgencyComplaint)
	if err != nil {
		return nil, err
	}
	clientC, err := marshalJSON(c.ClientComplaint)
	if err != nil {
		return nil, err
	}
	agencyM, err := marshalJSON(c.AgencyManager)
	if err != nil {
		return nil, err
	}
	clientM, err := marshalJSON(c.ClientManager)
	if err != nil {
		return nil, err
	}
	return []any{
		c.ContractNumber, c.WorksiteID, string(c.Status),
		c.WorkContent, c.ResponsibilityScope, c.WorksiteName, c.WorksiteAddress,
		c.SupervisorName, c.SupervisorDepartment, workDays, fmtTimeOfDay(c.WorkStartTime),
		fmtTimeOfDay(c.WorkEndTime), nullInt(c.BreakMinutes), c.SafetyMeasures, agencyC,
		clientC, c.TerminationMeasures, agencyM, clientM,
		nullFloat(c.HourlyRate), nullFloat(c.OvertimeRate), nullFloat(c.OvertimeMaxHoursDay),
		nullFloat(c.OvertimeMaxHoursMon), c.NumberOfWorkers,
		fmtDate(c.DispatchStart), fmtDate(c.DispatchEnd),
	}, nil
}

const contractInsertCols = `contract_number, worksite_id, status,
	work_content, responsibility_scope, worksite_name, worksite_address,
	supervisor_name, supervisor_department, work_days, work_start_time,
	work_end_time, break_minutes, safety_measures, agency_complaint,
	client_complaint, termination_measures, agency_manager, client_manager,
	hourly_rate, overtime_rate, overtime_max_day, overtime_max_month,
	number_of_workers, dispatch_start, dispatch_end, created_at, updated_at`

func (s *sqlStore) PutContract(ctx context.Context, c *domain.Contract) error {
	args, err := s.contractArgs(c)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	args = append(args, now, now)
	query := s.d.rebind(`INSERT INTO contracts (` + contractInsertCols + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdateContract(ctx context.Context, c *domain.Contract) error {
	args, err := s.contractArgs(c)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	args = append(args, c.UpdatedAt.Format(time.RFC3339Nano), c.ID)
	query := s.d.rebind(`UPDATE contracts SET
		contract_number = ?, worksite_id = ?, status = ?,
		work_content = ?, responsibility_scope = ?, worksite_name = ?, worksite_address = ?,
		supervisor_name = ?, supervisor_department = ?, work_days = ?, work_start_time = ?,
		work_end_time = ?, break_minutes = ?, safety_measures = ?, agency_complaint = ?,
		client_complaint = ?, termination_measures = ?, agency_manager = ?, client_manager = ?,
		hourly_rate = ?, overtime_rate = ?, overtime_max_day = ?, overtime_max_month = ?,
		number_of_workers = ?, dispatch_start = ?, dispatch_end = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("contract %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

const worksiteColumns = `id, worksite_key, company_name, plant_name, is_active,
	company_address, plant_address, client_responsible_name,
	client_responsible_department, client_complaint_name,
	agency_responsible_name, agency_complaint_name, cutoff_date,
	created_at, updated_at`

func scanWorksite(row interface{ Scan(...any) error }) (*domain.Worksite, error) {
	var (
		w                    domain.Worksite
		cutoff               sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&w.ID, &w.WorksiteKey, &w.CompanyName, &w.PlantName, &w.IsActive,
		&w.CompanyAddress, &w.PlantAddress, &w.ClientResponsibleName,
		&w.ClientResponsibleDepartment, &w.ClientComplaintName,
		&w.AgencyResponsibleName, &w.AgencyComplaintName, &cutoff,
		&createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan worksite: %w", err)
	}
	if w.CutoffDate, err = parseDate(cutoff); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if w.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &w, nil
}

func (s *sqlStore) GetWorksite(ctx context.Context, id int64) (*domain.Worksite, error) {
	query := s.d.rebind(`SELECT ` + worksiteColumns + ` FROM worksites WHERE id = ?`)
	return scanWorksite(s.db.QueryRowContext(ctx, query, id))
}

func (s *sqlStore) GetWorksiteByKey(ctx context.Context, key string) (*domain.Worksite, error) {
	query := s.d.rebind(`SELECT ` + worksiteColumns + ` FROM worksites WHERE worksite_key = ?`)
	return scanWorksite(s.db.QueryRowContext(ctx, query, key))
}

func (s *sqlStore) ListWorksites(ctx context.Context, f WorksiteFilter) ([]*domain.Worksite, error) {
	var (
		where []string
		args  []any
	)
	if f.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if f.RequireCutoff {
		where = append(where, "cutoff_date IS NOT NULL")
	}
	if f.CutoffFrom != nil {
		where = append(where, "cutoff_date >= ?")
		args = append(args, fmtDate(f.CutoffFrom))
	}
	if f.CutoffUntil != nil {
		where = append(where, "cutoff_date <= ?")
		args = append(args, fmtDate(f.CutoffUntil))
	}
	query := `SELECT ` + worksiteColumns + ` FROM worksites`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list worksites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Worksite
	for rows.Next() {
		w, err := scanWorksite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list worksites: %w", err)
	}
	return out, nil
}

func (s *sqlStore) worksiteArgs(w *domain.Worksite) []any {
	return []any{
		w.WorksiteKey, w.CompanyName, w.PlantName, w.IsActive,
		w.CompanyAddress, w.PlantAddress, w.ClientResponsibleName,
		w.ClientResponsibleDepartment, w.ClientComplaintName,
		w.AgencyResponsibleName, w.AgencyComplaintName, fmtDate(w.CutoffDate),
	}
}

func (s *sqlStore) PutWorksite(ctx context.Context, w *domain.Worksite) error {
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	args := append(s.worksiteArgs(w), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	query := s.d.rebind(`INSERT INTO worksites (worksite_key, company_name, plant_name, is_active,
		company_address, plant_address, client_responsible_name,
		client_responsible_department, client_complaint_name,
		agency_responsible_name, agency_complaint_name, cutoff_date,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&w.ID); err != nil {
		return fmt.Errorf("insert worksite: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdateWorksite(ctx context.Context, w *domain.Worksite) error {
	w.UpdatedAt = time.Now().UTC()
	args := append(s.worksiteArgs(w), w.UpdatedAt.Format(time.RFC3339Nano), w.ID)
	query := s.d.rebind(`UPDATE worksites SET
		worksite_key = ?, company_name = ?, plant_name = ?, is_active = ?,
		company_address = ?, plant_address = ?, client_responsible_name = ?,
		client_responsible_department = ?, client_complaint_name = ?,
		agency_responsible_name = ?, agency_complaint_name = ?, cutoff_date = ?,
		updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update worksite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("worksite %d: %w", w.ID, ErrNotFound)
	}
	return nil
}

const workerColumns = `id, worker_number, name, name_kana, status,
	company_name, department, line_name, worksite_id, hourly_rate,
	billing_rate, nationality, residency_type, document_expiry,
	created_at, updated_at`

func scanWorker(row interface{ Scan(...any) error }) (*domain.Worker, error) {
	var (
		w                    domain.Worker
		status               string
		hourly, billing      sql.NullFloat64
		worksiteID           sql.NullInt64
		expiry               sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&w.ID, &w.WorkerNumber, &w.Name, &w.NameKana, &status,
		&w.CompanyName, &w.Department, &w.LineName, &worksiteID, &hourly,
		&billing, &w.Nationality, &w.ResidencyType, &expiry,
		&createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan worker: %w", err)
	}
	w.Status = domain.WorkerStatus(status)
	if worksiteID.Valid {
		w.WorksiteID = worksiteID.Int64
	}
	if hourly.Valid {
		w.HourlyRate = &hourly.Float64
	}
	if billing.Valid {
		w.BillingRate = &billing.Float64
	}
	if w.DocumentExpiry, err = parseDate(expiry); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if w.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &w, nil
}

func (s *sqlStore) GetWorker(ctx context.Context, id int64) (*domain.Worker, error) {
	query := s.d.rebind(`SELECT ` + workerColumns + ` FROM workers WHERE id = ?`)
	return scanWorker(s.db.QueryRowContext(ctx, query, id))
}

func (s *sqlStore) GetWorkerByNumber(ctx context.Context, number string) (*domain.Worker, error) {
	query := s.d.rebind(`SELECT ` + workerColumns + ` FROM workers WHERE worker_number = ?`)
	return scanWorker(s.db.QueryRowContext(ctx, query, number))
}

func (s *sqlStore) ListWorkers(ctx context.Context, f WorkerFilter) ([]*domain.Worker, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.WorksiteID != nil {
		where = append(where, "worksite_id = ?")
		args = append(args, *f.WorksiteID)
	}
	if f.ExpiryFrom != nil {
		where = append(where, "document_expiry >= ?")
		args = append(args, fmtDate(f.ExpiryFrom))
	}
	if f.ExpiryUntil != nil {
		where = append(where, "document_expiry <= ?")
		args = append(args, fmtDate(f.ExpiryUntil))
	}
	query := `SELECT ` + workerColumns + ` FROM workers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return out, nil
}

func (s *sqlStore) AssignWorker(ctx context.Context, contractID, workerID int64) error {
	var query string
	if s.d == dialectSQLite {
		query = `INSERT OR IGNORE INTO contract_workers (contract_id, worker_id) VALUES (?, ?)`
	} else {
		query = `INSERT INTO contract_workers (contract_id, worker_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	}
	if _, err := s.db.ExecContext(ctx, query, contractID, workerID); err != nil {
		return fmt.Errorf("assign worker: %w", err)
	}
	return nil
}

func (s *sqlStore) ListContractWorkers(ctx context.Context, contractID int64) ([]*domain.Worker, error) {
	query := s.d.rebind(`SELECT ` + prefixColumns("w.", workerColumns) + `
		FROM workers w
		JOIN contract_workers cw ON cw.worker_id = w.id
		WHERE cw.contract_id = ?
		ORDER BY w.id`)
	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("list contract workers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contract workers: %w", err)
	}
	return out, nil
}

func (s *sqlStore) ListWorkerContracts(ctx context.Context, workerID int64) ([]*domain.Contract, error) {
	query := s.d.rebind(`SELECT ` + prefixColumns("c.", contractColumns) + `
		FROM contracts c
		JOIN contract_workers cw ON cw.contract_id = c.id
		WHERE cw.worker_id = ?
		ORDER BY c.id`)
	rows, err := s.db.QueryContext(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("list worker contracts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list worker contracts: %w", err)
	}
	return out, nil
}

// prefixColumns qualifies a comma-separated column list with a table
// alias for joined queries.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (s *sqlStore) workerArgs(w *domain.Worker) []any {
	var worksiteID any
	if w.WorksiteID != 0 {
		worksiteID = w.WorksiteID
	}
	return []any{
		w.WorkerNumber, w.Name, w.NameKana, string(w.Status),
		w.CompanyName, w.Department, w.LineName, worksiteID,
		nullFloat(w.HourlyRate), nullFloat(w.BillingRate),
		w.Nationality, w.ResidencyType, fmtDate(w.DocumentExpiry),
	}
}

func (s *sqlStore) PutWorker(ctx context.Context, w *domain.Worker) error {
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	args := append(s.workerArgs(w), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	query := s.d.rebind(`INSERT INTO workers (worker_number, name, name_kana, status,
		company_name, department, line_name, worksite_id, hourly_rate,
		billing_rate, nationality, residency_type, document_expiry,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&w.ID); err != nil {
		return fmt.Errorf("insert worker: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdateWorker(ctx context.Context, w *domain.Worker) error {
	w.UpdatedAt = time.Now().UTC()
	args := append(s.workerArgs(w), w.UpdatedAt.Format(time.RFC3339Nano), w.ID)
	query := s.d.rebind(`UPDATE workers SET
		worker_number = ?, name = ?, name_kana = ?, status = ?,
		company_name = ?, department = ?, line_name = ?, worksite_id = ?,
		hourly_rate = ?, billing_rate = ?, nationality = ?, residency_type = ?,
		document_expiry = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update worker: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("worker %d: %w", w.ID, ErrNotFound)
	}
	return nil
}
