package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/metrics"
	"khata/internal/records"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored instants sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var _ records.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db   *sql.DB
	cats []string
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, cats: core.KnownCategories}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Snapshot reads every record of the owner inside one transaction so the
// result never mixes state from before and after a concurrent write.
func (r *SQLiteRepository) Snapshot(ctx context.Context, ownerID string) (core.Snapshot, error) {
	snap := core.Snapshot{OwnerID: ownerID}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return snap, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if snap.Counterparties, err = listCounterparties(ctx, tx, ownerID); err != nil {
		return snap, err
	}
	if snap.Supplier, err = listSupplier(ctx, tx, ownerID, records.Filter{}); err != nil {
		return snap, err
	}
	if snap.Loans, err = listLoans(ctx, tx, ownerID, records.Filter{}); err != nil {
		return snap, err
	}
	if snap.Spends, err = listSpends(ctx, tx, ownerID, records.Filter{}); err != nil {
		return snap, err
	}

	if err := tx.Commit(); err != nil {
		return snap, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

func (r *SQLiteRepository) ListCounterparties(ctx context.Context, ownerID string) ([]core.Counterparty, error) {
	return listCounterparties(ctx, r.db, ownerID)
}

func (r *SQLiteRepository) ListSupplierTransactions(ctx context.Context, ownerID string, f records.Filter) ([]core.SupplierTransaction, error) {
	return listSupplier(ctx, r.db, ownerID, f)
}

func (r *SQLiteRepository) ListLoanTransactions(ctx context.Context, ownerID string, f records.Filter) ([]core.LoanTransaction, error) {
	return listLoans(ctx, r.db, ownerID, f)
}

func (r *SQLiteRepository) ListSpends(ctx context.Context, ownerID string, f records.Filter) ([]core.Spend, error) {
	return listSpends(ctx, r.db, ownerID, f)
}

func (r *SQLiteRepository) Categories(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM spends WHERE owner_id = ? ORDER BY category`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get spend categories: %w", err)
	}
	defer rows.Close()

	var used []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		used = append(used, core.NormalizeCategory(c))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return records.MergeCategories(r.cats, used), nil
}

// SaveCounterparty inserts c or updates the name and kind of an existing one.
func (r *SQLiteRepository) SaveCounterparty(ctx context.Context, c core.Counterparty) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO counterparties (id, owner_id, name, kind) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind
		WHERE counterparties.owner_id = excluded.owner_id`,
		c.ID, c.OwnerID, c.Name, string(c.Kind))
	if err != nil {
		return fmt.Errorf("save counterparty: %w", err)
	}
	slog.InfoContext(ctx, "Counterparty saved to SQLite", "id", c.ID, "kind", c.Kind)
	return nil
}

func (r *SQLiteRepository) InsertSupplierTransaction(ctx context.Context, t core.SupplierTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := insertSupplier(ctx, r.db, t); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Supplier transaction saved to SQLite",
		"id", t.ID,
		"counterparty_id", t.CounterpartyID,
		"kind", t.Kind,
		"amount", t.Amount.String())
	return nil
}

func (r *SQLiteRepository) InsertLoanTransaction(ctx context.Context, t core.LoanTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_transactions (id, owner_id, person_id, kind, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.PersonID, string(t.Kind), t.Amount.String(), t.Description, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create loan transaction: %w", err)
	}
	slog.InfoContext(ctx, "Loan transaction saved to SQLite",
		"id", t.ID,
		"person_id", t.PersonID,
		"kind", t.Kind,
		"amount", t.Amount.String())
	return nil
}

func (r *SQLiteRepository) InsertSpend(ctx context.Context, s core.Spend) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := insertSpend(ctx, r.db, s); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Spend saved to SQLite",
		"id", s.ID,
		"category", s.Category,
		"amount", s.Amount.String(),
		"date", s.Date.String())
	return nil
}

// Update loads the record, applies e and writes it back in one transaction.
func (r *SQLiteRepository) Update(ctx context.Context, kind records.Kind, ownerID, id string, e records.Edit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	switch kind {
	case records.KindCounterparty:
		err = updateCounterparty(ctx, tx, ownerID, id, e)
	case records.KindSupplier:
		err = updateSupplier(ctx, tx, ownerID, id, e)
	case records.KindLoan:
		err = updateLoan(ctx, tx, ownerID, id, e)
	case records.KindSpend:
		err = updateSpend(ctx, tx, ownerID, id, e)
	default:
		err = fmt.Errorf("unsupported record kind: %s", kind)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	slog.InfoContext(ctx, "Record updated in SQLite", "kind", kind, "id", id)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, kind records.Kind, ownerID, id string) error {
	table, ok := tables[kind]
	if !ok {
		return fmt.Errorf("unsupported record kind: %s", kind)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Record deleted from SQLite", "kind", kind, "id", id)
	return nil
}

func (r *SQLiteRepository) GetPreference(ctx context.Context, ownerID, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE owner_id = ? AND key = ?`, ownerID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return v, nil
}

func (r *SQLiteRepository) SetPreference(ctx context.Context, ownerID, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (owner_id, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		ownerID, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

var tables = map[records.Kind]string{
	records.KindCounterparty: "counterparties",
	records.KindSupplier:     "supplier_transactions",
	records.KindLoan:         "loan_transactions",
	records.KindSpend:        "spends",
}

func listCounterparties(ctx context.Context, q queryer, ownerID string) ([]core.Counterparty, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, owner_id, name, kind FROM counterparties WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get counterparties: %w", err)
	}
	defer rows.Close()

	var out []core.Counterparty
	for rows.Next() {
		var c core.Counterparty
		var kind string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan counterparty: %w", err)
		}
		c.Kind = core.CounterpartyKind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterparties: %w", err)
	}
	return out, nil
}

const supplierColumns = `id, owner_id, counterparty_id, kind, amount, description, created_at, due_date, settled`

func listSupplier(ctx context.Context, q queryer, ownerID string, f records.Filter) ([]core.SupplierTransaction, error) {
	where, args := filterClause("counterparty_id", ownerID, f)
	rows, err := q.QueryContext(ctx,
		`SELECT `+supplierColumns+` FROM supplier_transactions WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("get supplier transactions: %w", err)
	}
	defer rows.Close()

	var out []core.SupplierTransaction
	for rows.Next() {
		t, err := scanSupplier(rows)
		if err != nil {
			if isDecodeError(err) {
				skipRow(ctx, "supplier_transaction", err)
				continue
			}
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supplier transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSupplier(row scanner) (core.SupplierTransaction, error) {
	var (
		t                       core.SupplierTransaction
		kind, amount, createdAt string
		due                     sql.NullString
		settled                 int64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.CounterpartyID, &kind, &amount, &t.Description, &createdAt, &due, &settled); err != nil {
		return t, fmt.Errorf("scan supplier transaction: %w", err)
	}
	t.Kind = core.SupplierKind(kind)
	t.Settled = settled != 0

	var err error
	if t.Amount, err = decodeAmount(t.ID, amount); err != nil {
		return t, err
	}
	if t.CreatedAt, err = decodeTime(t.ID, createdAt); err != nil {
		return t, err
	}
	if due.Valid && due.String != "" {
		d, perr := core.ParseDate(due.String)
		if perr != nil {
			return t, &decodeError{id: t.ID, field: "due_date", err: perr}
		}
		t.DueDate = &d
	}
	return t, nil
}

func insertSupplier(ctx context.Context, q queryer, t core.SupplierTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO supplier_transactions (`+supplierColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.CounterpartyID, string(t.Kind), t.Amount.String(), t.Description,
		formatTime(t.CreatedAt), nullDate(t.DueDate), boolInt(t.Settled))
	if err != nil {
		return fmt.Errorf("create supplier transaction: %w", err)
	}
	return nil
}

func updateSupplier(ctx context.Context, q queryer, ownerID, id string, e records.Edit) error {
	row := q.QueryRowContext(ctx,
		`SELECT `+supplierColumns+` FROM supplier_transactions WHERE owner_id = ? AND id = ?`, ownerID, id)
	t, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	if err != nil {
		return err
	}
	records.ApplySupplier(&t, e)
	if err := t.Validate(); err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE supplier_transactions SET amount = ?, description = ?, settled = ?
		WHERE owner_id = ? AND id = ?`,
		t.Amount.String(), t.Description, boolInt(t.Settled), ownerID, id)
	if err != nil {
		return fmt.Errorf("update supplier transaction: %w", err)
	}
	return nil
}

const loanColumns = `id, owner_id, person_id, kind, amount, description, created_at`

func listLoans(ctx context.Context, q queryer, ownerID string, f records.Filter) ([]core.LoanTransaction, error) {
	where, args := filterClause("person_id", ownerID, f)
	rows, err := q.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loan_transactions WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("get loan transactions: %w", err)
	}
	defer rows.Close()

	var out []core.LoanTransaction
	for rows.Next() {
		t, err := scanLoan(rows)
		if err != nil {
			if isDecodeError(err) {
				skipRow(ctx, "loan_transaction", err)
				continue
			}
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan transactions: %w", err)
	}
	return out, nil
}

func scanLoan(row scanner) (core.LoanTransaction, error) {
	var (
		t                       core.LoanTransaction
		kind, amount, createdAt string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.PersonID, &kind, &amount, &t.Description, &createdAt); err != nil {
		return t, fmt.Errorf("scan loan transaction: %w", err)
	}
	t.Kind = core.LoanKind(kind)
	var err error
	if t.Amount, err = decodeAmount(t.ID, amount); err != nil {
		return t, err
	}
	if t.CreatedAt, err = decodeTime(t.ID, createdAt); err != nil {
		return t, err
	}
	return t, nil
}

func updateLoan(ctx context.Context, q queryer, ownerID, id string, e records.Edit) error {
	row := q.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loan_transactions WHERE owner_id = ? AND id = ?`, ownerID, id)
	t, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	if err != nil {
		return err
	}
	records.ApplyLoan(&t, e)
	if err := t.Validate(); err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE loan_transactions SET amount = ?, description = ? WHERE owner_id = ? AND id = ?`,
		t.Amount.String(), t.Description, ownerID, id)
	if err != nil {
		return fmt.Errorf("update loan transaction: %w", err)
	}
	return nil
}

const spendColumns = `id, owner_id, title, category, amount, spend_date, created_at`

// listSpends filters by time in Go: Filter bounds are instants while spends
// carry a calendar date.
func listSpends(ctx context.Context, q queryer, ownerID string, f records.Filter) ([]core.Spend, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+spendColumns+` FROM spends WHERE owner_id = ? ORDER BY spend_date, created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get spends: %w", err)
	}
	defer rows.Close()

	var out []core.Spend
	for rows.Next() {
		s, err := scanSpend(rows)
		if err != nil {
			if isDecodeError(err) {
				skipRow(ctx, "spend", err)
				continue
			}
			return nil, err
		}
		if f.MatchDate(s.EntityID(), s.Date) {
			out = append(out, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spends: %w", err)
	}
	return out, nil
}

func scanSpend(row scanner) (core.Spend, error) {
	var (
		s                            core.Spend
		amount, spendDate, createdAt string
	)
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Category, &amount, &spendDate, &createdAt); err != nil {
		return s, fmt.Errorf("scan spend: %w", err)
	}
	var err error
	if s.Amount, err = decodeAmount(s.ID, amount); err != nil {
		return s, err
	}
	if s.Date, err = core.ParseDate(spendDate); err != nil {
		return s, &decodeError{id: s.ID, field: "spend_date", err: err}
	}
	if s.CreatedAt, err = decodeTime(s.ID, createdAt); err != nil {
		return s, err
	}
	return s, nil
}

func insertSpend(ctx context.Context, q queryer, s core.Spend) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO spends (`+spendColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Title, s.Category, s.Amount.String(), s.Date.String(), formatTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create spend: %w", err)
	}
	return nil
}

func updateSpend(ctx context.Context, q queryer, ownerID, id string, e records.Edit) error {
	row := q.QueryRowContext(ctx,
		`SELECT `+spendColumns+` FROM spends WHERE owner_id = ? AND id = ?`, ownerID, id)
	s, err := scanSpend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	if err != nil {
		return err
	}
	records.ApplySpend(&s, e)
	if err := s.Validate(); err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE spends SET title = ?, category = ?, amount = ? WHERE owner_id = ? AND id = ?`,
		s.Title, s.Category, s.Amount.String(), ownerID, id)
	if err != nil {
		return fmt.Errorf("update spend: %w", err)
	}
	return nil
}

func updateCounterparty(ctx context.Context, q queryer, ownerID, id string, e records.Edit) error {
	var c core.Counterparty
	var kind string
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, kind FROM counterparties WHERE owner_id = ? AND id = ?`, ownerID, id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get counterparty: %w", err)
	}
	c.Kind = core.CounterpartyKind(kind)
	if e.Name != nil {
		c.Name = strings.TrimSpace(*e.Name)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE counterparties SET name = ? WHERE owner_id = ? AND id = ?`, c.Name, ownerID, id)
	if err != nil {
		return fmt.Errorf("update counterparty: %w", err)
	}
	return nil
}

func filterClause(entityColumn, ownerID string, f records.Filter) (string, []any) {
	clauses := []string{"owner_id = ?"}
	args := []any{ownerID}
	if f.EntityID != "" {
		clauses = append(clauses, entityColumn+" = ?")
		args = append(args, f.EntityID)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(f.To))
	}
	return strings.Join(clauses, " AND "), args
}

// decodeError marks a row whose stored value cannot be turned back into a
// domain value. Such rows are skipped rather than failing the whole read.
type decodeError struct {
	id    string
	field string
	err   error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode %s of %s: %v", e.field, e.id, e.err)
}

func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

func skipRow(ctx context.Context, recordType string, err error) {
	slog.WarnContext(ctx, "Skipping undecodable row", "type", recordType, "error", err)
	metrics.RecordsSkipped.WithLabelValues(recordType, "decode").Inc()
}

func decodeAmount(id, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &decodeError{id: id, field: "amount", err: err}
	}
	return d, nil
}

func decodeTime(id, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand or by other tools
		if t2, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
			return t2.UTC(), nil
		}
		return time.Time{}, &decodeError{id: id, field: "created_at", err: err}
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}
