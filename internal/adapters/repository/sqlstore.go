package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/pkg/metrics"
)

// schemaVersion is the current schema version. Bump it when the schema changes.
const schemaVersion = 1

const riderColumns = `r.id, r.first_name, r.last_name, COALESCE(r.national_id, ''),
	COALESCE(r.birth_year, 0), COALESCE(r.email, ''), COALESCE(r.club_id, 0), COALESCE(r.gender, ''),
	(SELECT COUNT(*) FROM results res WHERE res.rider_id = r.id)`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is a Store backed by database/sql (SQLite or PostgreSQL).
type SQLStore struct {
	db              *sql.DB
	dialect         dialect
	dependentTables []string
}

// Open returns the Store for driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	if driver == DriverMemory {
		return NewMemoryStore(), nil
	}
	return OpenSQL(ctx, driver, dsn, opts...)
}

// OpenSQL connects to the database and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	s := &SQLStore{dialect: d, dependentTables: defaultDependentTables}
	for _, opt := range opts {
		opt(s)
	}

	if driver == DriverSQLite {
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.driver, err)
	}
	if s.dialect.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.dialect.maxOpenConns)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, s.dialect.rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertRider stores r and returns its id. A non-zero r.ID is kept.
func (s *SQLStore) InsertRider(ctx context.Context, r model.Rider) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	columns := "first_name, last_name, national_id, birth_year, email, club_id, gender"
	args := []any{
		r.FirstName,
		r.LastName,
		nullableString(r.NationalID),
		nullableInt(int64(r.BirthYear)),
		nullableString(r.Email),
		nullableInt(r.ClubID),
		nullableString(r.Gender),
	}
	if r.ID != 0 {
		columns = "id, " + columns
		args = append([]any{r.ID}, args...)
	}
	query := `INSERT INTO riders (` + columns + `) VALUES (` + makePlaceholders(len(args)) + `) RETURNING id`

	var id int64
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert rider: %w", err)
	}
	return id, nil
}

// InsertResult stores res and returns its id.
func (s *SQLStore) InsertResult(ctx context.Context, res model.Result) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		s.dialect.rebind(`INSERT INTO results (rider_id, event_id, position, race_date) VALUES (?, ?, ?, ?) RETURNING id`),
		res.RiderID,
		res.EventID,
		res.Position,
		nullableTime(res.RaceDate),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	return id, nil
}

// GetRider returns a rider with its result count.
func (s *SQLStore) GetRider(ctx context.Context, id int64) (model.Rider, error) {
	return s.getRider(ctx, s.db, id)
}

func (s *SQLStore) getRider(ctx context.Context, q querier, id int64) (model.Rider, error) {
	row := q.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+riderColumns+` FROM riders r WHERE r.id = ?`), id)
	r, err := scanRider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rider{}, fmt.Errorf("rider %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Rider{}, fmt.Errorf("get rider: %w", err)
	}
	return r, nil
}

// ListRidersByStrongID returns riders that carry a national id, ordered by id.
func (s *SQLStore) ListRidersByStrongID(ctx context.Context) ([]model.Rider, error) {
	return s.listRiders(ctx, `WHERE r.national_id IS NOT NULL AND r.national_id <> '' ORDER BY r.id`)
}

// ListRidersByName returns every rider ordered by last name, first name, id.
func (s *SQLStore) ListRidersByName(ctx context.Context) ([]model.Rider, error) {
	return s.listRiders(ctx, `ORDER BY r.last_name, r.first_name, r.id`)
}

// ListAllRidersForPhoneticScan returns every rider ordered by id.
func (s *SQLStore) ListAllRidersForPhoneticScan(ctx context.Context) ([]model.Rider, error) {
	return s.listRiders(ctx, `ORDER BY r.id`)
}

func (s *SQLStore) listRiders(ctx context.Context, clause string) ([]model.Rider, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+riderColumns+` FROM riders r `+clause)
	if err != nil {
		return nil, fmt.Errorf("list riders: %w", err)
	}
	defer rows.Close()

	var riders []model.Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rider: %w", err)
		}
		riders = append(riders, r)
	}
	return riders, rows.Err()
}

// ResultsByRider returns the results owned by a rider ordered by id.
func (s *SQLStore) ResultsByRider(ctx context.Context, riderID int64) ([]model.Result, error) {
	rows, err := s.db.QueryContext(
		ctx,
		s.dialect.rebind(`SELECT id, rider_id, event_id, position, COALESCE(race_date, '') FROM results WHERE rider_id = ? ORDER BY id`),
		riderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []model.Result
	for rows.Next() {
		var (
			res      model.Result
			raceDate string
		)
		if err := rows.Scan(&res.ID, &res.RiderID, &res.EventID, &res.Position, &raceDate); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.RaceDate = parseTime(raceDate)
		out = append(out, res)
	}
	return out, rows.Err()
}

// MergeLog returns the audit trail ordered by insertion.
func (s *SQLStore) MergeLog(ctx context.Context) ([]model.MergeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, canonical_id, duplicate_id, strategy, moved, merged_at FROM merge_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query merge log: %w", err)
	}
	defer rows.Close()

	var out []model.MergeLogEntry
	for rows.Next() {
		var (
			e        model.MergeLogEntry
			strategy string
			mergedAt string
		)
		if err := rows.Scan(&e.RunID, &e.CanonicalID, &e.DuplicateID, &strategy, &e.Moved, &mergedAt); err != nil {
			return nil, fmt.Errorf("scan merge log: %w", err)
		}
		e.Strategy = model.Strategy(strategy)
		e.MergedAt = parseTime(mergedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of live riders.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM riders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count riders: %w", err)
	}
	return n, nil
}

// WithinTx runs fn inside a database transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type sqlTx struct {
	store *SQLStore
	tx    *sql.Tx
}

func (t *sqlTx) GetRider(ctx context.Context, id int64) (model.Rider, error) {
	return t.store.getRider(ctx, t.tx, id)
}

func (t *sqlTx) ReassignOwnership(ctx context.Context, oldID, newID int64) (int64, error) {
	var moved int64
	for _, table := range t.store.dependentTables {
		res, err := t.tx.ExecContext(ctx, t.store.dialect.rebind(`UPDATE `+table+` SET rider_id = ? WHERE rider_id = ?`), newID, oldID)
		if err != nil {
			return moved, fmt.Errorf("reassign %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return moved, fmt.Errorf("reassign %s rows affected: %w", table, err)
		}
		moved += n
	}
	return moved, nil
}

func (t *sqlTx) UpdateRiderFields(ctx context.Context, id int64, fields model.RiderFields) error {
	if fields.IsEmpty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if fields.NationalID != nil {
		sets = append(sets, "national_id = ?")
		args = append(args, nullableString(*fields.NationalID))
	}
	if fields.BirthYear != nil {
		sets = append(sets, "birth_year = ?")
		args = append(args, nullableInt(int64(*fields.BirthYear)))
	}
	if fields.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, nullableString(*fields.Email))
	}
	if fields.ClubID != nil {
		sets = append(sets, "club_id = ?")
		args = append(args, nullableInt(*fields.ClubID))
	}
	if fields.Gender != nil {
		sets = append(sets, "gender = ?")
		args = append(args, nullableString(*fields.Gender))
	}
	args = append(args, id)

	res, err := t.tx.ExecContext(ctx, t.store.dialect.rebind(`UPDATE riders SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("update rider: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update rider %d: %w", id, ErrNotFound)
	}
	return nil
}

func (t *sqlTx) DeleteRider(ctx context.Context, id int64) error {
	for _, table := range t.store.dependentTables {
		var n int
		if err := t.tx.QueryRowContext(ctx, t.store.dialect.rebind(`SELECT COUNT(*) FROM `+table+` WHERE rider_id = ?`), id).Scan(&n); err != nil {
			return fmt.Errorf("count %s references: %w", table, err)
		}
		if n > 0 {
			return fmt.Errorf("delete rider %d (%s): %w", id, table, ErrStillReferenced)
		}
	}
	res, err := t.tx.ExecContext(ctx, t.store.dialect.rebind(`DELETE FROM riders WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete rider: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete rider %d: %w", id, ErrNotFound)
	}
	return nil
}

func (t *sqlTx) RecordMerge(ctx context.Context, entry model.MergeLogEntry) error {
	_, err := t.tx.ExecContext(
		ctx,
		t.store.dialect.rebind(`INSERT INTO merge_log (run_id, canonical_id, duplicate_id, strategy, moved, merged_at) VALUES (?, ?, ?, ?, ?, ?)`),
		entry.RunID,
		entry.CanonicalID,
		entry.DuplicateID,
		string(entry.Strategy),
		entry.Moved,
		entry.MergedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record merge: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRider(row rowScanner) (model.Rider, error) {
	var (
		r         model.Rider
		birthYear int64
	)
	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &r.NationalID, &birthYear, &r.Email, &r.ClubID, &r.Gender, &r.ResultCount)
	if err != nil {
		return model.Rider{}, err
	}
	r.BirthYear = int(birthYear)
	return r, nil
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
