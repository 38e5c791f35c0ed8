package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/artpar/appfleet/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dir := databaseDir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStoreError("NewSQLiteStore", "", "", fmt.Sprintf("failed to create database directory: %v", err), ErrConnectionFailed)
		}
	}

	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", fmt.Sprintf("failed to open database: %v", err), ErrConnectionFailed)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", fmt.Sprintf("failed to ping database: %v", err), ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// databaseDir returns the directory holding a file DSN, or "" for in-memory
// and URI DSNs.
func databaseDir(dsn string) string {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Plan Operations
// =============================================================================

// planRow represents a plan row in the database.
type planRow struct {
	ID           string  `db:"id"`
	Fingerprint  string  `db:"fingerprint"`
	MaxPriority  int     `db:"max_priority"`
	HashFamily   string  `db:"hash_family"`
	Status       string  `db:"status"`
	PlanJSON     string  `db:"plan_json"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	AppliedAt    *string `db:"applied_at"`
}

// ruleRow represents a plan_rules row in the database.
type ruleRow struct {
	PlanID   string `db:"plan_id"`
	AppName  string `db:"app_name"`
	Priority int    `db:"priority"`
	Position int    `db:"position"`
}

// SavePlan stores the plan and its rules atomically.
func (s *SQLiteStore) SavePlan(ctx context.Context, record *domain.PlanRecord) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.SavePlan(ctx, record)
	})
}

func (s *SQLiteStore) UpdatePlan(ctx context.Context, record *domain.PlanRecord) error {
	return updatePlan(ctx, s.db, record)
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*domain.PlanRecord, error) {
	return getPlan(ctx, s.db, id)
}

func (s *SQLiteStore) ListPlans(ctx context.Context, opts ListOptions) ([]domain.PlanRecord, error) {
	return listPlans(ctx, s.db, opts)
}

func (s *SQLiteStore) LatestAppliedPlan(ctx context.Context) (*domain.PlanRecord, error) {
	return latestAppliedPlan(ctx, s.db)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) SavePlan(ctx context.Context, record *domain.PlanRecord) error {
	return savePlan(ctx, s.tx, record)
}

func (s *txSQLiteStore) UpdatePlan(ctx context.Context, record *domain.PlanRecord) error {
	return updatePlan(ctx, s.tx, record)
}

func (s *txSQLiteStore) GetPlan(ctx context.Context, id string) (*domain.PlanRecord, error) {
	return getPlan(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListPlans(ctx context.Context, opts ListOptions) ([]domain.PlanRecord, error) {
	return listPlans(ctx, s.tx, opts)
}

func (s *txSQLiteStore) LatestAppliedPlan(ctx context.Context) (*domain.PlanRecord, error) {
	return latestAppliedPlan(ctx, s.tx)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func savePlan(ctx context.Context, exec executor, record *domain.PlanRecord) error {
	planJSON, err := json.Marshal(record.Plan)
	if err != nil {
		return NewStoreError("SavePlan", "plan", record.ID, "failed to serialize plan", ErrInvalidData)
	}

	query := `
		INSERT INTO plans (
			id, fingerprint, max_priority, hash_family, status, plan_json,
			error_message, created_at, updated_at, applied_at
		) VALUES (
			:id, :fingerprint, :max_priority, :hash_family, :status, :plan_json,
			:error_message, :created_at, :updated_at, :applied_at
		)`

	row := map[string]any{
		"id":            record.ID,
		"fingerprint":   record.Fingerprint,
		"max_priority":  record.MaxPriority,
		"hash_family":   record.HashFamily,
		"status":        string(record.Status),
		"plan_json":     string(planJSON),
		"error_message": record.ErrorMessage,
		"created_at":    formatTime(record.CreatedAt),
		"updated_at":    formatTime(record.UpdatedAt),
		"applied_at":    formatTimePtr(record.AppliedAt),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: plans.id") {
			return NewStoreError("SavePlan", "plan", record.ID, "plan already exists", ErrDuplicateID)
		}
		return NewStoreError("SavePlan", "plan", record.ID, err.Error(), err)
	}

	for i, r := range record.Rules {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO plan_rules (plan_id, app_name, priority, position) VALUES (?, ?, ?, ?)`,
			record.ID, r.App, r.Priority, i,
		)
		if err != nil {
			return NewStoreError("SavePlan", "plan", record.ID, fmt.Sprintf("failed to save rule %q: %v", r.App, err), err)
		}
	}

	return nil
}

func updatePlan(ctx context.Context, exec executor, record *domain.PlanRecord) error {
	query := `
		UPDATE plans SET
			status = :status,
			error_message = :error_message,
			updated_at = :updated_at,
			applied_at = :applied_at
		WHERE id = :id`

	row := map[string]any{
		"id":            record.ID,
		"status":        string(record.Status),
		"error_message": record.ErrorMessage,
		"updated_at":    formatTime(record.UpdatedAt),
		"applied_at":    formatTimePtr(record.AppliedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdatePlan", "plan", record.ID, err.Error(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdatePlan", "plan", record.ID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdatePlan", "plan", record.ID, "plan not found", ErrNotFound)
	}

	return nil
}

func getPlan(ctx context.Context, exec executor, id string) (*domain.PlanRecord, error) {
	var row planRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM plans WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPlan", "plan", id, "plan not found", ErrNotFound)
		}
		return nil, NewStoreError("GetPlan", "plan", id, err.Error(), err)
	}

	return loadPlan(ctx, exec, &row)
}

func listPlans(ctx context.Context, exec executor, opts ListOptions) ([]domain.PlanRecord, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM plans ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []planRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListPlans", "plan", "", err.Error(), err)
	}

	records := make([]domain.PlanRecord, 0, len(rows))
	for i := range rows {
		record, err := loadPlan(ctx, exec, &rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, nil
}

func latestAppliedPlan(ctx context.Context, exec executor) (*domain.PlanRecord, error) {
	query := `
		SELECT * FROM plans
		WHERE status = ?
		ORDER BY applied_at DESC, rowid DESC
		LIMIT 1`

	var row planRow
	err := exec.GetContext(ctx, &row, query, string(domain.PlanStatusApplied))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("LatestAppliedPlan", "plan", "", "no applied plan", ErrNotFound)
		}
		return nil, NewStoreError("LatestAppliedPlan", "plan", "", err.Error(), err)
	}

	return loadPlan(ctx, exec, &row)
}

// loadPlan converts a plan row and its rules into a PlanRecord.
func loadPlan(ctx context.Context, exec executor, row *planRow) (*domain.PlanRecord, error) {
	var rules []ruleRow
	err := exec.SelectContext(ctx, &rules,
		`SELECT * FROM plan_rules WHERE plan_id = ? ORDER BY position`, row.ID)
	if err != nil {
		return nil, NewStoreError("GetPlan", "plan", row.ID, "failed to load rules", err)
	}

	record := &domain.PlanRecord{
		ID:           row.ID,
		Fingerprint:  row.Fingerprint,
		MaxPriority:  row.MaxPriority,
		HashFamily:   row.HashFamily,
		Status:       domain.PlanStatus(row.Status),
		ErrorMessage: row.ErrorMessage,
		Rules:        make([]deployment.RuleRef, 0, len(rules)),
	}

	for _, r := range rules {
		record.Rules = append(record.Rules, deployment.RuleRef{App: r.AppName, Priority: r.Priority})
	}

	if err := json.Unmarshal([]byte(row.PlanJSON), &record.Plan); err != nil {
		return nil, NewStoreError("GetPlan", "plan", row.ID, "failed to parse plan", ErrInvalidData)
	}

	if record.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, NewStoreError("GetPlan", "plan", row.ID, "invalid created_at", ErrInvalidData)
	}
	if record.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, NewStoreError("GetPlan", "plan", row.ID, "invalid updated_at", ErrInvalidData)
	}
	if row.AppliedAt != nil {
		t, err := parseTime(*row.AppliedAt)
		if err != nil {
			return nil, NewStoreError("GetPlan", "plan", row.ID, "invalid applied_at", ErrInvalidData)
		}
		record.AppliedAt = &t
	}

	return record, nil
}

// =============================================================================
// Time Helpers
// =============================================================================

// timeLayout has a fixed-width fraction so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
