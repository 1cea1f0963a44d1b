package repository

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"txtinspect/internal/models"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

//go:embed migrations
var migrations embed.FS

// ErrJobNotFound is returned for unknown job IDs
var ErrJobNotFound = errors.New("job not found")

// Repository stores export history and evaluation jobs
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// New connects to the database and runs pending migrations. dsn is a file
// path for SQLite and a connection URL for PostgreSQL.
func New(dbType, dsn string, logger *zap.Logger) (*Repository, error) {
	if dbType == "" {
		dbType = TypeSQLite
	}
	if dbType != TypeSQLite && dbType != TypePostgres {
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	// Registered under "sqlite" rather than "sqlite3", which sqlx does not know
	sqlx.BindDriver(TypeSQLite, sqlx.QUESTION)

	db, err := sqlx.Connect(dbType, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbType == TypeSQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := migrateDB(db, dbType); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Repository initialized", zap.String("type", dbType))

	return &Repository{
		db:     db,
		logger: logger,
	}, nil
}

func migrateDB(db *sqlx.DB, dbType string) error {
	var (
		driver database.Driver
		err    error
	)
	switch dbType {
	case TypePostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance: %w", err)
	}

	source, err := iofs.New(migrations, "migrations/"+dbType)
	if err != nil {
		return fmt.Errorf("couldn't open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	// m.Close would also close db, so only the source is released
	defer source.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SaveExport records one export
func (r *Repository) SaveExport(exp *models.ExportRecord) error {
	query := r.db.Rebind(`
		INSERT INTO exports (
			session_id, file_name, rows_in, rows_out, dropped, relabeled, bytes, exported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRow(query,
		exp.SessionID,
		exp.FileName,
		exp.RowsIn,
		exp.RowsOut,
		exp.Dropped,
		exp.Relabeled,
		exp.Bytes,
		exp.ExportedAt,
	).Scan(&exp.ID)
	if err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}
	return nil
}

// ListExports returns the most recent exports first; sessionID filters when non-empty
func (r *Repository) ListExports(sessionID string, limit int) ([]*models.ExportRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.db.Rebind(`
		SELECT id, session_id, file_name, rows_in, rows_out, dropped, relabeled, bytes, exported_at
		FROM exports
		WHERE (? = '' OR session_id = ?)
		ORDER BY exported_at DESC, id DESC
		LIMIT ?
	`)

	exports := []*models.ExportRecord{}
	if err := r.db.Select(&exports, query, sessionID, sessionID, limit); err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	return exports, nil
}

// CreateJob creates a new evaluation job
func (r *Repository) CreateJob(job *models.Job) error {
	_, err := r.db.NamedExec(`
		INSERT INTO jobs (id, session_id, status, total_count, created_at)
		VALUES (:id, :session_id, :status, :total_count, :created_at)
	`, job)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJob updates job progress and result
func (r *Repository) UpdateJob(job *models.Job) error {
	var result sql.NullString
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("failed to encode job result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	query := r.db.Rebind(`
		UPDATE jobs
		SET status = ?, processed_count = ?, failed_count = ?, completed_at = ?, error_message = ?, result = ?
		WHERE id = ?
	`)

	_, err := r.db.Exec(query, job.Status, job.ProcessedCount, job.FailedCount, job.CompletedAt, job.ErrorMessage, result, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (r *Repository) GetJob(jobID string) (*models.Job, error) {
	query := r.db.Rebind(`
		SELECT id, session_id, status, total_count, processed_count, failed_count,
		       created_at, completed_at, error_message, result
		FROM jobs
		WHERE id = ?
	`)

	job := &models.Job{}
	var result sql.NullString
	err := r.db.QueryRow(query, jobID).Scan(
		&job.ID,
		&job.SessionID,
		&job.Status,
		&job.TotalCount,
		&job.ProcessedCount,
		&job.FailedCount,
		&job.CreatedAt,
		&job.CompletedAt,
		&job.ErrorMessage,
		&result,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if result.Valid && result.String != "" {
		job.Result = &models.EvaluationResult{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
	}

	return job, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
