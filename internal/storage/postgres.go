/**
 * PostgreSQL Client for the OCR worker
 *
 * Handles job persistence and storage of extracted page results.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// schema is applied by EnsureSchema; every statement is idempotent
const schema = `
	CREATE SCHEMA IF NOT EXISTS ocr;

	CREATE TABLE IF NOT EXISTS ocr.extraction_jobs (
		id                 UUID PRIMARY KEY,
		user_id            TEXT NOT NULL DEFAULT 'anonymous',
		image_path         TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		mode               TEXT,
		line_count         INTEGER,
		word_count         INTEGER,
		page_id            UUID,
		error_code         TEXT,
		error_message      TEXT,
		processing_time_ms BIGINT,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS ocr.page_results (
		id          UUID PRIMARY KEY,
		job_id      UUID NOT NULL,
		fingerprint TEXT NOT NULL,
		structured  BOOLEAN NOT NULL,
		text        TEXT NOT NULL DEFAULT '',
		lines       JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS page_results_fingerprint_idx ON ocr.page_results (fingerprint);
`

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	UserID           string
	ImagePath        string
	Mode             string
	LineCount        int
	WordCount        int
	PageID           string
	ErrorCode        string
	ErrorMessage     string
	ProcessingTimeMs int64
	Metadata         map[string]interface{}
}

// PageRecord is a stored page result
type PageRecord struct {
	ID          string
	JobID       string
	Fingerprint string
	Structured  bool
	Text        string
	Lines       json.RawMessage
	CreatedAt   time.Time
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the ocr schema and tables when missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row; empty fields keep their stored values
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	query := `
		INSERT INTO ocr.extraction_jobs (
			id, user_id, image_path, status, mode,
			line_count, word_count, page_id,
			error_code, error_message, processing_time_ms, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($2, ''), 'anonymous'), $3, $4, NULLIF($5, ''),
			NULLIF($6, 0), NULLIF($7, 0),
			CASE WHEN $8 = '' THEN NULL ELSE $8::uuid END,
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, 0),
			COALESCE(NULLIF($12, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			user_id = CASE WHEN $2 = '' THEN ocr.extraction_jobs.user_id ELSE EXCLUDED.user_id END,
			image_path = COALESCE(NULLIF(EXCLUDED.image_path, ''), ocr.extraction_jobs.image_path),
			mode = COALESCE(EXCLUDED.mode, ocr.extraction_jobs.mode),
			line_count = COALESCE(EXCLUDED.line_count, ocr.extraction_jobs.line_count),
			word_count = COALESCE(EXCLUDED.word_count, ocr.extraction_jobs.word_count),
			page_id = COALESCE(EXCLUDED.page_id, ocr.extraction_jobs.page_id),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, ocr.extraction_jobs.processing_time_ms),
			metadata = ocr.extraction_jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.UserID,           // $2
		update.ImagePath,        // $3
		update.Status,           // $4
		update.Mode,             // $5
		update.LineCount,        // $6
		update.WordCount,        // $7
		update.PageID,           // $8
		update.ErrorCode,        // $9
		update.ErrorMessage,     // $10
		update.ProcessingTimeMs, // $11
		string(metadataJSON),    // $12
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// InsertPageResult stores one page result
func (p *PostgresClient) InsertPageResult(ctx context.Context, rec *PageRecord) (time.Time, error) {
	query := `
		INSERT INTO ocr.page_results (
			id, job_id, fingerprint, structured, text, lines, created_at
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::jsonb, NOW())
		RETURNING created_at
	`

	var lines interface{}
	if len(rec.Lines) > 0 {
		lines = string(sanitizeJSONForPostgres(rec.Lines))
	}

	var createdAt time.Time
	err := p.db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.JobID,
		rec.Fingerprint,
		rec.Structured,
		stripNUL(rec.Text),
		lines,
	).Scan(&createdAt)

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to store page result: %w", err)
	}

	return createdAt, nil
}

// GetPageResult retrieves a page result by ID
func (p *PostgresClient) GetPageResult(ctx context.Context, pageID string) (*PageRecord, error) {
	if pageID == "" {
		return nil, fmt.Errorf("page ID is required")
	}

	query := `
		SELECT id, job_id, fingerprint, structured, text, lines, created_at
		FROM ocr.page_results
		WHERE id = $1::uuid
	`

	var (
		rec   PageRecord
		lines []byte
	)
	err := p.db.QueryRowContext(ctx, query, pageID).Scan(
		&rec.ID, &rec.JobID, &rec.Fingerprint, &rec.Structured, &rec.Text, &lines, &rec.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page result not found: %s", pageID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get page result: %w", err)
	}

	rec.Lines = lines
	return &rec, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, user_id, image_path, status, mode,
			line_count, word_count, page_id,
			error_code, error_message, processing_time_ms,
			metadata, created_at, updated_at
		FROM ocr.extraction_jobs
		WHERE id = $1::uuid
	`

	var (
		id, userID, imagePath, status string
		mode, pageID                  sql.NullString
		lineCount, wordCount          sql.NullInt64
		errorCode, errorMessage       sql.NullString
		processingTimeMs              sql.NullInt64
		metadataJSON                  []byte
		createdAt, updatedAt          time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &userID, &imagePath, &status, &mode,
		&lineCount, &wordCount, &pageID,
		&errorCode, &errorMessage, &processingTimeMs,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"imagePath": imagePath,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if mode.Valid {
		result["mode"] = mode.String
	}
	if lineCount.Valid {
		result["lineCount"] = lineCount.Int64
	}
	if wordCount.Valid {
		result["wordCount"] = wordCount.Int64
	}
	if pageID.Valid {
		result["pageId"] = pageID.String
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
