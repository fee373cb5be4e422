/**
 * Storage Manager for the OCR worker
 *
 * Coordinates page storage across PostgreSQL (page results, jobs) and Qdrant (word index).
 * Words are indexed first; a failed page insert removes them again.
 */

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/ocr-worker/internal/ocr"
)

// pageStore is the relational side of the manager
type pageStore interface {
	UpdateJobStatus(ctx context.Context, update *JobUpdate) error
	InsertPageResult(ctx context.Context, rec *PageRecord) (time.Time, error)
	GetPageResult(ctx context.Context, pageID string) (*PageRecord, error)
	GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error)
	Ping(ctx context.Context) error
	Close() error
}

// wordIndex is the spatial side of the manager
type wordIndex interface {
	UpsertWords(ctx context.Context, points []*WordPoint) error
	NearestWords(ctx context.Context, pageID string, x, y float32, limit int) ([]*WordHit, error)
	DeletePage(ctx context.Context, pageID string) error
	Close() error
}

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres pageStore
	qdrant   wordIndex

	// kept for stats
	pgClient     *PostgresClient
	qdrantClient *QdrantClient
}

// ExtractionInput is a finished extraction ready to persist
type ExtractionInput struct {
	JobID       string
	Fingerprint string
	Result      *ocr.Result
}

// ExtractionOutput describes what was stored
type ExtractionOutput struct {
	PageID       string
	JobID        string
	IndexedWords int
	CreatedAt    time.Time
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	if err := postgres.EnsureSchema(context.Background()); err != nil {
		postgres.Close()
		return nil, err
	}

	qdrant, err := NewQdrantClient(qdrantAddress, qdrantCollection)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return &StorageManager{
		postgres:     postgres,
		qdrant:       qdrant,
		pgClient:     postgres,
		qdrantClient: qdrant,
	}, nil
}

// StoreExtraction stores a page result and indexes its words
func (sm *StorageManager) StoreExtraction(ctx context.Context, input *ExtractionInput) (*ExtractionOutput, error) {
	if input == nil || input.Result == nil {
		return nil, fmt.Errorf("input is required")
	}

	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	pageID := uuid.New().String()
	points := wordPoints(pageID, input.JobID, input.Result)

	// Step 1: index words (fails fast before anything relational is written)
	if err := sm.qdrant.UpsertWords(ctx, points); err != nil {
		return nil, fmt.Errorf("failed to index words in Qdrant: %w", err)
	}

	// Step 2: store the page
	rec := &PageRecord{
		ID:          pageID,
		JobID:       input.JobID,
		Fingerprint: input.Fingerprint,
		Structured:  input.Result.Structured,
		Text:        input.Result.Text,
	}

	if input.Result.Structured {
		lines, err := json.Marshal(input.Result.Lines)
		if err != nil {
			sm.rollback(ctx, pageID, len(points))
			return nil, fmt.Errorf("failed to marshal page lines: %w", err)
		}
		rec.Lines = lines
	}

	createdAt, err := sm.postgres.InsertPageResult(ctx, rec)
	if err != nil {
		sm.rollback(ctx, pageID, len(points))
		return nil, fmt.Errorf("failed to store page in PostgreSQL: %w", err)
	}

	return &ExtractionOutput{
		PageID:       pageID,
		JobID:        input.JobID,
		IndexedWords: len(points),
		CreatedAt:    createdAt,
	}, nil
}

// rollback removes words indexed for a page that could not be stored
func (sm *StorageManager) rollback(ctx context.Context, pageID string, indexed int) {
	if indexed == 0 {
		return
	}
	_ = sm.qdrant.DeletePage(ctx, pageID)
}

// GetPage retrieves a stored page and decodes its lines
func (sm *StorageManager) GetPage(ctx context.Context, pageID string) (*PageRecord, *ocr.Result, error) {
	rec, err := sm.postgres.GetPageResult(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}

	res := &ocr.Result{Structured: rec.Structured, Text: rec.Text}
	if len(rec.Lines) > 0 {
		if err := json.Unmarshal(rec.Lines, &res.Lines); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal page lines: %w", err)
		}
	}

	return rec, res, nil
}

// NearestWords finds the words of a page closest to (x, y)
func (sm *StorageManager) NearestWords(ctx context.Context, pageID string, x, y float32, limit int) ([]*WordHit, error) {
	return sm.qdrant.NearestWords(ctx, pageID, x, y, limit)
}

// Ping checks PostgreSQL connectivity
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	if sm.pgClient == nil || sm.qdrantClient == nil {
		return nil, fmt.Errorf("stats unavailable")
	}

	pgStats := sm.pgClient.GetStats()

	qdrantStats, err := sm.qdrantClient.GetCollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

// wordPoints flattens a structured result into index points
func wordPoints(pageID, jobID string, res *ocr.Result) []*WordPoint {
	if !res.Structured {
		return nil
	}

	points := make([]*WordPoint, 0, res.Lines.WordCount())
	for _, line := range res.Lines {
		for _, w := range line.Text {
			points = append(points, &WordPoint{
				ID:     uuid.New().String(),
				PageID: pageID,
				JobID:  jobID,
				Line:   line.Line,
				Word:   w,
			})
		}
	}
	return points
}

// sanitizeJSONForPostgres removes escapes JSONB rejects (\u0000) and blanks
// the remaining control character escapes. Escapes are walked pairwise so an
// escaped backslash followed by "u00XX" text is left alone.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	out := make([]byte, 0, len(jsonBytes))
	for i := 0; i < len(jsonBytes); i++ {
		b := jsonBytes[i]
		if b != '\\' || i+1 >= len(jsonBytes) {
			out = append(out, b)
			continue
		}

		if isControlEscape(jsonBytes[i:]) {
			if !bytes.HasPrefix(jsonBytes[i:], []byte(`\u0000`)) {
				out = append(out, ' ')
			}
			i += 5
			continue
		}

		out = append(out, b, jsonBytes[i+1])
		i++
	}
	return out
}

// isControlEscape reports whether p starts with \u0000 through \u001f
func isControlEscape(p []byte) bool {
	if len(p) < 6 || p[1] != 'u' || p[2] != '0' || p[3] != '0' {
		return false
	}
	if p[4] != '0' && p[4] != '1' {
		return false
	}
	c := p[5]
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// stripNUL removes NUL bytes, which TEXT columns reject
func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
