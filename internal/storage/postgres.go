/**
 * PostgreSQL Storage - extraction results and job status persistence
 *
 * Stores the pipeline's output contract (full text, layout blocks, language,
 * variant, score components) and maintains the job status row the API layer
 * polls. Block layout is stored as JSONB so the API can return it untouched.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/docuflow/ocr-worker/internal/logging"
	"github.com/docuflow/ocr-worker/internal/ocr"
)

// ExtractionRecord is one persisted pipeline result.
type ExtractionRecord struct {
	ID             string      `json:"id"`
	JobID          string      `json:"job_id"`
	FullText       string      `json:"full_text"`
	Language       string      `json:"language"`
	Variant        string      `json:"variant"`
	Score          float64     `json:"score"`
	TextLength     int         `json:"text_length"`
	MeanConfidence float64     `json:"mean_confidence"`
	Blocks         []ocr.Block `json:"blocks"`
	CreatedAt      time.Time   `json:"created_at"`
}

// PostgresStorage handles PostgreSQL operations
type PostgresStorage struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(databaseURL string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{
		db:     db,
		logger: logging.NewLogger("PostgresStorage"),
	}, nil
}

// SaveExtraction persists one pipeline result and returns the extraction ID.
func (s *PostgresStorage) SaveExtraction(ctx context.Context, jobID string, result *ocr.Result) (string, error) {
	blocks, err := json.Marshal(result.Blocks)
	if err != nil {
		return "", fmt.Errorf("failed to marshal blocks: %w", err)
	}

	id := uuid.New().String()
	query := `
		INSERT INTO extractions (
			id, job_id, full_text, language, variant,
			score, text_length, mean_confidence, blocks, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	_, err = s.db.ExecContext(ctx, query,
		id,
		jobID,
		result.FullText,
		result.Language,
		result.Variant,
		sanitizeScore(result.Score.Score),
		result.Score.TextLength,
		sanitizeConfidence(result.Score.MeanConfidence),
		blocks,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save extraction: %w", err)
	}

	s.logger.Info("Extraction saved",
		"extractionId", id,
		"jobId", jobID,
		"textLength", result.Score.TextLength,
		"blocks", len(result.Blocks))
	return id, nil
}

// GetExtraction loads one extraction by ID.
func (s *PostgresStorage) GetExtraction(ctx context.Context, id string) (*ExtractionRecord, error) {
	query := `
		SELECT id, job_id, full_text, language, variant,
		       score, text_length, mean_confidence, blocks, created_at
		FROM extractions
		WHERE id = $1
	`

	var rec ExtractionRecord
	var blocks []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.JobID,
		&rec.FullText,
		&rec.Language,
		&rec.Variant,
		&rec.Score,
		&rec.TextLength,
		&rec.MeanConfidence,
		&blocks,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &rec.Blocks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blocks: %w", err)
		}
	}
	return &rec, nil
}

// GetExtractionByJobID loads the most recent extraction for a job.
func (s *PostgresStorage) GetExtractionByJobID(ctx context.Context, jobID string) (*ExtractionRecord, error) {
	query := `
		SELECT id FROM extractions
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var id string
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no extraction for job %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up extraction: %w", err)
	}
	return s.GetExtraction(ctx, id)
}

// UpdateJobStatus upserts the job status row.
func (s *PostgresStorage) UpdateJobStatus(ctx context.Context, jobID, status, errorMessage string) error {
	query := `
		INSERT INTO ocr_jobs (job_id, status, error_message, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())
		ON CONFLICT (job_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, jobID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	s.logger.Debug("Job status updated", "jobId", jobID, "status", status)
	return nil
}

// Ping checks database connectivity
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// sanitizeScore clamps a composite score into [0,1] and zeroes NaN/Inf so a
// bad value never poisons a row.
func sanitizeScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sanitizeConfidence clamps a mean confidence into [0,100].
func sanitizeConfidence(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
