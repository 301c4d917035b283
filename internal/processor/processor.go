/**
 * Job Processor - OCR job lifecycle orchestration
 *
 * Owns one job end to end: fetch or accept the image, validate it, run the
 * recognition pipeline under the processing deadline, persist the result and
 * keep the job status row and event stream current. All failures leave as
 * coded ProcessingErrors so the queue layer can decide what is retryable.
 */

package processor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docuflow/ocr-worker/internal/errors"
	"github.com/docuflow/ocr-worker/internal/logging"
	"github.com/docuflow/ocr-worker/internal/ocr"
)

// Job statuses persisted to storage and published as events.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is the unit of work delivered by the queue. Exactly one of ImageURL
// and ImageData must be set.
type Job struct {
	JobID     string `json:"job_id"`
	ImageURL  string `json:"image_url,omitempty"`
	ImageData []byte `json:"image_data,omitempty"`
	Language  string `json:"language,omitempty"` // empty or "auto" engages detection
}

// Storage persists extraction results and job status.
type Storage interface {
	SaveExtraction(ctx context.Context, jobID string, result *ocr.Result) (string, error)
	UpdateJobStatus(ctx context.Context, jobID, status, errorMessage string) error
}

// EventPublisher broadcasts job lifecycle events. Optional.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, jobID, status string, payload map[string]interface{}) error
}

// Options carries processor tunables.
type Options struct {
	MaxImageBytes     int64
	ProcessingTimeout time.Duration
	DownloadRetries   int
}

// JobProcessor runs OCR jobs through the pipeline.
type JobProcessor struct {
	pipeline   *ocr.Pipeline
	storage    Storage
	events     EventPublisher
	httpClient *http.Client
	opts       Options
	logger     *logging.Logger
}

// NewJobProcessor creates a job processor. events may be nil.
func NewJobProcessor(pipeline *ocr.Pipeline, storage Storage, events EventPublisher, opts Options) *JobProcessor {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 52428800 // 50MB
	}
	if opts.ProcessingTimeout <= 0 {
		opts.ProcessingTimeout = 5 * time.Minute
	}
	if opts.DownloadRetries <= 0 {
		opts.DownloadRetries = 3
	}
	return &JobProcessor{
		pipeline: pipeline,
		storage:  storage,
		events:   events,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		opts:   opts,
		logger: logging.NewLogger("JobProcessor"),
	}
}

// ProcessJob runs one job to completion. The returned error is always a
// *ProcessingError; the job status row reflects the outcome either way.
func (p *JobProcessor) ProcessJob(ctx context.Context, job *Job) error {
	logger := p.logger.With(job.JobID)
	logger.Info("Processing job", "language", job.Language, "hasURL", job.ImageURL != "")

	p.setStatus(ctx, job.JobID, StatusProcessing, "", nil)

	data, perr := p.loadImage(ctx, job)
	if perr == nil {
		perr = p.validateImage(job.JobID, data)
	}

	var result *ocr.Result
	if perr == nil {
		result, perr = p.runPipeline(ctx, job, data)
	}

	var extractionID string
	if perr == nil {
		id, err := p.storage.SaveExtraction(ctx, job.JobID, result)
		if err != nil {
			perr = errors.NewStorageFailedError(job.JobID, err)
		} else {
			extractionID = id
		}
	}

	if perr != nil {
		logger.Error("Job failed", "code", string(errors.CodeOf(perr)), "error", perr.Error())
		p.setStatus(ctx, job.JobID, StatusFailed, perr.Error(), perr.ToMap())
		return perr
	}

	logger.Info("Job completed",
		"extractionId", extractionID,
		"language", result.Language,
		"variant", result.Variant,
		"textLength", result.Score.TextLength)
	p.setStatus(ctx, job.JobID, StatusCompleted, "", map[string]interface{}{
		"extraction_id": extractionID,
		"language":      result.Language,
		"variant":       result.Variant,
	})
	return nil
}

func (p *JobProcessor) runPipeline(ctx context.Context, job *Job, data []byte) (*ocr.Result, *errors.ProcessingError) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ProcessingTimeout)
	defer cancel()

	result, err := p.pipeline.ProcessBytes(ctx, data, job.Language)
	if err == nil {
		return result, nil
	}

	switch {
	case stderrors.Is(err, ocr.ErrEngineUnavailable):
		return nil, errors.NewEngineUnavailableError(job.JobID)
	case stderrors.Is(err, ocr.ErrLanguagePackMissing):
		return nil, errors.NewLangPackMissingError(job.JobID, job.Language)
	case stderrors.Is(err, context.DeadlineExceeded):
		return nil, errors.NewProcessingTimeoutError(job.JobID, p.opts.ProcessingTimeout, err)
	}
	return nil, errors.NewExtractionFailedError(job.JobID, err)
}

// loadImage returns the raw image bytes, downloading when the job carries a
// URL instead of inline data.
func (p *JobProcessor) loadImage(ctx context.Context, job *Job) ([]byte, *errors.ProcessingError) {
	if len(job.ImageData) > 0 {
		return job.ImageData, nil
	}
	if job.ImageURL == "" {
		return nil, errors.NewInputInvalidError(job.JobID, "no image data or URL provided", nil)
	}

	var lastErr error
	for attempt := 1; attempt <= p.opts.DownloadRetries; attempt++ {
		data, err := p.download(ctx, job.ImageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		p.logger.Warn("Image download failed",
			"jobId", job.JobID,
			"attempt", attempt,
			"error", err.Error())

		if attempt < p.opts.DownloadRetries {
			select {
			case <-ctx.Done():
				return nil, errors.NewInputInvalidError(job.JobID, "download cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return nil, errors.NewInputInvalidError(job.JobID, "failed to download image", lastErr)
}

func (p *JobProcessor) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.opts.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	return data, nil
}

func (p *JobProcessor) validateImage(jobID string, data []byte) *errors.ProcessingError {
	if len(data) == 0 {
		return errors.NewInputInvalidError(jobID, "image is empty", nil)
	}
	if int64(len(data)) > p.opts.MaxImageBytes {
		return errors.NewInputInvalidError(jobID,
			fmt.Sprintf("image exceeds size limit of %d bytes", p.opts.MaxImageBytes), nil)
	}
	if mime := DetectImageMimeType(data); mime == "" {
		return errors.NewInputInvalidError(jobID, "unsupported image format", nil)
	}
	return nil
}

// setStatus updates the status row and, when configured, publishes the
// matching event. Status maintenance failures are logged, never fatal.
func (p *JobProcessor) setStatus(ctx context.Context, jobID, status, errorMessage string, payload map[string]interface{}) {
	if err := p.storage.UpdateJobStatus(ctx, jobID, status, errorMessage); err != nil {
		p.logger.Warn("Failed to update job status", "jobId", jobID, "status", status, "error", err.Error())
	}
	if p.events != nil {
		if err := p.events.PublishJobEvent(ctx, jobID, status, payload); err != nil {
			p.logger.Warn("Failed to publish job event", "jobId", jobID, "status", status, "error", err.Error())
		}
	}
}

// imageMagic maps leading byte signatures to MIME types.
var imageMagic = []struct {
	prefix []byte
	mime   string
}{
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("BM"), "image/bmp"},
	{[]byte{0x49, 0x49, 0x2A, 0x00}, "image/tiff"},
	{[]byte{0x4D, 0x4D, 0x00, 0x2A}, "image/tiff"},
}

// DetectImageMimeType identifies a supported image format from its magic
// bytes, returning "" for anything unrecognized.
func DetectImageMimeType(data []byte) string {
	for _, m := range imageMagic {
		if bytes.HasPrefix(data, m.prefix) {
			return m.mime
		}
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	return ""
}
