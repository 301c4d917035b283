/**
 * Job Events - Redis status keys and pub/sub notifications
 *
 * Mirrors each job status change into a Redis key the API layer can poll and
 * publishes the same change on a per-job channel for subscribers. Event
 * delivery is best-effort: a publish failure never fails the job.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docuflow/ocr-worker/internal/logging"
)

const (
	statusKeyPrefix    = "ocr:job:"
	eventChannelPrefix = "ocr:events:"
	statusTTL          = 24 * time.Hour
)

// JobEvent is the wire format published on the per-job channel.
type JobEvent struct {
	JobID     string                 `json:"job_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Events publishes job lifecycle events through Redis.
type Events struct {
	client *redis.Client
	logger *logging.Logger
}

// NewEvents creates an event publisher from a Redis URL.
func NewEvents(redisURL string) (*Events, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Events{
		client: client,
		logger: logging.NewLogger("JobEvents"),
	}, nil
}

// PublishJobEvent writes the status key and publishes the event. Implements
// the processor's EventPublisher interface.
func (e *Events) PublishJobEvent(ctx context.Context, jobID, status string, payload map[string]interface{}) error {
	event := JobEvent{
		JobID:     jobID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := e.client.Set(ctx, statusKeyPrefix+jobID, data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to set status key: %w", err)
	}
	if err := e.client.Publish(ctx, eventChannelPrefix+jobID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	e.logger.Debug("Job event published", "jobId", jobID, "status", status)
	return nil
}

// GetJobStatus reads the latest status event for a job, or nil when none is
// recorded.
func (e *Events) GetJobStatus(ctx context.Context, jobID string) (*JobEvent, error) {
	data, err := e.client.Get(ctx, statusKeyPrefix+jobID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status key: %w", err)
	}

	var event JobEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &event, nil
}

// Close releases the Redis connection.
func (e *Events) Close() error {
	return e.client.Close()
}
