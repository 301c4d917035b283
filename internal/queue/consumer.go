/**
 * Queue Consumer - asynq worker for OCR extraction tasks
 *
 * Consumes ocr:extract tasks and hands them to the job processor. Input and
 * capability errors are terminal: retrying cannot install a language pack or
 * fix a corrupt upload, so those codes skip asynq's retry schedule.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/docuflow/ocr-worker/internal/errors"
	"github.com/docuflow/ocr-worker/internal/logging"
	"github.com/docuflow/ocr-worker/internal/processor"
)

// TaskTypeExtract is the asynq task type for OCR extraction jobs.
const TaskTypeExtract = "ocr:extract"

// NewExtractTask builds an asynq task from a job.
func NewExtractTask(job *processor.Job) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskTypeExtract, payload), nil
}

// Consumer runs the asynq server for the OCR queue.
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor *processor.JobProcessor
	logger    *logging.Logger
}

// NewConsumer creates a queue consumer bound to the named queue.
func NewConsumer(redisURL, queueName string, concurrency int, proc *processor.JobProcessor) (*Consumer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName: 10,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// Exponential backoff with a 5 minute cap.
			delay := time.Duration(1<<uint(n)) * time.Second
			if delay > 5*time.Minute {
				delay = 5 * time.Minute
			}
			return delay
		},
	})

	c := &Consumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: proc,
		logger:    logging.NewLogger("QueueConsumer"),
	}
	c.mux.HandleFunc(TaskTypeExtract, c.handleExtract)
	return c, nil
}

// Start runs the server until Shutdown is called.
func (c *Consumer) Start() error {
	c.logger.Info("Starting queue consumer", "taskType", TaskTypeExtract)
	return c.server.Run(c.mux)
}

// Shutdown stops the server, waiting for in-flight tasks.
func (c *Consumer) Shutdown() {
	c.logger.Info("Shutting down queue consumer")
	c.server.Shutdown()
}

func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	var job processor.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}
	if job.JobID == "" {
		return fmt.Errorf("task payload missing job_id: %w", asynq.SkipRetry)
	}

	err := c.processor.ProcessJob(ctx, &job)
	if err == nil {
		return nil
	}

	if isTerminal(errors.CodeOf(err)) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// isTerminal reports whether an error code cannot be resolved by retrying.
func isTerminal(code errors.ErrorCode) bool {
	switch code {
	case errors.ErrorInputInvalid, errors.ErrorEngineUnavailable, errors.ErrorLangPackMissing:
		return true
	}
	return false
}
