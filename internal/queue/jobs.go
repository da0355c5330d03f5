package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

const (
	// ReanchorBatchTask is scheduled when a registration had to fall back to
	// a locally synthesized anchor reference.
	ReanchorBatchTask = "batch:reanchor"
)

// ReanchorPayload is serialized into the task payload so the worker knows
// which batch to anchor again.
type ReanchorPayload struct {
	BatchID string `json:"batch_id"`
}

// EnqueueReanchor enqueues a re-anchor attempt for a batch.
func EnqueueReanchor(ctx context.Context, client *asynq.Client, payload ReanchorPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ReanchorBatchTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue reanchor task: %w", err)
	}
	return nil
}

// Scheduler adapts an asynq client to the registration service's scheduling
// contract. Enqueue failures are logged and dropped: the fallback reference
// already satisfies the "every batch has a traceable reference" guarantee.
type Scheduler struct {
	client *asynq.Client
}

// NewScheduler wraps an asynq client.
func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{client: client}
}

// Schedule enqueues a re-anchor attempt.
func (s *Scheduler) Schedule(ctx context.Context, batchID string) {
	if err := EnqueueReanchor(ctx, s.client, ReanchorPayload{BatchID: batchID}); err != nil {
		log.Printf("schedule reanchor for %s: %v", batchID, err)
	}
}
