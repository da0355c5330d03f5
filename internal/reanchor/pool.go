// Package reanchor runs background re-anchor attempts inside the server
// process for deployments without Redis. Goroutines + channels (core Go
// concurrency primitives) power the implementation.
package reanchor

import (
	"context"
	"log"
)

// Job identifies one batch whose anchor should be retried.
type Job struct {
	BatchID string
}

// Pool consumes Jobs and replays the anchor attempt through the registration
// service. It deliberately mirrors the asynq worker's behavior minus
// durability: scheduled work is lost on restart, which is acceptable because
// the fallback reference already stored for the batch stays valid.
type Pool struct {
	run     func(ctx context.Context, batchID string) error
	queue   chan Job
	workers int
}

// New builds a Pool with queue capacity tied to worker count. run is the
// re-anchor operation, typically (*registry.Service).Reanchor.
func New(run func(ctx context.Context, batchID string) error, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		run: run,
		// Buffered so schedulers never block a registration request.
		queue:   make(chan Job, workers*4),
		workers: workers,
	}
}

// Start launches worker goroutines that live until the context closes.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Schedule queues a re-anchor attempt. When the buffer is full the job is
// dropped: the batch keeps its fallback reference.
func (p *Pool) Schedule(ctx context.Context, batchID string) {
	select {
	case p.queue <- Job{BatchID: batchID}:
	default:
		log.Printf("reanchor queue full, dropping job for %s", batchID)
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.run(ctx, job.BatchID); err != nil {
				log.Printf("reanchor %s: %v", job.BatchID, err)
			}
		}
	}
}
