package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/queue"
	"github.com/naveenk2131/AgriTrust/internal/registry"
)

// Processor is plugged into the asynq worker loop. It retries external
// anchoring for batches that registered with a fallback reference.
type Processor struct {
	service *registry.Service
}

// NewProcessor constructs a worker processor.
func NewProcessor(service *registry.Service) *Processor {
	return &Processor{service: service}
}

// Handler registers the re-anchor job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReanchorBatchTask, p.handleReanchor)
	return mux
}

func (p *Processor) handleReanchor(ctx context.Context, task *asynq.Task) error {
	var payload queue.ReanchorPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := p.service.Reanchor(ctx, payload.BatchID); err != nil {
		if errors.Is(err, ledgerstore.ErrNotFound) {
			// The batch vanished from the store; retrying cannot help.
			log.Printf("reanchor skipped, batch %s not found", payload.BatchID)
			return nil
		}
		// Returning the error lets asynq apply its retry/backoff policy.
		return fmt.Errorf("reanchor batch %s: %w", payload.BatchID, err)
	}
	return nil
}
