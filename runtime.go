package chatflow

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/chatflow/chatflow/model"
)

// Runtime consumes inbound events from the queue and feeds them to the
// engine with a fixed pool of workers. One event is fully handled -
// continuation chain included - before its worker takes the next.
type Runtime struct {
	service *Service
	workers int
	wg      sync.WaitGroup

	mux     sync.Mutex
	started bool
}

// Runtime creates the worker runtime over the service's queue.
func (s *Service) Runtime() *Runtime {
	return &Runtime{service: s, workers: s.config.Workers}
}

// Publish enqueues an inbound event for asynchronous handling.
func (r *Runtime) Publish(ctx context.Context, inbound *model.Inbound) error {
	if inbound == nil {
		return errors.New("inbound is required")
	}
	return r.service.queue.Publish(ctx, inbound)
}

// Start launches the workers. They stop when ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.started {
		return errors.New("runtime already started")
	}
	r.started = true
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	return nil
}

// Wait blocks until all workers have exited.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

func (r *Runtime) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		message, err := r.service.queue.Consume(ctx)
		if err != nil {
			return
		}
		inbound := message.T()
		if err := r.service.HandleInbound(ctx, inbound); err != nil {
			r.service.logger.Error("failed to handle inbound event",
				zap.String("uniqueId", inbound.UniqueID()),
				zap.Error(err))
			_ = message.Nack(err)
			continue
		}
		_ = message.Ack()
	}
}
