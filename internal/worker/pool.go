// Package worker runs per-channel pools of delivery workers fed by the
// channel's RabbitMQ delivery queue.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notify-scheduler/internal/model"
	"github.com/aliskhannn/notify-scheduler/internal/rabbitmq/queue"
)

//go:generate mockgen -source=pool.go -destination=../mocks/worker/mock.go -package=mocks

type taskSource interface {
	Consume(ctx context.Context, channel model.Channel, out chan<- queue.DeliveryTask, strategy retry.Strategy) error
}

type taskHandler interface {
	HandleTask(ctx context.Context, worker string, task queue.DeliveryTask, strategy retry.Strategy)
}

type statusReader interface {
	Status(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error)
}

// Pool consumes one channel's delivery queue with a fixed number of
// workers. Each worker carries a stable identity under which its
// transitions are recorded.
type Pool struct {
	channel  model.Channel
	hostname string
	source   taskSource
	handler  taskHandler
	service  statusReader
}

func NewPool(channel model.Channel, hostname string, src taskSource, h taskHandler, s statusReader) *Pool {
	return &Pool{
		channel:  channel,
		hostname: hostname,
		source:   src,
		handler:  h,
		service:  s,
	}
}

// WorkerID builds the identity of one worker in the pool.
func (p *Pool) WorkerID(i int) string {
	return fmt.Sprintf("%s-worker-%d@%s", p.channel, i, p.hostname)
}

// Run consumes tasks until the context is cancelled. Tasks whose
// notification is already cancelled are skipped before any claim is
// attempted; the cached status makes that check cheap.
func (p *Pool) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	taskChan := make(chan queue.DeliveryTask, workerCount*10)

	go func() {
		if err := p.source.Consume(ctx, p.channel, taskChan, strategy); err != nil {
			// Workers keep draining what was already consumed; records
			// left scheduled are picked up by the reconciliation sweep.
			zlog.Logger.Error().Err(err).Str("channel", string(p.channel)).Msg("failed to consume delivery tasks")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)

		go func(worker string) {
			defer wg.Done()

			zlog.Logger.Info().Str("worker", worker).Msg("worker started")

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Info().Str("worker", worker).Msg("worker shutting down")
					return
				case task := <-taskChan:
					status, err := p.service.Status(ctx, strategy, task.ID)
					if err != nil {
						zlog.Logger.Error().Err(err).Str("id", task.ID.String()).Msg("failed to check status, claim will decide")
					} else if status == model.StatusCancelled || status.Terminal() {
						zlog.Logger.Debug().Str("id", task.ID.String()).Str("status", string(status)).Msg("skipping finished notification")
						continue
					}

					p.handler.HandleTask(ctx, worker, task, strategy)
				}
			}
		}(p.WorkerID(i))
	}

	wg.Wait()
	zlog.Logger.Info().Str("channel", string(p.channel)).Msg("worker pool stopped")
}
