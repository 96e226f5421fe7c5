// Package delivery consumes delivery tasks and drives one delivery
// attempt through the notification state machine.
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notify-scheduler/internal/model"
	"github.com/aliskhannn/notify-scheduler/internal/rabbitmq/queue"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/rabbitmq/handlers/delivery/mock.go -package=mocks

type deliveryService interface {
	Claim(ctx context.Context, strategy retry.Strategy, worker string, id uuid.UUID) (model.Notification, bool, error)
	Deliver(ctx context.Context, n model.Notification) error
	Complete(ctx context.Context, strategy retry.Strategy, worker string, n model.Notification) error
	Retry(ctx context.Context, strategy retry.Strategy, worker string, n model.Notification, cause error) (bool, error)
}

type taskRequeuer interface {
	Enqueue(task queue.DeliveryTask, strategy retry.Strategy) error
}

// Handler executes a single delivery attempt per consumed task.
type Handler struct {
	service deliveryService
	queue   taskRequeuer

	now func() time.Time
}

func NewHandler(svc deliveryService, q taskRequeuer) *Handler {
	return &Handler{
		service: svc,
		queue:   q,
		now:     time.Now,
	}
}

// HandleTask processes one delivery task on behalf of a worker. Tasks
// that are not yet due go back into the broker's wait loop instead of
// blocking the worker. Duplicate tasks lose the claim and are dropped;
// the rest run one attempt whose outcome feeds Complete or Retry.
func (h *Handler) HandleTask(ctx context.Context, worker string, task queue.DeliveryTask, strategy retry.Strategy) {
	if !task.Due(h.now()) {
		if err := h.queue.Enqueue(task, strategy); err != nil {
			zlog.Logger.Error().Err(err).
				Str("id", task.ID.String()).
				Msg("failed to requeue task ahead of eta, relying on sweep")
		}
		return
	}

	n, claimed, err := h.service.Claim(ctx, strategy, worker, task.ID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", task.ID.String()).Msg("failed to claim notification")
		return
	}
	if !claimed {
		// Someone else owns or finished it; duplicate tasks end here.
		zlog.Logger.Debug().Str("id", task.ID.String()).Msg("claim lost, dropping task")
		return
	}

	if err := h.service.Deliver(ctx, n); err != nil {
		if _, rerr := h.service.Retry(ctx, strategy, worker, n, err); rerr != nil {
			zlog.Logger.Error().Err(rerr).Str("id", n.ID.String()).Msg("failed to record delivery failure")
		}
		return
	}

	if err := h.service.Complete(ctx, strategy, worker, n); err != nil {
		zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to record delivery success")
		return
	}

	zlog.Logger.Info().
		Str("id", n.ID.String()).
		Str("worker", worker).
		Str("channel", string(n.Channel)).
		Msg("notification delivered")
}
