// Package queue distributes channel-specific delivery tasks over
// RabbitMQ with at-least-once semantics.
//
// Topology: a direct exchange routes tasks by channel into one
// delivery queue per channel. Each channel also has a wait queue with
// a short per-queue TTL that dead-letters back into the delivery
// queue; a task that is not yet due cycles through the wait queue
// until its eta arrives, so delays live in the broker rather than in
// worker timers. Poison messages rejected by the delivery queues end
// up in a shared dead-letter queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notify-scheduler/internal/model"
)

const (
	ExchangeName = "notify-exchange"
	DLQName      = "notify-dlq"
)

// DeliveryTask is the payload of a single delivery attempt.
type DeliveryTask struct {
	ID      uuid.UUID     `json:"id"`      // notification to deliver
	Channel model.Channel `json:"channel"` // routing channel
	ETA     time.Time     `json:"eta"`     // earliest instant the task may execute
}

// Due reports whether the task is eligible for execution at the given
// instant.
func (t DeliveryTask) Due(now time.Time) bool {
	return !t.ETA.After(now)
}

// DeliveryQueue owns the notify topology: one publisher on the
// exchange and one consumer per channel delivery queue.
type DeliveryQueue struct {
	publisher *rabbitmq.Publisher
	consumers map[model.Channel]*rabbitmq.Consumer
}

// QueueName returns the delivery queue name for a channel.
func QueueName(channel model.Channel) string {
	return "notify." + string(channel)
}

// WaitQueueName returns the wait queue name for a channel.
func WaitQueueName(channel model.Channel) string {
	return "notify.wait." + string(channel)
}

func waitRoutingKey(channel model.Channel) string {
	return "wait." + string(channel)
}

// NewDeliveryQueue declares the exchange, the per-channel delivery and
// wait queues and the shared DLQ, and wires publisher and consumers.
func NewDeliveryQueue(ch *rabbitmq.Channel, waitTick time.Duration) (*DeliveryQueue, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	_, err := qm.DeclareQueue(DLQName, rabbitmq.QueueConfig{Durable: true})
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	consumers := make(map[model.Channel]*rabbitmq.Consumer, len(model.Channels))

	for _, channel := range model.Channels {
		mainArgs := map[string]interface{}{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": DLQName,
		}

		mainQ, err := qm.DeclareQueue(QueueName(channel), rabbitmq.QueueConfig{
			Durable: true,
			Args:    mainArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare %s delivery queue: %w", channel, err)
		}

		if err := ch.QueueBind(mainQ.Name, string(channel), exchange.Name(), false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind %s delivery queue: %w", channel, err)
		}

		waitArgs := map[string]interface{}{
			"x-dead-letter-exchange":    ExchangeName,
			"x-dead-letter-routing-key": string(channel),
			"x-message-ttl":             int32(waitTick.Milliseconds()),
		}

		waitQ, err := qm.DeclareQueue(WaitQueueName(channel), rabbitmq.QueueConfig{
			Durable: true,
			Args:    waitArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare %s wait queue: %w", channel, err)
		}

		if err := ch.QueueBind(waitQ.Name, waitRoutingKey(channel), exchange.Name(), false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind %s wait queue: %w", channel, err)
		}

		consumers[channel] = rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(mainQ.Name))
	}

	pub := rabbitmq.NewPublisher(ch, exchange.Name())

	return &DeliveryQueue{publisher: pub, consumers: consumers}, nil
}

// Enqueue publishes a delivery task. Tasks that are already due go
// straight to the channel delivery queue; future tasks enter the wait
// loop and bounce until their eta arrives.
func (q *DeliveryQueue) Enqueue(task DeliveryTask, strategy retry.Strategy) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	key := string(task.Channel)
	if !task.Due(time.Now()) {
		key = waitRoutingKey(task.Channel)
	}

	return q.publisher.PublishWithRetry(body, key, "application/json", strategy)
}

// Consume forwards delivery tasks for one channel into out until the
// context is cancelled.
func (q *DeliveryQueue) Consume(ctx context.Context, channel model.Channel, out chan<- DeliveryTask, strategy retry.Strategy) error {
	consumer, ok := q.consumers[channel]
	if !ok {
		return fmt.Errorf("no consumer for channel %s", channel)
	}

	msgChan := make(chan []byte)

	go forwardTasks(ctx, msgChan, out)

	return consumer.ConsumeWithRetry(msgChan, strategy)
}

// forwardTasks decodes raw queue messages into delivery tasks. Both
// the receive and the send honor ctx so the goroutine never outlives
// the workers it feeds.
func forwardTasks(ctx context.Context, msgChan <-chan []byte, out chan<- DeliveryTask) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgChan:
			if !ok {
				return
			}

			var task DeliveryTask
			if err := json.Unmarshal(m, &task); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal delivery task")
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- task:
			}
		}
	}
}
