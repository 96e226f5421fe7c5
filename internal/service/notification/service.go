// Package notification implements the delivery state machine: it owns
// every status transition of a notification and the retry, cancel and
// force-delivery logic around them.
//
// All transitions go through the repository's conditional
// compare-and-set, so concurrent workers, cancellation and forced
// delivery serialize on the database row rather than on process-local
// locks. No lock is held while a sender call is in flight.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notify-scheduler/internal/model"
	"github.com/aliskhannn/notify-scheduler/internal/rabbitmq/queue"
	"github.com/aliskhannn/notify-scheduler/internal/repository/notification"
	"github.com/aliskhannn/notify-scheduler/internal/timewindow"
	"github.com/aliskhannn/notify-scheduler/pkg/delivery"
)

var (
	// ErrAlreadyProcessing rejects cancel/force on a notification
	// with an in-flight delivery attempt.
	ErrAlreadyProcessing = errors.New("notification is already processing")
	// ErrAlreadyTerminal rejects cancel/force on a delivered, failed
	// or cancelled notification.
	ErrAlreadyTerminal = errors.New("notification is in a terminal state")
	// ErrUnknownChannel is returned for a channel no sender is
	// registered for.
	ErrUnknownChannel = errors.New("unknown delivery channel")
)

//go:generate mockgen -source=service.go -destination=../../mocks/service/notification/mock.go -package=mocks

type notificationRepository interface {
	Create(ctx context.Context, n model.Notification) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (model.Notification, error)
	List(ctx context.Context, f notification.Filter, limit, offset int) ([]model.Notification, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next model.Status, upd notification.StatusUpdate) (bool, error)
	ListOverdueScheduled(ctx context.Context, cutoff time.Time, limit int) ([]model.Notification, error)
	ListStuck(ctx context.Context, status model.Status, cutoff time.Time, limit int) ([]model.Notification, error)
}

type taskPublisher interface {
	Enqueue(task queue.DeliveryTask, strategy retry.Strategy) error
}

type statusCache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

type transitionRecorder interface {
	Record(worker string, channel model.Channel, status model.Status)
}

// Sender is the per-channel delivery capability.
type Sender interface {
	Deliver(ctx context.Context, recipient, content string) error
}

// Options tunes the state machine.
type Options struct {
	MaxAttempts int           // attempts before a retryable failure becomes terminal
	RetryDelay  time.Duration // linear backoff base, next eta = now + RetryDelay*attempts
	Identity    string        // metrics identity for transitions not driven by a worker
	SweepGrace  time.Duration // how long a due scheduled record may sit unclaimed
	SweepLease  time.Duration // how long a processing claim is trusted before recovery
	SweepBatch  int           // records rescued per sweep and status
}

// ScheduleRequest carries the validated input of a schedule call.
type ScheduleRequest struct {
	RecipientID   string
	Content       string
	Channel       model.Channel
	Timezone      string
	ScheduledTime *time.Time // nil means "now"
	Priority      int
}

// View is the outward representation of a notification.
type View struct {
	model.Notification
	LocalScheduledTime string `json:"local_scheduled_time,omitempty"`
}

// Service is the delivery state machine.
type Service struct {
	repo     notificationRepository
	queue    taskPublisher
	cache    statusCache
	senders  map[model.Channel]Sender
	metrics  transitionRecorder
	resolver timewindow.Resolver
	opts     Options

	now func() time.Time
}

// NewService wires the state machine with its collaborators.
func NewService(
	repo notificationRepository,
	q taskPublisher,
	cache statusCache,
	senders map[model.Channel]Sender,
	metrics transitionRecorder,
	resolver timewindow.Resolver,
	opts Options,
) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}

	return &Service{
		repo:     repo,
		queue:    q,
		cache:    cache,
		senders:  senders,
		metrics:  metrics,
		resolver: resolver,
		opts:     opts,
		now:      time.Now,
	}
}

// Schedule creates a notification and commits it to the delivery
// pipeline: the effective delivery instant is resolved against the
// appropriate-hours window, the delivery task is enqueued with that
// instant as its eta, and only then does the record move from pending
// to scheduled. A crash in between leaves a pending record that the
// reconciliation sweep re-drives.
func (s *Service) Schedule(ctx context.Context, strategy retry.Strategy, req ScheduleRequest) (uuid.UUID, error) {
	if _, ok := s.senders[req.Channel]; !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownChannel, req.Channel)
	}

	instant, appropriate, err := s.resolver.Resolve(req.ScheduledTime, req.Timezone, s.now())
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve delivery time: %w", err)
	}

	n := model.Notification{
		RecipientID:         req.RecipientID,
		Content:             req.Content,
		Channel:             req.Channel,
		Status:              model.StatusPending,
		Timezone:            req.Timezone,
		ScheduledTime:       instant,
		AppropriateDelivery: appropriate,
		Priority:            req.Priority,
	}

	id, err := s.repo.Create(ctx, n)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create notification: %w", err)
	}

	s.cacheStatus(ctx, strategy, id, model.StatusPending)
	s.metrics.Record(s.opts.Identity, req.Channel, model.StatusPending)

	zlog.Logger.Info().
		Str("id", id.String()).
		Str("channel", string(req.Channel)).
		Time("eta", instant).
		Bool("appropriate", appropriate).
		Msg("notification created")

	task := queue.DeliveryTask{ID: id, Channel: req.Channel, ETA: instant}
	if err := s.queue.Enqueue(task, strategy); err != nil {
		// The record stays pending; the sweep re-enqueues it later.
		return id, fmt.Errorf("enqueue delivery task: %w", err)
	}

	if err := s.transition(ctx, strategy, s.opts.Identity, id, req.Channel,
		model.StatusPending, model.StatusScheduled, notification.StatusUpdate{}); err != nil {
		return id, err
	}

	return id, nil
}

// Claim moves a scheduled notification to processing on behalf of a
// worker. It reports false when another worker already claimed the
// record, it was cancelled, or it reached a terminal state: the caller
// must then discard the task, which is the defense against duplicate
// delivery under at-least-once queue semantics.
func (s *Service) Claim(ctx context.Context, strategy retry.Strategy, worker string, id uuid.UUID) (model.Notification, bool, error) {
	ok, err := s.repo.CompareAndSetStatus(ctx, id, model.StatusScheduled, model.StatusProcessing, notification.StatusUpdate{})
	if err != nil {
		return model.Notification{}, false, fmt.Errorf("claim notification: %w", err)
	}
	if !ok {
		return model.Notification{}, false, nil
	}

	n, err := s.repo.Get(ctx, id)
	if err != nil {
		// Claimed but unreadable; the processing lease sweep will
		// recover the record.
		return model.Notification{}, false, fmt.Errorf("load claimed notification: %w", err)
	}

	s.cacheStatus(ctx, strategy, id, model.StatusProcessing)
	s.metrics.Record(worker, n.Channel, model.StatusProcessing)

	return n, true, nil
}

// Deliver invokes the sender capability for the notification's
// channel. Callers must have claimed the record first; no state is
// touched here.
func (s *Service) Deliver(ctx context.Context, n model.Notification) error {
	sender, ok := s.senders[n.Channel]
	if !ok {
		return delivery.Permanent(fmt.Errorf("%w: %s", ErrUnknownChannel, n.Channel))
	}

	return sender.Deliver(ctx, n.RecipientID, n.Content)
}

// Complete finalizes a successful delivery attempt.
func (s *Service) Complete(ctx context.Context, strategy retry.Strategy, worker string, n model.Notification) error {
	return s.transition(ctx, strategy, worker, n.ID, n.Channel,
		model.StatusProcessing, model.StatusDelivered,
		notification.StatusUpdate{IncrementAttempt: true, ClearLastError: true})
}

// Retry finalizes a failed delivery attempt. Permanent failures and
// exhausted retry budgets become terminal failed; otherwise the
// notification is re-enqueued with linear backoff and returned to
// scheduled. The backoff task is enqueued before the transition
// commits, so a crash in between can at worst duplicate a task, never
// silently strand the record. It reports whether a retry was queued.
func (s *Service) Retry(ctx context.Context, strategy retry.Strategy, worker string, n model.Notification, cause error) (bool, error) {
	attempts := n.AttemptCount + 1
	lastError := cause.Error()

	if delivery.IsPermanent(cause) || attempts >= s.opts.MaxAttempts {
		zlog.Logger.Warn().
			Str("id", n.ID.String()).
			Int("attempts", attempts).
			Bool("permanent", delivery.IsPermanent(cause)).
			Err(cause).
			Msg("delivery failed terminally")

		err := s.transition(ctx, strategy, worker, n.ID, n.Channel,
			model.StatusProcessing, model.StatusFailed,
			notification.StatusUpdate{IncrementAttempt: true, SetLastError: &lastError})

		return false, err
	}

	eta := s.now().Add(s.opts.RetryDelay * time.Duration(attempts))

	task := queue.DeliveryTask{ID: n.ID, Channel: n.Channel, ETA: eta}
	if err := s.queue.Enqueue(task, strategy); err != nil {
		// The record stays processing; the lease sweep recovers it.
		return false, fmt.Errorf("enqueue retry task: %w", err)
	}

	zlog.Logger.Info().
		Str("id", n.ID.String()).
		Int("attempt", attempts).
		Time("eta", eta).
		Err(cause).
		Msg("delivery failed, retry scheduled")

	err := s.transition(ctx, strategy, worker, n.ID, n.Channel,
		model.StatusProcessing, model.StatusScheduled,
		notification.StatusUpdate{IncrementAttempt: true, SetLastError: &lastError, SetScheduledTime: &eta})

	return err == nil, err
}

// Cancel cancels a pending or scheduled notification. An in-flight or
// finished notification is rejected, never silently accepted. Under
// concurrent duplicates exactly one call changes state; the rest
// observe the rejection.
func (s *Service) Cancel(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error {
	for {
		n, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}

		switch n.Status {
		case model.StatusPending, model.StatusScheduled:
			ok, err := s.repo.CompareAndSetStatus(ctx, id, n.Status, model.StatusCancelled, notification.StatusUpdate{})
			if err != nil {
				return fmt.Errorf("cancel notification: %w", err)
			}
			if !ok {
				// Lost the race, re-read and classify.
				continue
			}

			s.cacheStatus(ctx, strategy, id, model.StatusCancelled)
			s.metrics.Record(s.opts.Identity, n.Channel, model.StatusCancelled)

			zlog.Logger.Info().Str("id", id.String()).Msg("notification cancelled")

			return nil
		case model.StatusProcessing:
			return ErrAlreadyProcessing
		default:
			return ErrAlreadyTerminal
		}
	}
}

// Force re-enqueues a pending or scheduled notification with an
// immediate eta, bypassing the appropriate-hours window. The stored
// scheduled_time and appropriate_delivery keep their originally
// computed values for audit. Ineligible states are rejected the same
// way Cancel rejects them.
func (s *Service) Force(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error {
	for {
		n, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}

		switch n.Status {
		case model.StatusScheduled:
			task := queue.DeliveryTask{ID: id, Channel: n.Channel, ETA: s.now()}
			if err := s.queue.Enqueue(task, strategy); err != nil {
				return fmt.Errorf("enqueue forced delivery: %w", err)
			}

			zlog.Logger.Info().Str("id", id.String()).Msg("forced immediate delivery")

			return nil
		case model.StatusPending:
			ok, err := s.repo.CompareAndSetStatus(ctx, id, model.StatusPending, model.StatusScheduled, notification.StatusUpdate{})
			if err != nil {
				return fmt.Errorf("force notification: %w", err)
			}
			if ok {
				s.cacheStatus(ctx, strategy, id, model.StatusScheduled)
				s.metrics.Record(s.opts.Identity, n.Channel, model.StatusScheduled)
			}
			// Re-read either way: the record may have moved under us.
		case model.StatusProcessing:
			return ErrAlreadyProcessing
		default:
			return ErrAlreadyTerminal
		}
	}
}

// Get returns the full notification view.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}

	return s.view(n), nil
}

// Status returns just the current status, served from the cache when
// possible. Workers use it as a cheap pre-claim cancellation check.
func (s *Service) Status(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error) {
	cached, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err == nil {
		if status, perr := model.ParseStatus(cached); perr == nil {
			return status, nil
		}
	}

	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	s.cacheStatus(ctx, strategy, id, n.Status)

	return n.Status, nil
}

// List returns notification views matching the filter, newest first.
func (s *Service) List(ctx context.Context, f notification.Filter, limit, offset int) ([]View, error) {
	items, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	views := make([]View, 0, len(items))
	for _, n := range items {
		views = append(views, s.view(n))
	}

	return views, nil
}

// RequeueStuck is the reconciliation sweep. It rescues three kinds of
// strays left behind by crashes: pending records whose scheduled
// transition never committed, scheduled records whose delivery task is
// presumed lost, and processing records whose worker died mid-attempt.
// It returns the number of records re-driven.
func (s *Service) RequeueStuck(ctx context.Context, strategy retry.Strategy) (int, error) {
	now := s.now()
	requeued := 0

	pending, err := s.repo.ListStuck(ctx, model.StatusPending, now.Add(-s.opts.SweepGrace), s.opts.SweepBatch)
	if err != nil {
		return requeued, fmt.Errorf("list stuck pending: %w", err)
	}

	for _, n := range pending {
		task := queue.DeliveryTask{ID: n.ID, Channel: n.Channel, ETA: n.ScheduledTime}
		if err := s.queue.Enqueue(task, strategy); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("sweep: failed to enqueue pending record")
			continue
		}

		if err := s.transition(ctx, strategy, s.opts.Identity, n.ID, n.Channel,
			model.StatusPending, model.StatusScheduled, notification.StatusUpdate{}); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("sweep: failed to schedule pending record")
			continue
		}

		requeued++
	}

	overdue, err := s.repo.ListOverdueScheduled(ctx, now.Add(-s.opts.SweepGrace), s.opts.SweepBatch)
	if err != nil {
		return requeued, fmt.Errorf("list overdue scheduled: %w", err)
	}

	for _, n := range overdue {
		task := queue.DeliveryTask{ID: n.ID, Channel: n.Channel, ETA: now}
		if err := s.queue.Enqueue(task, strategy); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("sweep: failed to re-enqueue scheduled record")
			continue
		}

		// A duplicate task is harmless: the claim CAS deduplicates.
		requeued++
	}

	stalled, err := s.repo.ListStuck(ctx, model.StatusProcessing, now.Add(-s.opts.SweepLease), s.opts.SweepBatch)
	if err != nil {
		return requeued, fmt.Errorf("list stuck processing: %w", err)
	}

	for _, n := range stalled {
		if err := s.transition(ctx, strategy, s.opts.Identity, n.ID, n.Channel,
			model.StatusProcessing, model.StatusScheduled,
			notification.StatusUpdate{SetScheduledTime: &now}); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("sweep: failed to recover processing record")
			continue
		}

		task := queue.DeliveryTask{ID: n.ID, Channel: n.Channel, ETA: now}
		if err := s.queue.Enqueue(task, strategy); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("sweep: failed to enqueue recovered record")
			continue
		}

		requeued++
	}

	if requeued > 0 {
		zlog.Logger.Info().Int("requeued", requeued).Msg("reconciliation sweep re-drove stray notifications")
	}

	return requeued, nil
}

// transition applies one CAS transition with its cache write and
// metrics event. A CAS miss is not an error: the record moved on and
// monotonicity guarantees someone else finished the job.
func (s *Service) transition(
	ctx context.Context,
	strategy retry.Strategy,
	actor string,
	id uuid.UUID,
	channel model.Channel,
	expected, next model.Status,
	upd notification.StatusUpdate,
) error {
	ok, err := s.repo.CompareAndSetStatus(ctx, id, expected, next, upd)
	if err != nil {
		return fmt.Errorf("transition %s -> %s: %w", expected, next, err)
	}
	if !ok {
		zlog.Logger.Warn().
			Str("id", id.String()).
			Str("expected", string(expected)).
			Str("next", string(next)).
			Msg("transition skipped, status changed concurrently")

		return nil
	}

	s.cacheStatus(ctx, strategy, id, next)
	s.metrics.Record(actor, channel, next)

	return nil
}

// cacheStatus mirrors the status into Redis. Best effort: the cache is
// a fast path, never the source of truth.
func (s *Service) cacheStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status model.Status) {
	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}
}

func (s *Service) view(n model.Notification) View {
	v := View{Notification: n}

	if local, err := s.resolver.ToLocal(n.ScheduledTime, n.Timezone); err == nil {
		v.LocalScheduledTime = local
	}

	return v
}
