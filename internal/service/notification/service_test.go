package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/notify-scheduler/internal/metrics"
	mocks "github.com/aliskhannn/notify-scheduler/internal/mocks/service/notification"
	"github.com/aliskhannn/notify-scheduler/internal/model"
	"github.com/aliskhannn/notify-scheduler/internal/rabbitmq/queue"
	"github.com/aliskhannn/notify-scheduler/internal/repository/notification"
	"github.com/aliskhannn/notify-scheduler/internal/timewindow"
	"github.com/aliskhannn/notify-scheduler/pkg/delivery"
)

type fixture struct {
	repo    *mocks.MocknotificationRepository
	queue   *mocks.MocktaskPublisher
	cache   *mocks.MockstatusCache
	sender  *mocks.MockSender
	metrics *metrics.Aggregator
	svc     *Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &fixture{
		repo:    mocks.NewMocknotificationRepository(ctrl),
		queue:   mocks.NewMocktaskPublisher(ctrl),
		cache:   mocks.NewMockstatusCache(ctrl),
		sender:  mocks.NewMockSender(ctrl),
		metrics: metrics.New(64, time.Hour),
	}

	senders := map[model.Channel]Sender{
		model.ChannelPush:  f.sender,
		model.ChannelEmail: f.sender,
	}

	f.svc = NewService(f.repo, f.queue, f.cache, senders, f.metrics, timewindow.NewResolver(8, 22), opts)

	// Cache writes are best effort and incidental to most scenarios.
	f.cache.EXPECT().SetWithRetry(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	return f
}

func TestService_Schedule(t *testing.T) {
	f := newFixture(t, Options{Identity: "api@test"})

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) // inside the window
	f.svc.now = func() time.Time { return now }

	id := uuid.New()
	strategy := retry.Strategy{}

	var created model.Notification
	f.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n model.Notification) (uuid.UUID, error) {
			created = n
			return id, nil
		})
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: id, Channel: model.ChannelPush, ETA: now}, strategy).
		Return(nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), id, model.StatusPending, model.StatusScheduled, notification.StatusUpdate{}).
		Return(true, nil)

	got, err := f.svc.Schedule(context.Background(), strategy, ScheduleRequest{
		RecipientID: "device-1",
		Content:     "hello",
		Channel:     model.ChannelPush,
		Timezone:    "UTC",
		Priority:    5,
	})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.Equal(t, model.StatusPending, created.Status)
	assert.True(t, created.AppropriateDelivery)
	assert.Equal(t, now, created.ScheduledTime)

	snap := f.metrics.Snapshot("", "", 0)
	assert.Equal(t, uint64(1), snap.Total[model.StatusPending])
	assert.Equal(t, uint64(1), snap.Total[model.StatusScheduled])
}

func TestService_Schedule_AdvancesToWindowStart(t *testing.T) {
	f := newFixture(t, Options{Identity: "api@test"})

	// 23:00 London is past the window end; delivery moves to 08:00 next day.
	now := time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC) // 23:00 BST
	f.svc.now = func() time.Time { return now }

	id := uuid.New()
	want := time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC) // 08:00 BST

	var created model.Notification
	f.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n model.Notification) (uuid.UUID, error) {
			created = n
			return id, nil
		})
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: id, Channel: model.ChannelEmail, ETA: want}, gomock.Any()).
		Return(nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), id, model.StatusPending, model.StatusScheduled, notification.StatusUpdate{}).
		Return(true, nil)

	_, err := f.svc.Schedule(context.Background(), retry.Strategy{}, ScheduleRequest{
		RecipientID: "user@example.com",
		Content:     "hello",
		Channel:     model.ChannelEmail,
		Timezone:    "Europe/London",
	})
	require.NoError(t, err)

	assert.False(t, created.AppropriateDelivery)
	assert.Equal(t, want, created.ScheduledTime)
}

func TestService_Schedule_UnknownChannel(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Schedule(context.Background(), retry.Strategy{}, ScheduleRequest{
		RecipientID: "x",
		Content:     "hello",
		Channel:     model.Channel("fax"),
		Timezone:    "UTC",
	})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestService_Schedule_InvalidTimezone(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Schedule(context.Background(), retry.Strategy{}, ScheduleRequest{
		RecipientID: "x",
		Content:     "hello",
		Channel:     model.ChannelPush,
		Timezone:    "Mars/Olympus",
	})
	assert.ErrorIs(t, err, timewindow.ErrInvalidTimezone)
}

func TestService_Claim(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	stored := model.Notification{ID: id, Channel: model.ChannelPush, Status: model.StatusProcessing}

	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), id, model.StatusScheduled, model.StatusProcessing, notification.StatusUpdate{}).
		Return(true, nil)
	f.repo.EXPECT().Get(gomock.Any(), id).Return(stored, nil)

	n, claimed, err := f.svc.Claim(context.Background(), retry.Strategy{}, "push-worker-0", id)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, stored, n)

	snap := f.metrics.Snapshot("push-worker-0", "", 0)
	assert.Equal(t, uint64(1), snap.Total[model.StatusProcessing])
}

func TestService_Claim_LostRace(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), id, model.StatusScheduled, model.StatusProcessing, notification.StatusUpdate{}).
		Return(false, nil)

	_, claimed, err := f.svc.Claim(context.Background(), retry.Strategy{}, "push-worker-0", id)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestService_Deliver(t *testing.T) {
	f := newFixture(t, Options{})

	n := model.Notification{RecipientID: "device-1", Content: "hi", Channel: model.ChannelPush}
	f.sender.EXPECT().Deliver(gomock.Any(), "device-1", "hi").Return(nil)

	assert.NoError(t, f.svc.Deliver(context.Background(), n))
}

func TestService_Deliver_UnknownChannelIsPermanent(t *testing.T) {
	f := newFixture(t, Options{})

	err := f.svc.Deliver(context.Background(), model.Notification{Channel: model.Channel("fax")})
	assert.Error(t, err)
	assert.True(t, delivery.IsPermanent(err))
}

func TestService_Complete(t *testing.T) {
	f := newFixture(t, Options{})

	n := model.Notification{ID: uuid.New(), Channel: model.ChannelEmail}
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), n.ID, model.StatusProcessing, model.StatusDelivered,
			notification.StatusUpdate{IncrementAttempt: true, ClearLastError: true}).
		Return(true, nil)

	require.NoError(t, f.svc.Complete(context.Background(), retry.Strategy{}, "email-worker-1", n))

	snap := f.metrics.Snapshot("email-worker-1", model.ChannelEmail, 0)
	assert.Equal(t, uint64(1), snap.Total[model.StatusDelivered])
}

func TestService_Retry_Requeues(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryDelay: time.Minute})

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	n := model.Notification{ID: uuid.New(), Channel: model.ChannelPush, AttemptCount: 0}
	cause := errors.New("gateway timeout")
	eta := now.Add(time.Minute) // first attempt, linear backoff

	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: n.ID, Channel: model.ChannelPush, ETA: eta}, gomock.Any()).
		Return(nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), n.ID, model.StatusProcessing, model.StatusScheduled, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _, _ model.Status, upd notification.StatusUpdate) (bool, error) {
			assert.True(t, upd.IncrementAttempt)
			require.NotNil(t, upd.SetLastError)
			assert.Equal(t, cause.Error(), *upd.SetLastError)
			require.NotNil(t, upd.SetScheduledTime)
			assert.Equal(t, eta, *upd.SetScheduledTime)
			return true, nil
		})

	requeued, err := f.svc.Retry(context.Background(), retry.Strategy{}, "push-worker-0", n, cause)
	require.NoError(t, err)
	assert.True(t, requeued)
}

func TestService_Retry_BackoffGrowsWithAttempts(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 5, RetryDelay: time.Minute})

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	n := model.Notification{ID: uuid.New(), Channel: model.ChannelPush, AttemptCount: 2}
	eta := now.Add(3 * time.Minute)

	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: n.ID, Channel: model.ChannelPush, ETA: eta}, gomock.Any()).
		Return(nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), n.ID, model.StatusProcessing, model.StatusScheduled, gomock.Any()).
		Return(true, nil)

	requeued, err := f.svc.Retry(context.Background(), retry.Strategy{}, "push-worker-0", n, errors.New("busy"))
	require.NoError(t, err)
	assert.True(t, requeued)
}

func TestService_Retry_PermanentFailure(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryDelay: time.Minute})

	n := model.Notification{ID: uuid.New(), Channel: model.ChannelEmail, AttemptCount: 0}
	cause := delivery.Permanent(errors.New("mailbox does not exist"))

	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), n.ID, model.StatusProcessing, model.StatusFailed, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _, _ model.Status, upd notification.StatusUpdate) (bool, error) {
			assert.True(t, upd.IncrementAttempt)
			require.NotNil(t, upd.SetLastError)
			return true, nil
		})

	requeued, err := f.svc.Retry(context.Background(), retry.Strategy{}, "email-worker-0", n, cause)
	require.NoError(t, err)
	assert.False(t, requeued)

	snap := f.metrics.Snapshot("email-worker-0", "", 0)
	assert.Equal(t, uint64(1), snap.Total[model.StatusFailed])
}

func TestService_Retry_ExhaustedAttempts(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryDelay: time.Minute})

	// Third attempt of three: no further retries.
	n := model.Notification{ID: uuid.New(), Channel: model.ChannelPush, AttemptCount: 2}

	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), n.ID, model.StatusProcessing, model.StatusFailed, gomock.Any()).
		Return(true, nil)

	requeued, err := f.svc.Retry(context.Background(), retry.Strategy{}, "push-worker-0", n, errors.New("timeout"))
	require.NoError(t, err)
	assert.False(t, requeued)
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t, Options{Identity: "api@test"})

	id := uuid.New()
	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{ID: id, Channel: model.ChannelPush, Status: model.StatusScheduled}, nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), id, model.StatusScheduled, model.StatusCancelled, notification.StatusUpdate{}).
		Return(true, nil)

	require.NoError(t, f.svc.Cancel(context.Background(), retry.Strategy{}, id))

	snap := f.metrics.Snapshot("api@test", "", 0)
	assert.Equal(t, uint64(1), snap.Total[model.StatusCancelled])
}

func TestService_Cancel_Processing(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{ID: id, Status: model.StatusProcessing}, nil)

	err := f.svc.Cancel(context.Background(), retry.Strategy{}, id)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
}

func TestService_Cancel_Terminal(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{ID: id, Status: model.StatusDelivered}, nil)

	err := f.svc.Cancel(context.Background(), retry.Strategy{}, id)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestService_Cancel_LosesRaceToWorker(t *testing.T) {
	f := newFixture(t, Options{})

	// The CAS misses because a worker claimed the record between the
	// read and the update; the re-read classifies it as processing.
	id := uuid.New()
	gomock.InOrder(
		f.repo.EXPECT().Get(gomock.Any(), id).
			Return(model.Notification{ID: id, Status: model.StatusScheduled}, nil),
		f.repo.EXPECT().
			CompareAndSetStatus(gomock.Any(), id, model.StatusScheduled, model.StatusCancelled, notification.StatusUpdate{}).
			Return(false, nil),
		f.repo.EXPECT().Get(gomock.Any(), id).
			Return(model.Notification{ID: id, Status: model.StatusProcessing}, nil),
	)

	err := f.svc.Cancel(context.Background(), retry.Strategy{}, id)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
}

func TestService_Cancel_NotFound(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{}, notification.ErrNotificationNotFound)

	err := f.svc.Cancel(context.Background(), retry.Strategy{}, id)
	assert.ErrorIs(t, err, notification.ErrNotificationNotFound)
}

func TestService_Force_Scheduled(t *testing.T) {
	f := newFixture(t, Options{})

	now := time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC) // outside any window
	f.svc.now = func() time.Time { return now }

	id := uuid.New()
	stored := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)

	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{ID: id, Channel: model.ChannelPush, Status: model.StatusScheduled, ScheduledTime: stored}, nil)
	// Immediate eta, no status change and no scheduled_time rewrite.
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: id, Channel: model.ChannelPush, ETA: now}, gomock.Any()).
		Return(nil)

	require.NoError(t, f.svc.Force(context.Background(), retry.Strategy{}, id))
}

func TestService_Force_Pending(t *testing.T) {
	f := newFixture(t, Options{Identity: "api@test"})

	now := time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	id := uuid.New()
	gomock.InOrder(
		f.repo.EXPECT().Get(gomock.Any(), id).
			Return(model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusPending}, nil),
		f.repo.EXPECT().
			CompareAndSetStatus(gomock.Any(), id, model.StatusPending, model.StatusScheduled, notification.StatusUpdate{}).
			Return(true, nil),
		f.repo.EXPECT().Get(gomock.Any(), id).
			Return(model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusScheduled}, nil),
	)
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: id, Channel: model.ChannelEmail, ETA: now}, gomock.Any()).
		Return(nil)

	require.NoError(t, f.svc.Force(context.Background(), retry.Strategy{}, id))
}

func TestService_Force_Terminal(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{ID: id, Status: model.StatusCancelled}, nil)

	err := f.svc.Force(context.Background(), retry.Strategy{}, id)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestService_Status_CacheHit(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	strategy := retry.Strategy{}

	f.cache.EXPECT().GetWithRetry(gomock.Any(), strategy, id.String()).Return("scheduled", nil)

	status, err := f.svc.Status(context.Background(), strategy, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, status)
}

func TestService_Status_CacheMiss(t *testing.T) {
	f := newFixture(t, Options{})

	id := uuid.New()
	strategy := retry.Strategy{}

	f.cache.EXPECT().GetWithRetry(gomock.Any(), strategy, id.String()).Return("", redis.Nil)
	f.repo.EXPECT().Get(gomock.Any(), id).
		Return(model.Notification{ID: id, Status: model.StatusDelivered}, nil)

	status, err := f.svc.Status(context.Background(), strategy, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, status)
}

func TestService_List(t *testing.T) {
	f := newFixture(t, Options{})

	items := []model.Notification{
		{ID: uuid.New(), Content: "a", Timezone: "UTC", ScheduledTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Content: "b", Timezone: "UTC", ScheduledTime: time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)},
	}
	filter := notification.Filter{Status: model.StatusScheduled}

	f.repo.EXPECT().List(gomock.Any(), filter, 100, 0).Return(items, nil)

	views, err := f.svc.List(context.Background(), filter, 100, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "2025-06-02T12:00:00Z", views[0].LocalScheduledTime)
}

func TestService_RequeueStuck(t *testing.T) {
	f := newFixture(t, Options{Identity: "sweep@test", SweepGrace: 2 * time.Minute, SweepLease: 5 * time.Minute, SweepBatch: 10})

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	pending := model.Notification{ID: uuid.New(), Channel: model.ChannelPush, Status: model.StatusPending,
		ScheduledTime: now.Add(-10 * time.Minute)}
	overdue := model.Notification{ID: uuid.New(), Channel: model.ChannelEmail, Status: model.StatusScheduled}
	stalled := model.Notification{ID: uuid.New(), Channel: model.ChannelPush, Status: model.StatusProcessing}

	f.repo.EXPECT().
		ListStuck(gomock.Any(), model.StatusPending, now.Add(-2*time.Minute), 10).
		Return([]model.Notification{pending}, nil)
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: pending.ID, Channel: pending.Channel, ETA: pending.ScheduledTime}, gomock.Any()).
		Return(nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), pending.ID, model.StatusPending, model.StatusScheduled, notification.StatusUpdate{}).
		Return(true, nil)

	f.repo.EXPECT().
		ListOverdueScheduled(gomock.Any(), now.Add(-2*time.Minute), 10).
		Return([]model.Notification{overdue}, nil)
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: overdue.ID, Channel: overdue.Channel, ETA: now}, gomock.Any()).
		Return(nil)

	f.repo.EXPECT().
		ListStuck(gomock.Any(), model.StatusProcessing, now.Add(-5*time.Minute), 10).
		Return([]model.Notification{stalled}, nil)
	f.repo.EXPECT().
		CompareAndSetStatus(gomock.Any(), stalled.ID, model.StatusProcessing, model.StatusScheduled, gomock.Any()).
		Return(true, nil)
	f.queue.EXPECT().
		Enqueue(queue.DeliveryTask{ID: stalled.ID, Channel: stalled.Channel, ETA: now}, gomock.Any()).
		Return(nil)

	requeued, err := f.svc.RequeueStuck(context.Background(), retry.Strategy{})
	require.NoError(t, err)
	assert.Equal(t, 3, requeued)
}
