package notification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/notify-scheduler/internal/model"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

func notificationRows(n model.Notification) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "recipient_id", "content", "channel", "status", "timezone",
		"scheduled_time", "appropriate_delivery", "priority", "attempt_count",
		"last_error", "created_at", "updated_at",
	}).AddRow(
		n.ID, n.RecipientID, n.Content, string(n.Channel), string(n.Status), n.Timezone,
		n.ScheduledTime, n.AppropriateDelivery, n.Priority, n.AttemptCount,
		n.LastError, n.CreatedAt, n.UpdatedAt,
	)
}

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	n := model.Notification{
		RecipientID:         "device-token-1",
		Content:             "hello",
		Channel:             model.ChannelPush,
		Status:              model.StatusPending,
		Timezone:            "Europe/London",
		ScheduledTime:       time.Now().UTC(),
		AppropriateDelivery: true,
		Priority:            5,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(
			n.RecipientID, n.Content, n.Channel, n.Status, n.Timezone,
			n.ScheduledTime, n.AppropriateDelivery, n.Priority,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	got, err := repo.Create(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := setupMockDB(t)

	n := model.Notification{
		ID:            uuid.New(),
		RecipientID:   "user@example.com",
		Content:       "hi",
		Channel:       model.ChannelEmail,
		Status:        model.StatusScheduled,
		Timezone:      "UTC",
		ScheduledTime: time.Now().UTC(),
		Priority:      5,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).
		WithArgs(n.ID).
		WillReturnRows(notificationRows(n))

	got, err := repo.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, model.StatusScheduled, got.Status)
	assert.Equal(t, model.ChannelEmail, got.Channel)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus_Succeeds(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(model.StatusProcessing, 0, false, nil, nil, id, model.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.CompareAndSetStatus(
		context.Background(), id,
		model.StatusScheduled, model.StatusProcessing,
		StatusUpdate{},
	)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus_StatusMismatch(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(model.StatusCancelled, 0, false, nil, nil, id, model.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.CompareAndSetStatus(
		context.Background(), id,
		model.StatusScheduled, model.StatusCancelled,
		StatusUpdate{},
	)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus_AppliesFields(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	lastError := "smtp: connection refused"
	next := time.Now().Add(time.Minute).UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(model.StatusScheduled, 1, false, lastError, next, id, model.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.CompareAndSetStatus(
		context.Background(), id,
		model.StatusProcessing, model.StatusScheduled,
		StatusUpdate{IncrementAttempt: true, SetLastError: &lastError, SetScheduledTime: &next},
	)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_WithFilters(t *testing.T) {
	repo, mock := setupMockDB(t)

	n := model.Notification{
		ID:       uuid.New(),
		Channel:  model.ChannelPush,
		Status:   model.StatusDelivered,
		Timezone: "UTC",
		Priority: 5,
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND channel = $2")).
		WithArgs(model.StatusDelivered, model.ChannelPush, 100, 0).
		WillReturnRows(notificationRows(n))

	got, err := repo.List(context.Background(), Filter{
		Status:  model.StatusDelivered,
		Channel: model.ChannelPush,
	}, 100, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Empty(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).
		WithArgs(50, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.List(context.Background(), Filter{}, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOverdueScheduled(t *testing.T) {
	repo, mock := setupMockDB(t)

	cutoff := time.Now().Add(-2 * time.Minute).UTC()
	n := model.Notification{ID: uuid.New(), Status: model.StatusScheduled}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND scheduled_time < $2")).
		WithArgs(model.StatusScheduled, cutoff, 100).
		WillReturnRows(notificationRows(n))

	got, err := repo.ListOverdueScheduled(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStuck(t *testing.T) {
	repo, mock := setupMockDB(t)

	cutoff := time.Now().Add(-5 * time.Minute).UTC()
	n := model.Notification{ID: uuid.New(), Status: model.StatusProcessing}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND updated_at < $2")).
		WithArgs(model.StatusProcessing, cutoff, 100).
		WillReturnRows(notificationRows(n))

	got, err := repo.ListStuck(context.Background(), model.StatusProcessing, cutoff, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
