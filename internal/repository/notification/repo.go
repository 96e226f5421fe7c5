package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/notify-scheduler/internal/model"
)

// ErrNotificationNotFound is returned when no notification exists for
// the requested identifier.
var ErrNotificationNotFound = errors.New("notification not found")

// Filter narrows a List query. Zero-valued fields are ignored.
type Filter struct {
	Status      model.Status
	Channel     model.Channel
	RecipientID string
	Timezone    string
}

// StatusUpdate describes the extra fields applied together with a
// conditional status transition.
type StatusUpdate struct {
	IncrementAttempt bool       // bump attempt_count by one
	SetLastError     *string    // overwrite last_error when non-nil
	ClearLastError   bool       // reset last_error to NULL, wins over SetLastError
	SetScheduledTime *time.Time // move the next attempt instant when non-nil
}

// Repository provides access to the notifications table.
//
// Rows are never deleted: terminal notifications are retained for
// metrics and history.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

const notificationColumns = `
		id, recipient_id, content, channel, status, timezone,
		scheduled_time, appropriate_delivery, priority, attempt_count,
		last_error, created_at, updated_at`

// Create inserts a new notification and returns its generated ID.
func (r *Repository) Create(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
		    recipient_id, content, channel, status, timezone,
		    scheduled_time, appropriate_delivery, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
    `

	err := r.db.Master.QueryRowContext(
		ctx, query,
		n.RecipientID, n.Content, n.Channel, n.Status, n.Timezone,
		n.ScheduledTime, n.AppropriateDelivery, n.Priority,
	).Scan(&n.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n.ID, nil
}

// Get retrieves a notification by its ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE id = $1;
    `

	n, err := scanNotification(r.db.Master.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// CompareAndSetStatus atomically moves a notification from the
// expected status to the next one, applying upd in the same statement.
// It reports false without mutating anything when the stored status
// differs from expected. This single conditional UPDATE is the only
// serialization point between concurrent workers, cancellation and
// forced delivery.
func (r *Repository) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	expected, next model.Status,
	upd StatusUpdate,
) (bool, error) {
	query := `
		UPDATE notifications
		SET status = $1,
		    attempt_count = attempt_count + $2,
		    last_error = CASE
		        WHEN $3::boolean THEN NULL
		        WHEN $4::text IS NOT NULL THEN $4
		        ELSE last_error
		    END,
		    scheduled_time = COALESCE($5::timestamptz, scheduled_time),
		    updated_at = now()
		WHERE id = $6 AND status = $7;
    `

	increment := 0
	if upd.IncrementAttempt {
		increment = 1
	}

	res, err := r.db.ExecContext(
		ctx, query,
		next, increment, upd.ClearLastError, upd.SetLastError, upd.SetScheduledTime,
		id, expected,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// List retrieves notifications matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter, limit, offset int) ([]model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications`

	var (
		conds []string
		args  []interface{}
	)

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if f.Channel != "" {
		args = append(args, f.Channel)
		conds = append(conds, fmt.Sprintf("channel = $%d", len(args)))
	}

	if f.RecipientID != "" {
		args = append(args, f.RecipientID)
		conds = append(conds, fmt.Sprintf("recipient_id = $%d", len(args)))
	}

	if f.Timezone != "" {
		args = append(args, f.Timezone)
		conds = append(conds, fmt.Sprintf("timezone = $%d", len(args)))
	}

	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf("\n\t\tORDER BY created_at DESC\n\t\tLIMIT $%d OFFSET $%d;", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// ListOverdueScheduled retrieves scheduled notifications whose next
// attempt instant is older than the cutoff. Their delivery task is
// presumed lost and must be re-enqueued by the reconciliation sweep.
func (r *Repository) ListOverdueScheduled(ctx context.Context, cutoff time.Time, limit int) ([]model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND scheduled_time < $2
		ORDER BY scheduled_time ASC
		LIMIT $3;
    `

	rows, err := r.db.QueryContext(ctx, query, model.StatusScheduled, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// ListStuck retrieves notifications that have stayed in the given
// status with no state change since the cutoff.
func (r *Repository) ListStuck(ctx context.Context, status model.Status, cutoff time.Time, limit int) ([]model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3;
    `

	rows, err := r.db.QueryContext(ctx, query, status, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (model.Notification, error) {
	var (
		n         model.Notification
		lastError sql.NullString
	)

	err := row.Scan(
		&n.ID, &n.RecipientID, &n.Content, &n.Channel, &n.Status, &n.Timezone,
		&n.ScheduledTime, &n.AppropriateDelivery, &n.Priority, &n.AttemptCount,
		&lastError, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return model.Notification{}, err
	}

	n.LastError = lastError.String

	return n, nil
}

func collectNotifications(rows *sql.Rows) ([]model.Notification, error) {
	notifications := make([]model.Notification, 0)

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}
