// Package notification exposes the notification HTTP endpoints.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notify-scheduler/internal/api/dto"
	"github.com/aliskhannn/notify-scheduler/internal/api/respond"
	"github.com/aliskhannn/notify-scheduler/internal/config"
	"github.com/aliskhannn/notify-scheduler/internal/model"
	"github.com/aliskhannn/notify-scheduler/internal/repository/notification"
	service "github.com/aliskhannn/notify-scheduler/internal/service/notification"
	"github.com/aliskhannn/notify-scheduler/internal/timewindow"
)

const (
	defaultPriority = 5
	defaultLimit    = 100
	maxLimit        = 1000
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/notification/mock.go -package=mocks
type notificationService interface {
	Schedule(ctx context.Context, strategy retry.Strategy, req service.ScheduleRequest) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (service.View, error)
	List(ctx context.Context, f notification.Filter, limit, offset int) ([]service.View, error)
	Cancel(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error
	Force(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error
}

// Handler handles HTTP requests for scheduling, inspecting, cancelling
// and forcing notifications.
type Handler struct {
	service   notificationService
	validator *validator.Validate
	resolver  timewindow.Resolver
	cfg       *config.Config
}

func NewHandler(
	s notificationService,
	v *validator.Validate,
	r timewindow.Resolver,
	cfg *config.Config,
) *Handler {
	return &Handler{service: s, validator: v, resolver: r, cfg: cfg}
}

// CreatePush handles HTTP POST requests scheduling a push notification.
func (h *Handler) CreatePush(c *ginext.Context) {
	h.create(c, model.ChannelPush)
}

// CreateEmail handles HTTP POST requests scheduling an email notification.
func (h *Handler) CreateEmail(c *ginext.Context) {
	h.create(c, model.ChannelEmail)
}

func (h *Handler) create(c *ginext.Context, channel model.Channel) {
	var req dto.CreateRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if req.Priority == 0 {
		req.Priority = defaultPriority
	}

	scheduledTime, err := h.resolver.ParseRequestedTime(req.ScheduledTime, req.Timezone)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse scheduled time")
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	id, err := h.service.Schedule(c.Request.Context(), h.cfg.Retry, service.ScheduleRequest{
		RecipientID:   req.RecipientID,
		Content:       req.Content,
		Channel:       channel,
		Timezone:      req.Timezone,
		ScheduledTime: scheduledTime,
		Priority:      req.Priority,
	})
	if err != nil {
		h.fail(c, id, err, "failed to schedule notification")
		return
	}

	respond.Created(c.Writer, id)
}

// GetByID handles HTTP GET requests for a single notification.
func (h *Handler) GetByID(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err, "failed to get notification")
		return
	}

	respond.OK(c.Writer, view)
}

// List handles HTTP GET requests for filtered notification lists.
func (h *Handler) List(c *ginext.Context) {
	var f notification.Filter

	if s := c.Query("status"); s != "" {
		status, err := model.ParseStatus(s)
		if err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, err)
			return
		}
		f.Status = status
	}

	if ch := c.Query("channel"); ch != "" {
		channel, err := model.ParseChannel(ch)
		if err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, err)
			return
		}
		f.Channel = channel
	}

	f.RecipientID = c.Query("recipient_id")
	f.Timezone = c.Query("timezone")

	limit, err := parseIntParam(c.Query("limit"), defaultLimit)
	if err != nil || limit <= 0 {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid limit"))
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err := parseIntParam(c.Query("offset"), 0)
	if err != nil || offset < 0 {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid offset"))
		return
	}

	views, err := h.service.List(c.Request.Context(), f, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, views)
}

// Cancel handles HTTP POST requests cancelling a notification.
func (h *Handler) Cancel(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), h.cfg.Retry, id); err != nil {
		h.fail(c, id, err, "failed to cancel notification")
		return
	}

	respond.OK(c.Writer, "notification cancelled")
}

// Force handles HTTP POST requests forcing immediate delivery.
func (h *Handler) Force(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.service.Force(c.Request.Context(), h.cfg.Retry, id); err != nil {
		h.fail(c, id, err, "failed to force notification")
		return
	}

	respond.OK(c.Writer, "notification queued for immediate delivery")
}

func (h *Handler) parseID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")

	id, err := uuid.Parse(idStr)
	if err != nil || id == uuid.Nil {
		zlog.Logger.Warn().Str("id", idStr).Msg("invalid notification id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}

	return id, true
}

// fail maps service errors onto HTTP status codes.
func (h *Handler) fail(c *ginext.Context, id uuid.UUID, err error, msg string) {
	switch {
	case errors.Is(err, notification.ErrNotificationNotFound):
		respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
	case errors.Is(err, service.ErrAlreadyProcessing), errors.Is(err, service.ErrAlreadyTerminal):
		respond.Fail(c.Writer, http.StatusConflict, err)
	case errors.Is(err, service.ErrUnknownChannel), errors.Is(err, timewindow.ErrInvalidTimezone):
		respond.Fail(c.Writer, http.StatusBadRequest, err)
	default:
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg(msg)
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
	}
}

func parseIntParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}
