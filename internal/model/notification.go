package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery channel for a notification.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Channels lists every supported delivery channel.
var Channels = []Channel{ChannelPush, ChannelEmail}

// ParseChannel converts a raw string into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelPush:
		return ChannelPush, nil
	case ChannelEmail:
		return ChannelEmail, nil
	default:
		return "", fmt.Errorf("unsupported channel: %q", s)
	}
}

// Status is the current lifecycle state of a notification.
//
// Transitions are monotone: pending -> scheduled -> processing ->
// {delivered | failed | cancelled}, with processing looping back to
// scheduled on a retryable delivery failure. Delivered, failed and
// cancelled are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusScheduled, StatusProcessing,
		StatusDelivered, StatusFailed, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %q", s)
	}
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusCancelled
}

// Notification represents a notification entity in the system.
type Notification struct {
	ID                  uuid.UUID `json:"id"`                   // unique identifier, assigned at creation
	RecipientID         string    `json:"recipient_id"`         // channel-specific address or user key
	Content             string    `json:"content"`              // message payload
	Channel             Channel   `json:"channel"`              // delivery channel, immutable after creation
	Status              Status    `json:"status"`               // current lifecycle state
	Timezone            string    `json:"timezone"`             // IANA timezone of the recipient, display only
	ScheduledTime       time.Time `json:"scheduled_time"`       // UTC instant the next delivery attempt is due
	AppropriateDelivery bool      `json:"appropriate_delivery"` // whether the requested time already fell inside the delivery window
	Priority            int       `json:"priority"`             // 1 (lowest) to 10 (highest)
	AttemptCount        int       `json:"attempt_count"`        // delivery attempts made so far
	LastError           string    `json:"last_error,omitempty"` // diagnostic from the most recent failed attempt
	CreatedAt           time.Time `json:"created_at"`           // timestamp when the notification was created
	UpdatedAt           time.Time `json:"updated_at"`           // timestamp of the last state change
}
