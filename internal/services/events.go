package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/mq"
	"github.com/tecnm-sys/apiserver/types"
)

// Auth event types published on the events channel.
const (
	EventUserRegistered      = "user.registered"
	EventUserLogin           = "user.login"
	EventUserPasswordMigrate = "user.password_migrated"
	EventUserPasswordChanged = "user.password_changed"
	EventUserProfileUpdated  = "user.profile_updated"
)

// Event is the JSON payload of an auth event.
type Event struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	UserID     int        `json:"userId"`
	Email      string     `json:"email"`
	Role       types.Role `json:"role"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// EventPublisher sends a payload to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

type eventEmitter struct {
	publisher EventPublisher
	channel   string
	now       func() time.Time
}

// emit publishes an event for user. Failures are logged and never returned.
func (e *eventEmitter) emit(ctx context.Context, eventType string, user types.User) {
	if e == nil || e.publisher == nil {
		return
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		OccurredAt: e.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("event", eventType).Msg("marshal event")
		return
	}

	attrs := map[string]string{
		"type":             eventType,
		mq.AttrContentType: "application/json",
		mq.AttrMessageID:   event.ID,
	}
	if _, err := e.publisher.Publish(ctx, e.channel, data, attrs); err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("event", eventType).
			Int("user_id", user.ID).
			Msg("publish event")
	}
}
