// Package bus carries analysis jobs and completion events between the API
// and the background worker.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/riskiq/internal/domain"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("event bus is closed")

	// ErrBufferFull is returned when a subscriber cannot accept more messages.
	ErrBufferFull = errors.New("event bus buffer full")
)

// New creates an event bus based on configuration.
// Community tier uses in-process channels, Pro tier uses NATS.
func New(ctx context.Context, cfg domain.EventBusConfig, logger *slog.Logger) (domain.EventBus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize, logger), nil

	case "nats":
		return NewNATSBus(ctx, cfg, logger)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishJSON encodes v and publishes it.
func PublishJSON(ctx context.Context, b domain.EventBus, tenantID, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

func newMessage(tenantID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}
