package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `mapstructure:"type" yaml:"type"`

	ChannelBufferSize int `mapstructure:"channelBufferSize" yaml:"channelBufferSize"`

	NATSUrl           string `mapstructure:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `mapstructure:"natsToken" yaml:"natsToken"`
	NATSMaxReconnects int    `mapstructure:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `mapstructure:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds

	// NATSQueueGroup, when set, load-balances each subject across every
	// process subscribed with the same group.
	NATSQueueGroup string `mapstructure:"natsQueueGroup" yaml:"natsQueueGroup"`
}

// Topics published by the API and the async worker.
const (
	TopicComplianceRequested = "riskiq.compliance.requested"
	TopicComplianceCompleted = "riskiq.compliance.completed"
	TopicFraudAssessed       = "riskiq.fraud.assessed"
	TopicFraudAlert          = "riskiq.fraud.alert"
	TopicRiskAssessed        = "riskiq.risk.assessed"
	TopicReportGenerated     = "riskiq.report.generated"
)
