package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/checkout-wizard/internal/domain"
	pkgkafka "github.com/utafrali/checkout-wizard/pkg/kafka"
)

// Kafka topic constants for wizard lifecycle events.
const (
	TopicWizardStarted  = "storefront.wizard.started"
	TopicWizardAdvanced = "storefront.wizard.advanced"
	TopicOrderCompleted = "storefront.wizard.order_completed"
	TopicOrderFailed    = "storefront.wizard.order_failed"
)

// Aggregate type constant.
const AggregateTypeWizard = "checkout_wizard"

// Source identifier for events originating from the wizard service.
const SourceWizardService = "checkout-wizard"

// WizardStartedData is the payload for a wizard.started event.
type WizardStartedData struct {
	SessionID   string  `json:"session_id"`
	ProductName string  `json:"product_name"`
	Total       float64 `json:"total"`
}

// WizardAdvancedData is the payload for a wizard.advanced event.
type WizardAdvancedData struct {
	SessionID string `json:"session_id"`
	FromStep  string `json:"from_step"`
	ToStep    string `json:"to_step"`
}

// OrderCompletedData is the payload for a wizard.order_completed event.
type OrderCompletedData struct {
	SessionID string  `json:"session_id"`
	OrderID   string  `json:"order_id"`
	Total     float64 `json:"total"`
	Quantity  int     `json:"quantity"`
}

// OrderFailedData is the payload for a wizard.order_failed event.
type OrderFailedData struct {
	SessionID     string `json:"session_id"`
	FailureReason string `json:"failure_reason"`
}

// Producer publishes wizard lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the wizard service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishWizardStarted publishes a wizard.started event.
func (p *Producer) PublishWizardStarted(ctx context.Context, sessionID string, state domain.CheckoutState) error {
	data := WizardStartedData{
		SessionID:   sessionID,
		ProductName: state.Summary.ProductName,
		Total:       state.Summary.Total,
	}

	event, err := pkgkafka.NewEvent(TopicWizardStarted, sessionID, AggregateTypeWizard, SourceWizardService, data)
	if err != nil {
		return fmt.Errorf("create wizard.started event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicWizardStarted, event); err != nil {
		return fmt.Errorf("publish wizard.started event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wizard.started event",
		slog.String("session_id", sessionID),
	)

	return nil
}

// PublishWizardAdvanced publishes a wizard.advanced event.
func (p *Producer) PublishWizardAdvanced(ctx context.Context, sessionID string, from, to domain.Step) error {
	data := WizardAdvancedData{
		SessionID: sessionID,
		FromStep:  from.Token(),
		ToStep:    to.Token(),
	}

	event, err := pkgkafka.NewEvent(TopicWizardAdvanced, sessionID, AggregateTypeWizard, SourceWizardService, data)
	if err != nil {
		return fmt.Errorf("create wizard.advanced event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicWizardAdvanced, event); err != nil {
		return fmt.Errorf("publish wizard.advanced event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wizard.advanced event",
		slog.String("session_id", sessionID),
		slog.String("from_step", from.Token()),
		slog.String("to_step", to.Token()),
	)

	return nil
}

// PublishOrderCompleted publishes a wizard.order_completed event.
func (p *Producer) PublishOrderCompleted(ctx context.Context, sessionID, orderID string, state domain.CheckoutState) error {
	data := OrderCompletedData{
		SessionID: sessionID,
		OrderID:   orderID,
		Total:     state.Summary.Total,
		Quantity:  state.Summary.Quantity,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCompleted, sessionID, AggregateTypeWizard, SourceWizardService, data)
	if err != nil {
		return fmt.Errorf("create wizard.order_completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCompleted, event); err != nil {
		return fmt.Errorf("publish wizard.order_completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wizard.order_completed event",
		slog.String("session_id", sessionID),
		slog.String("order_id", orderID),
	)

	return nil
}

// PublishOrderFailed publishes a wizard.order_failed event.
func (p *Producer) PublishOrderFailed(ctx context.Context, sessionID, reason string) error {
	data := OrderFailedData{
		SessionID:     sessionID,
		FailureReason: reason,
	}

	event, err := pkgkafka.NewEvent(TopicOrderFailed, sessionID, AggregateTypeWizard, SourceWizardService, data)
	if err != nil {
		return fmt.Errorf("create wizard.order_failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderFailed, event); err != nil {
		return fmt.Errorf("publish wizard.order_failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wizard.order_failed event",
		slog.String("session_id", sessionID),
		slog.String("failure_reason", reason),
	)

	return nil
}
