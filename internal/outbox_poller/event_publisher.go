package outbox_poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lumapay/wallet-ledger/internal/domain/outbox"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/platform/messaging/producers"
)

// EventPublisher moves one outbox message onto the settlement stream
type EventPublisher interface {
	PublishSettlement(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl publishes outbox payloads to Kafka and flips the row to
// PROCESSED only after the broker acknowledged the write.
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewEventPublisher creates a new publisher
func NewEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishSettlement publishes the settled-transaction event carried by the
// outbox message, keyed by account so per-account ordering survives Kafka.
func (p *EventPublisherImpl) PublishSettlement(ctx context.Context, message *outbox.Message) error {
	// The payload was marshaled at write time; reject rows that no longer
	// decode rather than poisoning the stream.
	var payload json.RawMessage
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		p.logger.Error("Outbox payload is not valid JSON",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status after payload error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("invalid payload for outbox %d: %w", message.ID, err)
	}

	if err := p.producer.Publish(ctx, message.AccountID.String(), payload); err != nil {
		return fmt.Errorf("failed to publish settlement event for outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		p.logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		return fmt.Errorf("publish for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.TransactionID, message.ID, err)
	}

	return nil
}
