package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/journal_processor/service"
	"github.com/lumapay/wallet-ledger/internal/platform/messaging/producers"
)

// SettlementEventHandler handles settled-transaction events from Kafka
type SettlementEventHandler struct {
	projectionService service.ProjectionService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewSettlementEventHandler creates a new handler
func NewSettlementEventHandler(
	logger *slog.Logger,
	projectionService service.ProjectionService,
	producer producers.DeadLetterPublisher,
) *SettlementEventHandler {
	return &SettlementEventHandler{
		projectionService: projectionService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages
func (h *SettlementEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var txn transaction.Transaction
	if err := json.Unmarshal(value, &txn); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal settlement event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	h.logger.Info("Received settlement event",
		"transaction_id", txn.ID.String(),
		"account_id", txn.AccountID.String(),
		"type", string(txn.Type),
		"status", string(txn.Status),
	)

	if err := h.projectionService.ProjectTransaction(ctx, &txn); err != nil {
		h.logger.Error("Failed to project settlement event",
			"transaction_id", txn.ID.String(),
			"error", err,
		)
		return fmt.Errorf("projecting transaction %s failed: %w", txn.ID.String(), err)
	}

	return nil // Success, commit offset
}
