package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lumapay/wallet-ledger/internal/domain/outbox"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// MockOutboxRepository mocks the outbox.Repository interface
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	m.Called(tx)
	return m
}

// MockMessagePublisher mocks the Kafka producer
type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func pendingMessage() *outbox.Message {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":     uuid.New().String(),
		"amount": 10_000,
		"status": "COMPLETED",
	})
	return &outbox.Message{
		ID:            42,
		TransactionID: uuid.New(),
		AccountID:     uuid.New(),
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestEventPublisher_PublishSettlement(t *testing.T) {
	t.Run("marks processed after broker ack", func(t *testing.T) {
		mockRepo := &MockOutboxRepository{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewEventPublisher(mockRepo, mockProducer, slog.Default())

		message := pendingMessage()
		mockProducer.On("Publish", mock.Anything, message.AccountID.String(), mock.Anything).Return(nil).Once()
		mockRepo.On("UpdateStatus", mock.Anything, message.ID, shared.OutboxStatusProcessed).Return(nil).Once()

		err := publisher.PublishSettlement(context.Background(), message)
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockProducer.AssertExpectations(t)
	})

	t.Run("broker failure leaves row pending", func(t *testing.T) {
		mockRepo := &MockOutboxRepository{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewEventPublisher(mockRepo, mockProducer, slog.Default())

		message := pendingMessage()
		mockProducer.On("Publish", mock.Anything, message.AccountID.String(), mock.Anything).
			Return(errors.New("broker unavailable")).Once()

		err := publisher.PublishSettlement(context.Background(), message)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "broker unavailable")
		mockRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("undecodable payload is failed out, not published", func(t *testing.T) {
		mockRepo := &MockOutboxRepository{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewEventPublisher(mockRepo, mockProducer, slog.Default())

		message := pendingMessage()
		message.Payload = []byte("{not json")
		mockRepo.On("UpdateStatus", mock.Anything, message.ID, shared.OutboxStatusFailedToPublish).Return(nil).Once()

		err := publisher.PublishSettlement(context.Background(), message)
		assert.Error(t, err)
		mockProducer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("publish OK but status flip fails", func(t *testing.T) {
		mockRepo := &MockOutboxRepository{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewEventPublisher(mockRepo, mockProducer, slog.Default())

		message := pendingMessage()
		mockProducer.On("Publish", mock.Anything, message.AccountID.String(), mock.Anything).Return(nil).Once()
		mockRepo.On("UpdateStatus", mock.Anything, message.ID, shared.OutboxStatusProcessed).
			Return(errors.New("connection reset")).Once()

		err := publisher.PublishSettlement(context.Background(), message)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "PROCESSED")
		mockRepo.AssertExpectations(t)
	})
}
