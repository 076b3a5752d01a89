package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lumapay/wallet-ledger/internal/domain/journal"
)

const (
	// JournalCollectionName is the name of the journal collection in MongoDB
	JournalCollectionName = "journal_entries"
)

// JournalRepository implements the journal.Repository interface for MongoDB
type JournalRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewJournalRepository creates a new MongoDB journal repository
func NewJournalRepository(logger *slog.Logger, db *mongo.Database) journal.Repository {
	return &JournalRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new journal entry after checking for duplicates.
// Returns ErrDuplicateEntry if an entry with the same transaction ID exists,
// which keeps the projection idempotent under event redelivery.
func (r *JournalRepository) Create(ctx context.Context, entry *journal.Entry) error {
	collection := r.db.Collection(JournalCollectionName)

	existingEntry, err := r.GetByTransactionID(ctx, entry.TransactionID)
	if err != nil && !errors.Is(err, journal.ErrEntryNotFound{}) {
		r.logger.Error("Failed to check for existing journal entry",
			"transaction_id", entry.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing journal entry: %w", err)
	}

	if existingEntry != nil {
		return journal.ErrDuplicateEntry{TransactionID: entry.TransactionID}
	}

	_, err = collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to create journal entry",
			"transaction_id", entry.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to create journal entry: %w", err)
	}

	return nil
}

// GetByTransactionID retrieves a journal entry by its transaction ID.
// Returns ErrEntryNotFound if no entry exists for the given transaction.
func (r *JournalRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*journal.Entry, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{"transaction_id": transactionID}
	var entry journal.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, journal.ErrEntryNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get journal entry",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	return &entry, nil
}

// GetByAccountID retrieves paginated journal entries for an account.
// Results are sorted by settlement time in descending order (newest first).
func (r *JournalRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*journal.Entry, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.M{"settled_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get journal entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*journal.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode journal entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID counts the total number of journal entries for an account
func (r *JournalRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{"account_id": accountID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count journal entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves paginated journal entries within the specified
// settlement window, newest first.
func (r *JournalRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*journal.Entry, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{
		"settled_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"settled_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get journal entries by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get journal entries by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*journal.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode journal entries",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}

	return entries, nil
}
