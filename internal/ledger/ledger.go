package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MinChunkSize is the smallest number of records written per round trip
const MinChunkSize = 1000

// StorageError is returned when the ledger cannot be written or compensated
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Writer persists normalized records for one attempt as a single atomic batch
type Writer struct {
	db        database.Database
	chunkSize int
	logger    *zap.Logger
}

// NewWriter creates a ledger writer
func NewWriter(db database.Database, chunkSize int, logger *zap.Logger) *Writer {
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}
	return &Writer{
		db:        db,
		chunkSize: chunkSize,
		logger:    logger.Named("ledger.writer"),
	}
}

// Write stamps the records with the tenant and attempt identity and inserts
// them in chunks inside one database transaction. Either every record becomes
// visible or none does.
func (w *Writer) Write(ctx context.Context, tenantID uint, attemptID string, records []*database.Transaction) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now()
	for _, r := range records {
		r.ID = uuid.NewString()
		r.TenantID = tenantID
		r.AttemptID = attemptID
		r.CreatedAt = now
	}

	err := w.db.Transaction(ctx, func(ctx context.Context) error {
		for start := 0; start < len(records); start += w.chunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(start+w.chunkSize, len(records))
			if err := w.db.CreateTransactions(ctx, records[start:end], w.chunkSize); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "write", Err: err}
	}

	w.logger.Debug("ledger batch written",
		zap.Uint("tenant_id", tenantID),
		zap.String("attempt_id", attemptID),
		zap.Int("records", len(records)))
	return len(records), nil
}

// Purge deletes every record written for an attempt
func (w *Writer) Purge(ctx context.Context, attemptID string) (int64, error) {
	n, err := w.db.DeleteTransactionsByAttempt(ctx, attemptID)
	if err != nil {
		return 0, &StorageError{Op: "purge", Err: err}
	}
	if n > 0 {
		w.logger.Info("ledger records purged", zap.String("attempt_id", attemptID), zap.Int64("records", n))
	}
	return n, nil
}

// Snapshot returns the full ledger of a tenant
func (w *Writer) Snapshot(ctx context.Context, tenantID uint) ([]*database.Transaction, error) {
	records, err := w.db.ListTransactions(ctx, database.SystemScope().ForTenant(tenantID), database.TransactionFilter{})
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return records, nil
}
