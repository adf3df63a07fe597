package txn

import (
	"context"
	"time"
)

// Store is the persistence contract for transaction records.
//
// Records are append-only per transaction id; MarkReversed is the single
// permitted post-creation mutation and flips is_reversed false→true exactly
// once.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertTransaction(ctx context.Context, transaction Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (Transaction, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	MarkReversed(ctx context.Context, transactionID string, reversalReference string) error
	SumDailyPurchases(ctx context.Context, cardID string, dayStart, dayEnd time.Time) (AmountCents, error)
	SumPurchases(ctx context.Context, cardID string) (AmountCents, error)
	ListByCard(ctx context.Context, cardID string, limit int) ([]Transaction, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Transaction, error)
}
