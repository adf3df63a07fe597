package txnstore

import (
	"context"
	"errors"
	"time"

	"github.com/CrestPayLabs/cardledger/pkg/txn"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	constraintTransactionReference = "uniq_txn_reference"
	defaultMetadataJSON            = "{}"
	pgUniqueViolationCode          = "23505"
	sqliteConstraintCode           = 19
	errorOperationStore            = "store"
	errorSubjectTransaction        = "transaction"
	errorSubjectSpending           = "spending"
	errorCodeDuplicate             = "duplicate"
	errorCodeGet                   = "get"
	errorCodeInsert                = "insert"
	errorCodeInvalid               = "invalid"
	errorCodeList                  = "list"
	errorCodeLookup                = "lookup"
	errorCodeMarkReversed          = "mark_reversed"
	errorCodeSumDaily              = "sum_daily"
	errorCodeSumTotal              = "sum_total"
)

// Store implements txn.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the transactions table.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&TransactionRow{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore txn.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) InsertTransaction(ctx context.Context, transaction txn.Transaction) error {
	row := toRow(transaction)
	err := store.db.WithContext(ctx).Create(&row).Error
	if isReferenceConflict(err) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, txn.ErrDuplicateReference)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetTransaction(ctx context.Context, transactionID string) (txn.Transaction, error) {
	var row TransactionRow
	err := store.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return txn.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, txn.ErrTransactionNotFound)
		}
		return txn.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	return fromRow(row)
}

func (store *Store) GetTransactionByReference(ctx context.Context, reference string) (txn.Transaction, error) {
	var row TransactionRow
	err := store.db.WithContext(ctx).
		Where("transaction_reference = ?", reference).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return txn.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, txn.ErrTransactionNotFound)
		}
		return txn.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	return fromRow(row)
}

func (store *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&TransactionRow{}).
		Where("transaction_reference = ?", reference).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectTransaction, errorCodeLookup, err)
	}
	return count > 0, nil
}

// MarkReversed links the original record to its reversal. The conditional
// WHERE keeps is_reversed a one-way transition: a second caller finds zero
// matching rows.
func (store *Store) MarkReversed(ctx context.Context, transactionID string, reversalReference string) error {
	result := store.db.WithContext(ctx).
		Model(&TransactionRow{}).
		Where("transaction_id = ? AND is_reversed = ?", transactionID, false).
		Updates(map[string]interface{}{
			"is_reversed":        true,
			"reversal_reference": reversalReference,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeMarkReversed, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTransaction, errorCodeMarkReversed, txn.ErrInvalidTransaction)
	}
	return nil
}

func (store *Store) SumDailyPurchases(ctx context.Context, cardID string, dayStart, dayEnd time.Time) (txn.AmountCents, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&TransactionRow{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("card_id = ?", cardID).
		Where("type = ? AND status = ?", txn.TypePurchase.String(), txn.StatusSuccess.String()).
		Where("transaction_date >= ? AND transaction_date < ?", dayStart, dayEnd).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectSpending, errorCodeSumDaily, err)
	}
	return txn.AmountCents(sum.Total), nil
}

func (store *Store) SumPurchases(ctx context.Context, cardID string) (txn.AmountCents, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&TransactionRow{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("card_id = ?", cardID).
		Where("type = ? AND status = ?", txn.TypePurchase.String(), txn.StatusSuccess.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectSpending, errorCodeSumTotal, err)
	}
	return txn.AmountCents(sum.Total), nil
}

func (store *Store) ListByCard(ctx context.Context, cardID string, limit int) ([]txn.Transaction, error) {
	var rows []TransactionRow
	err := store.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("transaction_date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return fromRows(rows)
}

func (store *Store) ListByCustomer(ctx context.Context, customerID string, limit int) ([]txn.Transaction, error) {
	var rows []TransactionRow
	err := store.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("transaction_date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return fromRows(rows)
}

type sqlSum struct {
	Total int64
}

func toRow(transaction txn.Transaction) TransactionRow {
	metadata := transaction.MetadataJSON
	if metadata == "" {
		metadata = defaultMetadataJSON
	}
	return TransactionRow{
		TransactionID:        transaction.TransactionID,
		TransactionReference: transaction.Reference,
		CardID:               transaction.CardID,
		CustomerID:           transaction.CustomerID,
		Type:                 transaction.Type.String(),
		AmountCents:          transaction.AmountCents.Int64(),
		Status:               transaction.Status.String(),
		PreviousBalanceCents: transaction.PreviousBalanceCents.Int64(),
		NewBalanceCents:      transaction.NewBalanceCents.Int64(),
		AuthorizationCode:    optionalString(transaction.AuthorizationCode),
		FailureReason:        optionalString(transaction.FailureReason),
		IsReversed:           transaction.IsReversed,
		ReversalReference:    optionalString(transaction.ReversalReference),
		Metadata:             datatypes.JSON([]byte(metadata)),
		TransactionDate:      transaction.TransactionDate,
	}
}

func fromRow(row TransactionRow) (txn.Transaction, error) {
	transactionType, err := txn.ParseTransactionType(row.Type)
	if err != nil {
		return txn.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	status, err := txn.ParseTransactionStatus(row.Status)
	if err != nil {
		return txn.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return txn.Transaction{
		TransactionID:        row.TransactionID,
		Reference:            row.TransactionReference,
		CardID:               row.CardID,
		CustomerID:           row.CustomerID,
		Type:                 transactionType,
		AmountCents:          txn.AmountCents(row.AmountCents),
		Status:               status,
		PreviousBalanceCents: txn.AmountCents(row.PreviousBalanceCents),
		NewBalanceCents:      txn.AmountCents(row.NewBalanceCents),
		AuthorizationCode:    stringOrEmpty(row.AuthorizationCode),
		FailureReason:        stringOrEmpty(row.FailureReason),
		IsReversed:           row.IsReversed,
		ReversalReference:    stringOrEmpty(row.ReversalReference),
		MetadataJSON:         string(row.Metadata),
		TransactionDate:      row.TransactionDate,
	}, nil
}

func fromRows(rows []TransactionRow) ([]txn.Transaction, error) {
	transactions := make([]txn.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func wrapStoreError(subject string, code string, err error) error {
	return txn.WrapError(errorOperationStore, subject, code, err)
}

func isReferenceConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintTransactionReference
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
