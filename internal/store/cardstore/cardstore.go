// Package cardstore persists balance-ledger card rows with GORM.
package cardstore

import (
	"context"
	"errors"
	"time"

	"github.com/CrestPayLabs/cardledger/pkg/cardbalance"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorOperationStore = "store"
	errorSubjectCard    = "card"
	errorCodeGet        = "get"
	errorCodeInsert     = "insert"
	errorCodeInvalid    = "invalid"
	errorCodeLookup     = "lookup"
	errorCodeUpdate     = "update"
)

// CardRow mirrors the cards table.
type CardRow struct {
	CardID               string    `gorm:"type:uuid;primaryKey"`
	CustomerID           string    `gorm:"not null;index:idx_cards_customer"`
	Status               string    `gorm:"size:20;not null"`
	CreditLimitCents     int64     `gorm:"not null"`
	AvailableCreditCents int64     `gorm:"not null"`
	DailyLimitCents      int64     `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (CardRow) TableName() string { return "cards" }

func (row *CardRow) BeforeCreate(tx *gorm.DB) error {
	if row.CardID == "" {
		row.CardID = uuid.NewString()
	}
	return nil
}

// Store implements cardbalance.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the cards table.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&CardRow{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore cardbalance.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) InsertCard(ctx context.Context, card cardbalance.Card) error {
	row := CardRow{
		CardID:               card.CardID,
		CustomerID:           card.CustomerID,
		Status:               card.Status.String(),
		CreditLimitCents:     card.CreditLimitCents,
		AvailableCreditCents: card.AvailableCreditCents,
		DailyLimitCents:      card.DailyLimitCents,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetCard(ctx context.Context, cardID string) (cardbalance.Card, error) {
	return store.getCard(ctx, cardID, false)
}

// GetCardForUpdate locks the card row until the enclosing transaction ends.
func (store *Store) GetCardForUpdate(ctx context.Context, cardID string) (cardbalance.Card, error) {
	return store.getCard(ctx, cardID, true)
}

func (store *Store) getCard(ctx context.Context, cardID string, forUpdate bool) (cardbalance.Card, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row CardRow
	err := query.Where("card_id = ?", cardID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cardbalance.Card{}, wrapStoreError(errorCodeGet, cardbalance.ErrCardNotFound)
		}
		return cardbalance.Card{}, wrapStoreError(errorCodeGet, err)
	}
	status, err := cardbalance.ParseCardStatus(row.Status)
	if err != nil {
		return cardbalance.Card{}, wrapStoreError(errorCodeInvalid, err)
	}
	return cardbalance.Card{
		CardID:               row.CardID,
		CustomerID:           row.CustomerID,
		Status:               status,
		CreditLimitCents:     row.CreditLimitCents,
		AvailableCreditCents: row.AvailableCreditCents,
		DailyLimitCents:      row.DailyLimitCents,
	}, nil
}

func (store *Store) CardExists(ctx context.Context, cardID string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&CardRow{}).
		Where("card_id = ?", cardID).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) UpdateAvailableCredit(ctx context.Context, cardID string, availableCreditCents int64) error {
	result := store.db.WithContext(ctx).
		Model(&CardRow{}).
		Where("card_id = ?", cardID).
		Update("available_credit_cents", availableCreditCents)
	if result.Error != nil {
		return wrapStoreError(errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorCodeUpdate, cardbalance.ErrCardNotFound)
	}
	return nil
}

func wrapStoreError(code string, err error) error {
	return cardbalance.WrapError(errorOperationStore, errorSubjectCard, code, err)
}
