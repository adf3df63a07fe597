package txnstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	TransactionID        string         `gorm:"type:uuid;primaryKey"`
	TransactionReference string         `gorm:"size:50;not null;index:uniq_txn_reference,unique"`
	CardID               string         `gorm:"not null;index:idx_txn_card_date,priority:1"`
	CustomerID           string         `gorm:"not null;index:idx_txn_customer"`
	Type                 string         `gorm:"size:20;not null;index:idx_txn_type"`
	AmountCents          int64          `gorm:"not null"`
	Status               string         `gorm:"size:20;not null;index:idx_txn_status"`
	PreviousBalanceCents int64          `gorm:"not null"`
	NewBalanceCents      int64          `gorm:"not null"`
	AuthorizationCode    *string        `gorm:"size:50"`
	FailureReason        *string        `gorm:"size:500"`
	IsReversed           bool           `gorm:"not null;default:false"`
	ReversalReference    *string        `gorm:"size:50"`
	Metadata             datatypes.JSON `gorm:"type:jsonb;not null"`
	TransactionDate      time.Time      `gorm:"not null;index:idx_txn_card_date,priority:2"`
	CreatedAt            time.Time      `gorm:"not null"`
	UpdatedAt            time.Time      `gorm:"not null"`
}

func (TransactionRow) TableName() string { return "transactions" }

func (row *TransactionRow) BeforeCreate(tx *gorm.DB) error {
	if row.TransactionID == "" {
		row.TransactionID = uuid.NewString()
	}
	return nil
}
