package txn

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// AmountCents is an integer currency amount in cents.
type AmountCents int64

// Int64 returns the raw cent value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// MaxTransactionAmountCents caps a single transaction at 1,000,000.00.
const MaxTransactionAmountCents = AmountCents(100_000_000)

// NewTransactionAmountCents validates a transaction amount: strictly positive
// and at most MaxTransactionAmountCents.
func NewTransactionAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	if raw > MaxTransactionAmountCents.Int64() {
		return 0, fmt.Errorf("%w: exceeds maximum of %d cents", ErrInvalidAmountCents, MaxTransactionAmountCents)
	}
	return AmountCents(raw), nil
}

// CardID identifies a card owned by the card service.
type CardID struct {
	value string
}

// NewCardID validates and normalizes a card id.
func NewCardID(raw string) (CardID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CardID{}, fmt.Errorf("%w: empty value", ErrInvalidCardID)
	}
	return CardID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CardID) String() string {
	return id.value
}

// TransactionID identifies a stored transaction.
type TransactionID struct {
	value string
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// MetadataJSON stores optional caller metadata (description, merchant, notes).
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates a metadata string (defaulting to "{}" when empty).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// TransactionType enumerates the supported transaction kinds.
type TransactionType string

const (
	TypePurchase    TransactionType = "PURCHASE"
	TypeRefund      TransactionType = "REFUND"
	TypePayment     TransactionType = "PAYMENT"
	TypeCashAdvance TransactionType = "CASH_ADVANCE"
	TypeFee         TransactionType = "FEE"
	TypeReversal    TransactionType = "REVERSAL"
)

// TransactionClass partitions transaction types by their balance effect.
type TransactionClass int

const (
	// ClassDebit reduces available credit.
	ClassDebit TransactionClass = iota
	// ClassCredit increases available credit, clamped at the credit limit.
	ClassCredit
	// ClassRejected is not accepted on the create path.
	ClassRejected
)

var transactionClasses = map[TransactionType]TransactionClass{
	TypePurchase:    ClassDebit,
	TypeCashAdvance: ClassDebit,
	TypeFee:         ClassDebit,
	TypeRefund:      ClassCredit,
	TypePayment:     ClassCredit,
	TypeReversal:    ClassRejected,
}

// ParseTransactionType validates a raw transaction type string.
func ParseTransactionType(raw string) (TransactionType, error) {
	candidate := TransactionType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, known := transactionClasses[candidate]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
	return candidate, nil
}

// String returns the canonical type name.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// Class returns the balance-effect class of the type.
func (transactionType TransactionType) Class() TransactionClass {
	class, known := transactionClasses[transactionType]
	if !known {
		return ClassRejected
	}
	return class
}

// TransactionStatus enumerates transaction outcomes.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusSuccess    TransactionStatus = "SUCCESS"
	StatusFailed     TransactionStatus = "FAILED"
	StatusReversed   TransactionStatus = "REVERSED"
	StatusDeclined   TransactionStatus = "DECLINED"
)

var transactionStatuses = map[TransactionStatus]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusSuccess:    {},
	StatusFailed:     {},
	StatusReversed:   {},
	StatusDeclined:   {},
}

// ParseTransactionStatus validates a raw status string.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	candidate := TransactionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, known := transactionStatuses[candidate]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionStatus, raw)
	}
	return candidate, nil
}

// String returns the canonical status name.
func (status TransactionStatus) String() string {
	return string(status)
}

var referencePattern = regexp.MustCompile(`^TXN-\d{14}-[A-Z0-9]{6}$`)

// TransactionReference is the globally unique external handle of a transaction.
type TransactionReference struct {
	value string
}

// NewTransactionReference validates the TXN-<timestamp>-<alnum> format.
func NewTransactionReference(raw string) (TransactionReference, error) {
	trimmed := strings.TrimSpace(raw)
	if !referencePattern.MatchString(trimmed) {
		return TransactionReference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	return TransactionReference{value: trimmed}, nil
}

// String returns the reference string.
func (reference TransactionReference) String() string {
	return reference.value
}

// Transaction is the durable record of a single settlement attempt.
type Transaction struct {
	TransactionID        string
	Reference            string
	CardID               string
	CustomerID           string
	Type                 TransactionType
	AmountCents          AmountCents
	Status               TransactionStatus
	PreviousBalanceCents AmountCents
	NewBalanceCents      AmountCents
	AuthorizationCode    string
	FailureReason        string
	IsReversed           bool
	ReversalReference    string
	MetadataJSON         string
	TransactionDate      time.Time
}

// Successful reports whether the transaction settled.
func (transaction Transaction) Successful() bool {
	return transaction.Status == StatusSuccess
}

// CanBeReversed reports whether the transaction is eligible for reversal:
// settled, not yet reversed, and of a reversible type.
func (transaction Transaction) CanBeReversed() bool {
	if !transaction.Successful() || transaction.IsReversed {
		return false
	}
	return transaction.Type == TypePurchase || transaction.Type == TypePayment
}
