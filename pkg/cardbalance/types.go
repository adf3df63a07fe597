package cardbalance

import (
	"fmt"
	"strings"
)

// CardStatus defines the card lifecycle.
type CardStatus string

const (
	StatusActive   CardStatus = "ACTIVE"
	StatusInactive CardStatus = "INACTIVE"
	StatusBlocked  CardStatus = "BLOCKED"
	StatusExpired  CardStatus = "EXPIRED"
	StatusClosed   CardStatus = "CLOSED"
)

var cardStatuses = map[CardStatus]struct{}{
	StatusActive:   {},
	StatusInactive: {},
	StatusBlocked:  {},
	StatusExpired:  {},
	StatusClosed:   {},
}

// ParseCardStatus validates a raw status string.
func ParseCardStatus(raw string) (CardStatus, error) {
	candidate := CardStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, known := cardStatuses[candidate]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidCardStatus, raw)
	}
	return candidate, nil
}

// String returns the canonical status name.
func (status CardStatus) String() string {
	return string(status)
}

// Card is the ledger's authoritative view of a card's credit state.
//
// Invariant: 0 ≤ AvailableCreditCents ≤ CreditLimitCents, enforced by
// Service.ApplyDelta as the single mutation path.
type Card struct {
	CardID               string
	CustomerID           string
	Status               CardStatus
	CreditLimitCents     int64
	AvailableCreditCents int64
	DailyLimitCents      int64
}

// CardInput carries a validated request to create a card row.
type CardInput struct {
	CustomerID           string
	Status               CardStatus
	CreditLimitCents     int64
	AvailableCreditCents int64
	DailyLimitCents      int64
}

// NewCardInput validates the credit-state invariants for a new card.
func NewCardInput(customerID string, rawStatus string, creditLimitCents, availableCreditCents, dailyLimitCents int64) (CardInput, error) {
	trimmedCustomer := strings.TrimSpace(customerID)
	if trimmedCustomer == "" {
		return CardInput{}, fmt.Errorf("%w: empty customer id", ErrInvalidCard)
	}
	status, err := ParseCardStatus(rawStatus)
	if err != nil {
		return CardInput{}, err
	}
	if creditLimitCents <= 0 {
		return CardInput{}, fmt.Errorf("%w: credit limit must be positive", ErrInvalidCard)
	}
	if dailyLimitCents <= 0 {
		return CardInput{}, fmt.Errorf("%w: daily limit must be positive", ErrInvalidCard)
	}
	if availableCreditCents < 0 || availableCreditCents > creditLimitCents {
		return CardInput{}, fmt.Errorf("%w: available credit outside [0, credit limit]", ErrInvalidCard)
	}
	return CardInput{
		CustomerID:           trimmedCustomer,
		Status:               status,
		CreditLimitCents:     creditLimitCents,
		AvailableCreditCents: availableCreditCents,
		DailyLimitCents:      dailyLimitCents,
	}, nil
}
