package txn

import "context"

// CardStatus mirrors the card service's lifecycle states.
type CardStatus string

const (
	CardStatusActive   CardStatus = "ACTIVE"
	CardStatusInactive CardStatus = "INACTIVE"
	CardStatusBlocked  CardStatus = "BLOCKED"
	CardStatusExpired  CardStatus = "EXPIRED"
	CardStatusClosed   CardStatus = "CLOSED"
)

// Card is the orchestrator's read view of a card owned by the card service.
type Card struct {
	CardID               string
	CustomerID           string
	Status               CardStatus
	CreditLimitCents     AmountCents
	AvailableCreditCents AmountCents
	DailyLimitCents      AmountCents
}

// CardGateway is the remote balance-ledger contract the orchestrator calls.
//
// ApplyBalanceDelta is the single authority for the post-transaction balance:
// it re-validates debit sufficiency at application time (rejecting with
// ErrInsufficientBalance even when the caller's earlier snapshot showed
// sufficiency) and clamps credits at the credit limit. Implementations map
// transport failures to ErrServiceUnavailable and must not retry a delta once
// the request has been dispatched.
type CardGateway interface {
	GetCard(ctx context.Context, cardID string) (Card, error)
	CardExists(ctx context.Context, cardID string) (bool, error)
	ApplyBalanceDelta(ctx context.Context, cardID string, amount AmountCents, isDebit bool) (Card, error)
}
