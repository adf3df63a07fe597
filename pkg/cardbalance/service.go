package cardbalance

import (
	"context"
	"fmt"
)

// Store is the persistence contract for card rows. GetCardForUpdate must lock
// the row for the duration of the enclosing transaction so ApplyDelta is an
// atomic read-modify-write under concurrent callers.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertCard(ctx context.Context, card Card) error
	GetCard(ctx context.Context, cardID string) (Card, error)
	GetCardForUpdate(ctx context.Context, cardID string) (Card, error)
	CardExists(ctx context.Context, cardID string) (bool, error)
	UpdateAvailableCredit(ctx context.Context, cardID string, availableCreditCents int64) error
}

// Service owns the balance ledger: card credit state and its single mutation
// path, ApplyDelta.
type Service struct {
	store Store
	idFn  func() string
}

// NewService wires a Service. idFn supplies new card identifiers.
func NewService(store Store, idFn func() string) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if idFn == nil {
		return nil, fmt.Errorf("%w: id generator dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{store: store, idFn: idFn}, nil
}

// CreateCard inserts a new card row with validated credit state.
func (service *Service) CreateCard(ctx context.Context, input CardInput) (Card, error) {
	card := Card{
		CardID:               service.idFn(),
		CustomerID:           input.CustomerID,
		Status:               input.Status,
		CreditLimitCents:     input.CreditLimitCents,
		AvailableCreditCents: input.AvailableCreditCents,
		DailyLimitCents:      input.DailyLimitCents,
	}
	if err := service.store.InsertCard(ctx, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// GetCard fetches a card's current credit state.
func (service *Service) GetCard(ctx context.Context, cardID string) (Card, error) {
	return service.store.GetCard(ctx, cardID)
}

// CardExists reports whether a card row exists.
func (service *Service) CardExists(ctx context.Context, cardID string) (bool, error) {
	return service.store.CardExists(ctx, cardID)
}

// ApplyDelta atomically mutates available credit under a row lock.
//
// A debit is rejected (never clamped) when the locked row shows insufficient
// credit, regardless of what any earlier caller snapshot showed. A credit is
// clamped at the credit limit so available credit never overshoots it.
func (service *Service) ApplyDelta(ctx context.Context, cardID string, amountCents int64, isDebit bool) (Card, error) {
	if amountCents <= 0 {
		return Card{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidDeltaAmount)
	}
	var updated Card
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		card, err := txStore.GetCardForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if card.Status != StatusActive {
			return fmt.Errorf("%w: status %s", ErrCardInactive, card.Status)
		}
		newAvailable := card.AvailableCreditCents
		if isDebit {
			if card.AvailableCreditCents < amountCents {
				return fmt.Errorf(
					"%w: available %d cents, required %d cents",
					ErrInsufficientCredit, card.AvailableCreditCents, amountCents,
				)
			}
			newAvailable -= amountCents
		} else {
			newAvailable += amountCents
			if newAvailable > card.CreditLimitCents {
				newAvailable = card.CreditLimitCents
			}
		}
		if err := txStore.UpdateAvailableCredit(ctx, cardID, newAvailable); err != nil {
			return err
		}
		card.AvailableCreditCents = newAvailable
		updated = card
		return nil
	})
	if err != nil {
		return Card{}, err
	}
	return updated, nil
}
