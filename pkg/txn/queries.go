package txn

import "context"

// GetTransaction fetches a transaction by id.
func (service *Service) GetTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	parsedID, err := NewTransactionID(transactionID)
	if err != nil {
		return Transaction{}, err
	}
	return service.store.GetTransaction(ctx, parsedID.String())
}

// GetTransactionByReference fetches a transaction by its unique reference.
func (service *Service) GetTransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	parsedReference, err := NewTransactionReference(reference)
	if err != nil {
		return Transaction{}, err
	}
	return service.store.GetTransactionByReference(ctx, parsedReference.String())
}

// DailySpending sums successful purchases for the card on the current
// server-local calendar day.
func (service *Service) DailySpending(ctx context.Context, cardID string) (AmountCents, error) {
	parsedCardID, err := NewCardID(cardID)
	if err != nil {
		return 0, err
	}
	return service.dailySpend(ctx, parsedCardID.String())
}

// TotalSpending sums all successful purchases for the card.
func (service *Service) TotalSpending(ctx context.Context, cardID string) (AmountCents, error) {
	parsedCardID, err := NewCardID(cardID)
	if err != nil {
		return 0, err
	}
	return service.store.SumPurchases(ctx, parsedCardID.String())
}

// ListByCard returns the card's most recent transactions, newest first.
func (service *Service) ListByCard(ctx context.Context, cardID string, limit int) ([]Transaction, error) {
	parsedCardID, err := NewCardID(cardID)
	if err != nil {
		return nil, err
	}
	return service.store.ListByCard(ctx, parsedCardID.String(), clampListLimit(limit))
}

// ListByCustomer returns the customer's most recent transactions, newest first.
func (service *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Transaction, error) {
	if customerID == "" {
		return nil, WrapError("service", "customer", "invalid", ErrInvalidTransaction)
	}
	return service.store.ListByCustomer(ctx, customerID, clampListLimit(limit))
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
