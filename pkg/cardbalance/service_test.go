package cardbalance

import (
	"context"
	"errors"
	"testing"
)

type stubCardStore struct {
	cards map[string]Card
}

func newStubCardStore() *stubCardStore {
	return &stubCardStore{cards: map[string]Card{}}
}

func (store *stubCardStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubCardStore) InsertCard(_ context.Context, card Card) error {
	store.cards[card.CardID] = card
	return nil
}

func (store *stubCardStore) GetCard(_ context.Context, cardID string) (Card, error) {
	card, found := store.cards[cardID]
	if !found {
		return Card{}, ErrCardNotFound
	}
	return card, nil
}

func (store *stubCardStore) GetCardForUpdate(ctx context.Context, cardID string) (Card, error) {
	return store.GetCard(ctx, cardID)
}

func (store *stubCardStore) CardExists(_ context.Context, cardID string) (bool, error) {
	_, found := store.cards[cardID]
	return found, nil
}

func (store *stubCardStore) UpdateAvailableCredit(_ context.Context, cardID string, availableCreditCents int64) error {
	card, found := store.cards[cardID]
	if !found {
		return ErrCardNotFound
	}
	card.AvailableCreditCents = availableCreditCents
	store.cards[cardID] = card
	return nil
}

func mustCardService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store, func() string { return "card-1" })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func seedCard(store *stubCardStore, status CardStatus, limitCents, availableCents int64) {
	store.cards["card-1"] = Card{
		CardID:               "card-1",
		CustomerID:           "cust-1",
		Status:               status,
		CreditLimitCents:     limitCents,
		AvailableCreditCents: availableCents,
		DailyLimitCents:      250_000,
	}
}

func TestCreateCardAssignsIdentifier(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	service := mustCardService(test, store)

	input, err := NewCardInput("cust-1", "active", 1_000_000, 1_000_000, 250_000)
	if err != nil {
		test.Fatalf("input: %v", err)
	}
	card, err := service.CreateCard(context.Background(), input)
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if card.CardID != "card-1" || card.Status != StatusActive {
		test.Fatalf("unexpected card: %+v", card)
	}
	if _, found := store.cards["card-1"]; !found {
		test.Fatalf("card not persisted")
	}
}

func TestApplyDeltaDebitReducesCredit(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	seedCard(store, StatusActive, 1_000_000, 600_000)
	service := mustCardService(test, store)

	card, err := service.ApplyDelta(context.Background(), "card-1", 150_000, true)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if card.AvailableCreditCents != 450_000 {
		test.Fatalf("expected 450000 cents available, got %d", card.AvailableCreditCents)
	}
}

func TestApplyDeltaDebitRejectsInsufficientCredit(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	seedCard(store, StatusActive, 1_000_000, 100_000)
	service := mustCardService(test, store)

	if _, err := service.ApplyDelta(context.Background(), "card-1", 100_001, true); !errors.Is(err, ErrInsufficientCredit) {
		test.Fatalf("expected insufficient credit, got %v", err)
	}
	if store.cards["card-1"].AvailableCreditCents != 100_000 {
		test.Fatalf("balance moved on rejected debit")
	}
}

func TestApplyDeltaCreditClampsAtLimit(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	seedCard(store, StatusActive, 1_000_000, 950_000)
	service := mustCardService(test, store)

	card, err := service.ApplyDelta(context.Background(), "card-1", 200_000, false)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if card.AvailableCreditCents != 1_000_000 {
		test.Fatalf("expected clamp at credit limit, got %d", card.AvailableCreditCents)
	}
}

func TestApplyDeltaRejectsInactiveCard(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	seedCard(store, StatusBlocked, 1_000_000, 600_000)
	service := mustCardService(test, store)

	if _, err := service.ApplyDelta(context.Background(), "card-1", 100, true); !errors.Is(err, ErrCardInactive) {
		test.Fatalf("expected inactive card error, got %v", err)
	}
}

func TestApplyDeltaRejectsNonPositiveAmount(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	seedCard(store, StatusActive, 1_000_000, 600_000)
	service := mustCardService(test, store)

	for _, amount := range []int64{0, -100} {
		if _, err := service.ApplyDelta(context.Background(), "card-1", amount, true); !errors.Is(err, ErrInvalidDeltaAmount) {
			test.Fatalf("amount %d: expected invalid delta error, got %v", amount, err)
		}
	}
}

func TestApplyDeltaUnknownCard(test *testing.T) {
	test.Parallel()
	store := newStubCardStore()
	service := mustCardService(test, store)

	if _, err := service.ApplyDelta(context.Background(), "missing", 100, true); !errors.Is(err, ErrCardNotFound) {
		test.Fatalf("expected not found, got %v", err)
	}
}

func TestNewCardInputValidation(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name      string
		customer  string
		status    string
		limit     int64
		available int64
		daily     int64
		wantErr   error
	}{
		{name: "empty customer", customer: "  ", status: "ACTIVE", limit: 100, available: 100, daily: 50, wantErr: ErrInvalidCard},
		{name: "unknown status", customer: "cust-1", status: "FROZEN", limit: 100, available: 100, daily: 50, wantErr: ErrInvalidCardStatus},
		{name: "zero limit", customer: "cust-1", status: "ACTIVE", limit: 0, available: 0, daily: 50, wantErr: ErrInvalidCard},
		{name: "zero daily limit", customer: "cust-1", status: "ACTIVE", limit: 100, available: 100, daily: 0, wantErr: ErrInvalidCard},
		{name: "negative available", customer: "cust-1", status: "ACTIVE", limit: 100, available: -1, daily: 50, wantErr: ErrInvalidCard},
		{name: "available above limit", customer: "cust-1", status: "ACTIVE", limit: 100, available: 101, daily: 50, wantErr: ErrInvalidCard},
	}
	for _, testCase := range cases {
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, err := NewCardInput(testCase.customer, testCase.status, testCase.limit, testCase.available, testCase.daily)
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewService(nil, func() string { return "" }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected config error for nil store, got %v", err)
	}
	if _, err := NewService(newStubCardStore(), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected config error for nil id generator, got %v", err)
	}
}
