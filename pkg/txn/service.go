package txn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the transaction orchestrator: it coordinates the card service's
// balance ledger and the local transaction store without a shared transaction
// spanning both. The ledger call and the record write are deliberately
// unwrapped; a ledger failure after dispatch is compensated by persisting the
// record as FAILED so operators can reconcile.
type Service struct {
	store  Store
	cards  CardGateway
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, cards CardGateway, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if cards == nil {
		return nil, fmt.Errorf("%w: card gateway dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, cards: cards, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateTransactionInput carries a validated settlement request.
type CreateTransactionInput struct {
	CardID   CardID
	Type     TransactionType
	Amount   AmountCents
	Metadata MetadataJSON
}

// NewCreateTransactionInput validates raw request values into an input.
func NewCreateTransactionInput(cardID string, rawType string, amountCents int64, metadata string) (CreateTransactionInput, error) {
	parsedCardID, err := NewCardID(cardID)
	if err != nil {
		return CreateTransactionInput{}, err
	}
	transactionType, err := ParseTransactionType(rawType)
	if err != nil {
		return CreateTransactionInput{}, err
	}
	amount, err := NewTransactionAmountCents(amountCents)
	if err != nil {
		return CreateTransactionInput{}, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	metadataJSON, err := NewMetadataJSON(metadata)
	if err != nil {
		return CreateTransactionInput{}, err
	}
	return CreateTransactionInput{
		CardID:   parsedCardID,
		Type:     transactionType,
		Amount:   amount,
		Metadata: metadataJSON,
	}, nil
}

// CreateTransaction settles a transaction against the card's balance ledger
// and persists the outcome. Declined debits are persisted before the error is
// surfaced so the attempt stays auditable.
func (service *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error) {
	record, operationError := service.createTransaction(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreate,
		CardID:    input.CardID.String(),
		Reference: record.Reference,
		Type:      input.Type,
		Amount:    input.Amount,
		Outcome:   record.Status,
		Error:     operationError,
	})
	return record, operationError
}

func (service *Service) createTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error) {
	card, err := service.cards.GetCard(ctx, input.CardID.String())
	if err != nil {
		return Transaction{}, err
	}
	if card.Status != CardStatusActive {
		return Transaction{}, fmt.Errorf("%w: card is not active, status %s", ErrInvalidTransaction, card.Status)
	}

	reference, err := service.uniqueReference(ctx)
	if err != nil {
		return Transaction{}, err
	}
	record := Transaction{
		TransactionID:        uuid.NewString(),
		Reference:            reference.String(),
		CardID:               card.CardID,
		CustomerID:           card.CustomerID,
		Type:                 input.Type,
		AmountCents:          input.Amount,
		PreviousBalanceCents: card.AvailableCreditCents,
		NewBalanceCents:      card.AvailableCreditCents,
		MetadataJSON:         input.Metadata.String(),
		TransactionDate:      service.nowFn(),
	}

	var isDebit bool
	switch input.Type.Class() {
	case ClassDebit:
		isDebit = true
		if card.AvailableCreditCents < input.Amount {
			reason := fmt.Sprintf(reasonInsufficient, card.AvailableCreditCents, input.Amount)
			return service.decline(ctx, record, reason, fmt.Errorf("%w: %s", ErrInsufficientBalance, reason))
		}
		// Advisory pre-check against a snapshot; concurrent purchases can
		// jointly exceed the daily limit.
		if input.Type == TypePurchase {
			todaySpend, spendErr := service.dailySpend(ctx, card.CardID)
			if spendErr != nil {
				return Transaction{}, spendErr
			}
			if todaySpend+input.Amount > card.DailyLimitCents {
				reason := fmt.Sprintf(reasonDailyLimit, card.DailyLimitCents, todaySpend, input.Amount)
				return service.decline(ctx, record, reason, fmt.Errorf("%w: %s", ErrInsufficientBalance, reason))
			}
		}
	case ClassCredit:
		isDebit = false
	default:
		return Transaction{}, fmt.Errorf("%w: reversals use the dedicated reverse operation", ErrInvalidTransaction)
	}

	updated, applyErr := service.cards.ApplyBalanceDelta(ctx, card.CardID, input.Amount, isDebit)
	if applyErr != nil {
		record.Status = StatusFailed
		record.FailureReason = fmt.Sprintf(reasonBalanceUpdateFail, applyErr)
		if insertErr := service.store.InsertTransaction(ctx, record); insertErr != nil {
			return Transaction{}, insertErr
		}
		return record, applyErr
	}

	authorizationCode, err := GenerateAuthorizationCode()
	if err != nil {
		return Transaction{}, err
	}
	record.Status = StatusSuccess
	record.NewBalanceCents = updated.AvailableCreditCents
	record.AuthorizationCode = authorizationCode
	if err := service.store.InsertTransaction(ctx, record); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

// decline persists the attempt as DECLINED and surfaces the decline error.
func (service *Service) decline(ctx context.Context, record Transaction, reason string, declineErr error) (Transaction, error) {
	record.Status = StatusDeclined
	record.FailureReason = reason
	if err := service.store.InsertTransaction(ctx, record); err != nil {
		return Transaction{}, err
	}
	return record, declineErr
}

func (service *Service) dailySpend(ctx context.Context, cardID string) (AmountCents, error) {
	now := service.nowFn()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return service.store.SumDailyPurchases(ctx, cardID, dayStart, dayStart.Add(24*time.Hour))
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
