package txn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Reverse undoes a previously successful PURCHASE or PAYMENT by applying the
// opposite balance delta for the same amount and linking both records.
//
// Unlike the create path, nothing is persisted when the ledger rejects the
// delta: the ledger call happens first, and the two record writes land in one
// store transaction only after the ledger confirms.
func (service *Service) Reverse(ctx context.Context, transactionID string, reason string) (Transaction, error) {
	reversal, operationError := service.reverse(ctx, transactionID, reason)
	service.logOperation(ctx, OperationLog{
		Operation: operationReverse,
		CardID:    reversal.CardID,
		Reference: reversal.Reference,
		Type:      TypeReversal,
		Amount:    reversal.AmountCents,
		Outcome:   reversal.Status,
		Error:     operationError,
	})
	return reversal, operationError
}

func (service *Service) reverse(ctx context.Context, transactionID string, reason string) (Transaction, error) {
	parsedID, err := NewTransactionID(transactionID)
	if err != nil {
		return Transaction{}, err
	}
	original, err := service.store.GetTransaction(ctx, parsedID.String())
	if err != nil {
		return Transaction{}, err
	}
	if !original.CanBeReversed() {
		return Transaction{}, fmt.Errorf(
			"%w: transaction cannot be reversed, status %s, type %s, already reversed %t",
			ErrInvalidTransaction, original.Status, original.Type, original.IsReversed,
		)
	}

	// The reversal applies the inverse effect: undoing a debit credits the
	// card, undoing a credit debits it.
	reversalIsDebit := original.Type.Class() == ClassCredit

	updated, applyErr := service.cards.ApplyBalanceDelta(ctx, original.CardID, original.AmountCents, reversalIsDebit)
	if applyErr != nil {
		return Transaction{}, fmt.Errorf("%w: reversal failed: %v", ErrInvalidTransaction, applyErr)
	}

	reference, err := service.uniqueReference(ctx)
	if err != nil {
		return Transaction{}, err
	}
	authorizationCode, err := GenerateAuthorizationCode()
	if err != nil {
		return Transaction{}, err
	}
	metadata, err := reversalMetadata(original.Reference, reason)
	if err != nil {
		return Transaction{}, err
	}
	reversal := Transaction{
		TransactionID:        uuid.NewString(),
		Reference:            reference.String(),
		CardID:               original.CardID,
		CustomerID:           original.CustomerID,
		Type:                 TypeReversal,
		AmountCents:          original.AmountCents,
		Status:               StatusSuccess,
		PreviousBalanceCents: original.NewBalanceCents,
		NewBalanceCents:      updated.AvailableCreditCents,
		AuthorizationCode:    authorizationCode,
		MetadataJSON:         metadata.String(),
		TransactionDate:      service.nowFn(),
	}

	err = service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if insertErr := txStore.InsertTransaction(ctx, reversal); insertErr != nil {
			return insertErr
		}
		return txStore.MarkReversed(ctx, original.TransactionID, reversal.Reference)
	})
	if err != nil {
		return Transaction{}, err
	}
	return reversal, nil
}

func reversalMetadata(originalReference string, reason string) (MetadataJSON, error) {
	payload := struct {
		Description       string `json:"description"`
		OriginalReference string `json:"originalReference"`
		Reason            string `json:"reason,omitempty"`
	}{
		Description:       "Reversal of transaction: " + originalReference,
		OriginalReference: originalReference,
		Reason:            reason,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return MetadataJSON{}, fmt.Errorf("%w: %v", ErrInvalidMetadataJSON, err)
	}
	return NewMetadataJSON(string(encoded))
}
