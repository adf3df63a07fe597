package txn

import (
	"context"
	"testing"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsCreateOperation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{card: testCard()}
	logger := &recorderLogger{}
	service := mustNewService(test, store, gateway, WithOperationLogger(logger))

	transaction, err := service.CreateTransaction(context.Background(), mustInput(test, "card-1", "PURCHASE", 50_000))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationCreate || entry.Reference != transaction.Reference || entry.Amount != 50_000 {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Error != nil || entry.Status != operationStatusOK {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	card := testCard()
	card.Status = CardStatusClosed
	gateway := &stubGateway{card: card}
	logger := &recorderLogger{}
	service := mustNewService(test, store, gateway, WithOperationLogger(logger))

	if _, err := service.CreateTransaction(context.Background(), mustInput(test, "card-1", "PURCHASE", 50_000)); err == nil {
		test.Fatalf("expected error")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	if logger.entries[0].Status != operationStatusError || logger.entries[0].Error == nil {
		test.Fatalf("expected error log entry, got %+v", logger.entries[0])
	}
}
