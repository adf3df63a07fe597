// Package zaplog adapts zap to the transaction domain's operation logger.
package zaplog

import (
	"context"

	"github.com/CrestPayLabs/cardledger/pkg/txn"
	"go.uber.org/zap"
)

// OperationLogger writes txn.OperationLog entries through zap.
type OperationLogger struct {
	logger *zap.Logger
}

// New wires an OperationLogger.
func New(logger *zap.Logger) *OperationLogger {
	return &OperationLogger{logger: logger}
}

// LogOperation records one domain operation outcome.
func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry txn.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("card_id", entry.CardID),
		zap.String("reference", entry.Reference),
		zap.String("type", entry.Type.String()),
		zap.Int64("amount_cents", entry.Amount.Int64()),
		zap.String("outcome", entry.Outcome.String()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("transaction operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("transaction operation", fields...)
}
