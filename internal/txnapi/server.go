// Package txnapi exposes the transaction orchestrator over the public REST API.
package txnapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/CrestPayLabs/cardledger/pkg/txn"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config carries the handler wiring for the transaction API.
type Config struct {
	Transactions   *txn.Service
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter builds the gin engine for the public transaction API.
func NewRouter(cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := &transactionHandler{transactions: cfg.Transactions, logger: cfg.Logger}

	api := router.Group("/api/v1")
	api.POST("/transactions", handler.handleCreate)
	api.POST("/transactions/:id/reverse", handler.handleReverse)
	api.GET("/transactions/:id", handler.handleGet)
	api.GET("/transactions/reference/:ref", handler.handleGetByReference)
	api.GET("/transactions/card/:cardId", handler.handleListByCard)
	api.GET("/transactions/card/:cardId/daily-spending", handler.handleDailySpending)
	api.GET("/transactions/card/:cardId/total-spending", handler.handleTotalSpending)
	api.GET("/transactions/customer/:customerId", handler.handleListByCustomer)

	return router
}

type transactionHandler struct {
	transactions *txn.Service
	logger       *zap.Logger
}

type createTransactionRequest struct {
	CardID           string `json:"cardId"`
	Type             string `json:"type"`
	AmountCents      int64  `json:"amountCents"`
	Description      string `json:"description,omitempty"`
	MerchantName     string `json:"merchantName,omitempty"`
	MerchantCategory string `json:"merchantCategory,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type transactionPayload struct {
	TransactionID        string          `json:"transactionId"`
	TransactionReference string          `json:"transactionReference"`
	CardID               string          `json:"cardId"`
	CustomerID           string          `json:"customerId"`
	Type                 string          `json:"type"`
	AmountCents          int64           `json:"amountCents"`
	Status               string          `json:"status"`
	PreviousBalanceCents int64           `json:"previousBalanceCents"`
	NewBalanceCents      int64           `json:"newBalanceCents"`
	AuthorizationCode    string          `json:"authorizationCode,omitempty"`
	FailureReason        string          `json:"failureReason,omitempty"`
	IsReversed           bool            `json:"isReversed"`
	ReversalReference    string          `json:"reversalReference,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	TransactionDate      time.Time       `json:"transactionDate"`
}

func toTransactionPayload(transaction txn.Transaction) transactionPayload {
	return transactionPayload{
		TransactionID:        transaction.TransactionID,
		TransactionReference: transaction.Reference,
		CardID:               transaction.CardID,
		CustomerID:           transaction.CustomerID,
		Type:                 transaction.Type.String(),
		AmountCents:          transaction.AmountCents.Int64(),
		Status:               transaction.Status.String(),
		PreviousBalanceCents: transaction.PreviousBalanceCents.Int64(),
		NewBalanceCents:      transaction.NewBalanceCents.Int64(),
		AuthorizationCode:    transaction.AuthorizationCode,
		FailureReason:        transaction.FailureReason,
		IsReversed:           transaction.IsReversed,
		ReversalReference:    transaction.ReversalReference,
		Metadata:             json.RawMessage(transaction.MetadataJSON),
		TransactionDate:      transaction.TransactionDate,
	}
}

func (handler *transactionHandler) handleCreate(ctx *gin.Context) {
	var request createTransactionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		respondError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}
	metadata, err := encodeMetadata(request)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid metadata")
		return
	}
	input, err := txn.NewCreateTransactionInput(request.CardID, request.Type, request.AmountCents, metadata)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	transaction, err := handler.transactions.CreateTransaction(ctx.Request.Context(), input)
	if err != nil {
		// Declined and failed attempts are persisted; return the record
		// alongside the error so callers can inspect it.
		handler.respondDomainError(ctx, err, &transaction)
		return
	}
	respondData(ctx, http.StatusCreated, "transaction created", toTransactionPayload(transaction))
}

func (handler *transactionHandler) handleReverse(ctx *gin.Context) {
	reversal, err := handler.transactions.Reverse(ctx.Request.Context(), ctx.Param("id"), ctx.Query("reason"))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "transaction reversed", toTransactionPayload(reversal))
}

func (handler *transactionHandler) handleGet(ctx *gin.Context) {
	transaction, err := handler.transactions.GetTransaction(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "transaction retrieved", toTransactionPayload(transaction))
}

func (handler *transactionHandler) handleGetByReference(ctx *gin.Context) {
	transaction, err := handler.transactions.GetTransactionByReference(ctx.Request.Context(), ctx.Param("ref"))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "transaction retrieved", toTransactionPayload(transaction))
}

func (handler *transactionHandler) handleDailySpending(ctx *gin.Context) {
	spending, err := handler.transactions.DailySpending(ctx.Request.Context(), ctx.Param("cardId"))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "daily spending computed", spending.Int64())
}

func (handler *transactionHandler) handleTotalSpending(ctx *gin.Context) {
	spending, err := handler.transactions.TotalSpending(ctx.Request.Context(), ctx.Param("cardId"))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "total spending computed", spending.Int64())
}

func (handler *transactionHandler) handleListByCard(ctx *gin.Context) {
	transactions, err := handler.transactions.ListByCard(ctx.Request.Context(), ctx.Param("cardId"), parseLimit(ctx))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "transactions listed", toTransactionPayloads(transactions))
}

func (handler *transactionHandler) handleListByCustomer(ctx *gin.Context) {
	transactions, err := handler.transactions.ListByCustomer(ctx.Request.Context(), ctx.Param("customerId"), parseLimit(ctx))
	if err != nil {
		handler.respondDomainError(ctx, err, nil)
		return
	}
	respondData(ctx, http.StatusOK, "transactions listed", toTransactionPayloads(transactions))
}

func toTransactionPayloads(transactions []txn.Transaction) []transactionPayload {
	payloads := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payloads = append(payloads, toTransactionPayload(transaction))
	}
	return payloads
}

func parseLimit(ctx *gin.Context) int {
	raw := ctx.Query("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

func encodeMetadata(request createTransactionRequest) (string, error) {
	fields := map[string]string{}
	if request.Description != "" {
		fields["description"] = request.Description
	}
	if request.MerchantName != "" {
		fields["merchantName"] = request.MerchantName
	}
	if request.MerchantCategory != "" {
		fields["merchantCategory"] = request.MerchantCategory
	}
	if request.Notes != "" {
		fields["notes"] = request.Notes
	}
	if len(fields) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (handler *transactionHandler) respondDomainError(ctx *gin.Context, err error, record *txn.Transaction) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, txn.ErrCardNotFound), errors.Is(err, txn.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, txn.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, txn.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, txn.ErrInvalidTransaction),
		errors.Is(err, txn.ErrInvalidCardID),
		errors.Is(err, txn.ErrInvalidTransactionID),
		errors.Is(err, txn.ErrInvalidTransactionType),
		errors.Is(err, txn.ErrInvalidAmountCents),
		errors.Is(err, txn.ErrInvalidReference),
		errors.Is(err, txn.ErrInvalidMetadataJSON):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		handler.logger.Error("transaction api internal error", zap.Error(err))
	}
	body := gin.H{
		"success": false,
		"message": err.Error(),
	}
	if record != nil && record.TransactionID != "" {
		body["data"] = toTransactionPayload(*record)
	}
	ctx.JSON(status, body)
}

func respondData(ctx *gin.Context, status int, message string, data interface{}) {
	ctx.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}
