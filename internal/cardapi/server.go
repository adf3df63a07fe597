// Package cardapi exposes the balance ledger over an internal REST API.
package cardapi

import (
	"errors"
	"net/http"

	"github.com/CrestPayLabs/cardledger/internal/svcauth"
	"github.com/CrestPayLabs/cardledger/pkg/cardbalance"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config carries the handler wiring for the card API.
type Config struct {
	Cards         *cardbalance.Service
	Logger        *zap.Logger
	ServiceSecret string
}

// NewRouter builds the gin engine for the internal card API.
func NewRouter(cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := &cardHandler{cards: cfg.Cards, logger: cfg.Logger}

	internal := router.Group("/internal/v1")
	internal.Use(svcauth.GinMiddleware(cfg.ServiceSecret))
	internal.POST("/cards", handler.handleCreateCard)
	internal.GET("/cards/:id", handler.handleGetCard)
	internal.GET("/cards/:id/exists", handler.handleCardExists)
	internal.POST("/cards/:id/balance", handler.handleApplyDelta)

	return router
}

type cardHandler struct {
	cards  *cardbalance.Service
	logger *zap.Logger
}

type createCardRequest struct {
	CustomerID           string `json:"customerId"`
	Status               string `json:"status"`
	CreditLimitCents     int64  `json:"creditLimitCents"`
	AvailableCreditCents int64  `json:"availableCreditCents"`
	DailyLimitCents      int64  `json:"dailyLimitCents"`
}

type balanceDeltaRequest struct {
	AmountCents int64 `json:"amountCents"`
	IsDebit     bool  `json:"isDebit"`
}

type cardPayload struct {
	CardID               string `json:"cardId"`
	CustomerID           string `json:"customerId"`
	Status               string `json:"status"`
	CreditLimitCents     int64  `json:"creditLimitCents"`
	AvailableCreditCents int64  `json:"availableCreditCents"`
	DailyLimitCents      int64  `json:"dailyLimitCents"`
}

func toCardPayload(card cardbalance.Card) cardPayload {
	return cardPayload{
		CardID:               card.CardID,
		CustomerID:           card.CustomerID,
		Status:               card.Status.String(),
		CreditLimitCents:     card.CreditLimitCents,
		AvailableCreditCents: card.AvailableCreditCents,
		DailyLimitCents:      card.DailyLimitCents,
	}
}

func (handler *cardHandler) handleCreateCard(ctx *gin.Context) {
	var request createCardRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		respondError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}
	input, err := cardbalance.NewCardInput(
		request.CustomerID,
		request.Status,
		request.CreditLimitCents,
		request.AvailableCreditCents,
		request.DailyLimitCents,
	)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	card, err := handler.cards.CreateCard(ctx.Request.Context(), input)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	respondData(ctx, http.StatusCreated, "card created", toCardPayload(card))
}

func (handler *cardHandler) handleGetCard(ctx *gin.Context) {
	card, err := handler.cards.GetCard(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, "card retrieved", toCardPayload(card))
}

func (handler *cardHandler) handleCardExists(ctx *gin.Context) {
	exists, err := handler.cards.CardExists(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, "card existence checked", exists)
}

func (handler *cardHandler) handleApplyDelta(ctx *gin.Context) {
	var request balanceDeltaRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		respondError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}
	card, err := handler.cards.ApplyDelta(ctx.Request.Context(), ctx.Param("id"), request.AmountCents, request.IsDebit)
	if err != nil {
		handler.respondDomainError(ctx, err)
		return
	}
	respondData(ctx, http.StatusOK, "balance updated", toCardPayload(card))
}

func (handler *cardHandler) respondDomainError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cardbalance.ErrCardNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cardbalance.ErrInsufficientCredit):
		status = http.StatusPaymentRequired
	case errors.Is(err, cardbalance.ErrCardInactive),
		errors.Is(err, cardbalance.ErrInvalidCard),
		errors.Is(err, cardbalance.ErrInvalidCardStatus),
		errors.Is(err, cardbalance.ErrInvalidDeltaAmount):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		handler.logger.Error("card api internal error", zap.Error(err))
	}
	respondError(ctx, status, err.Error())
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
