package txnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/CrestPayLabs/cardledger/internal/store/txnstore"
	"github.com/CrestPayLabs/cardledger/pkg/txn"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ledgerStub stands in for the card service with the same delta semantics:
// debits reject on insufficient credit, credits clamp at the limit.
type ledgerStub struct {
	mu    sync.Mutex
	cards map[string]txn.Card
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{cards: map[string]txn.Card{}}
}

func (stub *ledgerStub) GetCard(_ context.Context, cardID string) (txn.Card, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	card, found := stub.cards[cardID]
	if !found {
		return txn.Card{}, txn.ErrCardNotFound
	}
	return card, nil
}

func (stub *ledgerStub) CardExists(_ context.Context, cardID string) (bool, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	_, found := stub.cards[cardID]
	return found, nil
}

func (stub *ledgerStub) ApplyBalanceDelta(_ context.Context, cardID string, amount txn.AmountCents, isDebit bool) (txn.Card, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	card, found := stub.cards[cardID]
	if !found {
		return txn.Card{}, txn.ErrCardNotFound
	}
	if isDebit {
		if card.AvailableCreditCents < amount {
			return txn.Card{}, txn.ErrInsufficientBalance
		}
		card.AvailableCreditCents -= amount
	} else {
		card.AvailableCreditCents += amount
		if card.AvailableCreditCents > card.CreditLimitCents {
			card.AvailableCreditCents = card.CreditLimitCents
		}
	}
	stub.cards[cardID] = card
	return card, nil
}

func startTestRouter(test *testing.T) (*gin.Engine, *ledgerStub) {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/transactions.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	store := txnstore.New(db)
	if err := store.Migrate(); err != nil {
		test.Fatalf("migrate failed: %v", err)
	}
	ledger := newLedgerStub()
	ledger.cards["card-1"] = txn.Card{
		CardID:               "card-1",
		CustomerID:           "cust-1",
		Status:               txn.CardStatusActive,
		CreditLimitCents:     1_000_000,
		AvailableCreditCents: 1_000_000,
		DailyLimitCents:      250_000,
	}
	service, err := txn.NewService(store, ledger, time.Now)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	router := NewRouter(Config{
		Transactions: service,
		Logger:       zap.NewNop(),
	})
	return router, ledger
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(test *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	var parsed envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &parsed); err != nil {
		test.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder.Code, parsed
}

func createPurchase(test *testing.T, router *gin.Engine, amountCents int64) transactionPayload {
	test.Helper()
	status, response := doRequest(test, router, http.MethodPost, "/api/v1/transactions", createTransactionRequest{
		CardID:       "card-1",
		Type:         "PURCHASE",
		AmountCents:  amountCents,
		Description:  "coffee",
		MerchantName: "Beanhouse",
	})
	if status != http.StatusCreated {
		test.Fatalf("create status %d: %s", status, response.Message)
	}
	var payload transactionPayload
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		test.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestCreatePurchase(test *testing.T) {
	test.Parallel()
	router, ledger := startTestRouter(test)

	payload := createPurchase(test, router, 50_000)
	if payload.Status != "SUCCESS" || payload.AuthorizationCode == "" {
		test.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.PreviousBalanceCents != 1_000_000 || payload.NewBalanceCents != 950_000 {
		test.Fatalf("balance snapshot mismatch: %+v", payload)
	}
	var metadata map[string]string
	if err := json.Unmarshal(payload.Metadata, &metadata); err != nil {
		test.Fatalf("decode metadata: %v", err)
	}
	if metadata["description"] != "coffee" || metadata["merchantName"] != "Beanhouse" {
		test.Fatalf("metadata mismatch: %v", metadata)
	}
	if ledger.cards["card-1"].AvailableCreditCents != 950_000 {
		test.Fatalf("ledger not debited")
	}
}

func TestCreateDeclinedReturnsRecord(test *testing.T) {
	test.Parallel()
	router, ledger := startTestRouter(test)
	card := ledger.cards["card-1"]
	card.AvailableCreditCents = 10_000
	ledger.cards["card-1"] = card

	status, response := doRequest(test, router, http.MethodPost, "/api/v1/transactions", createTransactionRequest{
		CardID:      "card-1",
		Type:        "PURCHASE",
		AmountCents: 20_000,
	})
	if status != http.StatusPaymentRequired || response.Success {
		test.Fatalf("expected 402, got %d (%s)", status, response.Message)
	}
	var payload transactionPayload
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		test.Fatalf("decode declined record: %v", err)
	}
	if payload.Status != "DECLINED" || payload.FailureReason == "" {
		test.Fatalf("expected persisted declined record, got %+v", payload)
	}

	status, response = doRequest(test, router, http.MethodGet, "/api/v1/transactions/"+payload.TransactionID, nil)
	if status != http.StatusOK {
		test.Fatalf("declined record not retrievable: %d (%s)", status, response.Message)
	}
}

func TestCreateUnknownCard(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)

	status, response := doRequest(test, router, http.MethodPost, "/api/v1/transactions", createTransactionRequest{
		CardID:      "missing",
		Type:        "PURCHASE",
		AmountCents: 10_000,
	})
	if status != http.StatusNotFound || response.Success {
		test.Fatalf("expected 404, got %d (%s)", status, response.Message)
	}
}

func TestCreateRejectsBadRequests(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)

	cases := []struct {
		name    string
		request createTransactionRequest
	}{
		{name: "unknown type", request: createTransactionRequest{CardID: "card-1", Type: "WIRE", AmountCents: 100}},
		{name: "reversal type", request: createTransactionRequest{CardID: "card-1", Type: "REVERSAL", AmountCents: 100}},
		{name: "zero amount", request: createTransactionRequest{CardID: "card-1", Type: "PURCHASE", AmountCents: 0}},
		{name: "negative amount", request: createTransactionRequest{CardID: "card-1", Type: "PURCHASE", AmountCents: -5}},
		{name: "empty card", request: createTransactionRequest{CardID: " ", Type: "PURCHASE", AmountCents: 100}},
	}
	for _, testCase := range cases {
		test.Run(testCase.name, func(test *testing.T) {
			status, response := doRequest(test, router, http.MethodPost, "/api/v1/transactions", testCase.request)
			if status != http.StatusBadRequest || response.Success {
				test.Fatalf("expected 400, got %d (%s)", status, response.Message)
			}
		})
	}
}

func TestGetByReference(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)
	created := createPurchase(test, router, 30_000)

	status, response := doRequest(test, router, http.MethodGet, "/api/v1/transactions/reference/"+created.TransactionReference, nil)
	if status != http.StatusOK {
		test.Fatalf("get by reference: %d (%s)", status, response.Message)
	}
	var payload transactionPayload
	if err := json.Unmarshal(response.Data, &payload); err != nil {
		test.Fatalf("decode payload: %v", err)
	}
	if payload.TransactionID != created.TransactionID {
		test.Fatalf("reference lookup returned %q", payload.TransactionID)
	}
}

func TestGetUnknownTransaction(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)

	status, response := doRequest(test, router, http.MethodGet, "/api/v1/transactions/missing", nil)
	if status != http.StatusNotFound || response.Success {
		test.Fatalf("expected 404, got %d (%s)", status, response.Message)
	}
}

func TestReverseTransaction(test *testing.T) {
	test.Parallel()
	router, ledger := startTestRouter(test)
	created := createPurchase(test, router, 40_000)

	status, response := doRequest(test, router, http.MethodPost, "/api/v1/transactions/"+created.TransactionID+"/reverse?reason=customer+dispute", nil)
	if status != http.StatusOK {
		test.Fatalf("reverse: %d (%s)", status, response.Message)
	}
	var reversal transactionPayload
	if err := json.Unmarshal(response.Data, &reversal); err != nil {
		test.Fatalf("decode reversal: %v", err)
	}
	if reversal.Type != "REVERSAL" || reversal.Status != "SUCCESS" {
		test.Fatalf("unexpected reversal: %+v", reversal)
	}
	if ledger.cards["card-1"].AvailableCreditCents != 1_000_000 {
		test.Fatalf("reversal did not credit the ledger back")
	}

	status, response = doRequest(test, router, http.MethodPost, "/api/v1/transactions/"+created.TransactionID+"/reverse", nil)
	if status != http.StatusBadRequest || response.Success {
		test.Fatalf("expected second reversal rejected, got %d (%s)", status, response.Message)
	}
}

func TestDailyAndTotalSpending(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)
	createPurchase(test, router, 30_000)
	createPurchase(test, router, 20_000)

	status, response := doRequest(test, router, http.MethodGet, "/api/v1/transactions/card/card-1/daily-spending", nil)
	if status != http.StatusOK {
		test.Fatalf("daily spending: %d (%s)", status, response.Message)
	}
	var daily int64
	if err := json.Unmarshal(response.Data, &daily); err != nil {
		test.Fatalf("decode daily spending: %v", err)
	}
	if daily != 50_000 {
		test.Fatalf("expected 50000 cents daily spending, got %d", daily)
	}

	status, response = doRequest(test, router, http.MethodGet, "/api/v1/transactions/card/card-1/total-spending", nil)
	if status != http.StatusOK {
		test.Fatalf("total spending: %d (%s)", status, response.Message)
	}
	var total int64
	if err := json.Unmarshal(response.Data, &total); err != nil {
		test.Fatalf("decode total spending: %v", err)
	}
	if total != 50_000 {
		test.Fatalf("expected 50000 cents total spending, got %d", total)
	}
}

func TestListByCardAndCustomer(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)
	createPurchase(test, router, 10_000)
	createPurchase(test, router, 15_000)

	status, response := doRequest(test, router, http.MethodGet, "/api/v1/transactions/card/card-1?limit=1", nil)
	if status != http.StatusOK {
		test.Fatalf("list by card: %d (%s)", status, response.Message)
	}
	var listed []transactionPayload
	if err := json.Unmarshal(response.Data, &listed); err != nil {
		test.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		test.Fatalf("expected limit applied, got %d records", len(listed))
	}

	status, response = doRequest(test, router, http.MethodGet, "/api/v1/transactions/customer/cust-1", nil)
	if status != http.StatusOK {
		test.Fatalf("list by customer: %d (%s)", status, response.Message)
	}
	if err := json.Unmarshal(response.Data, &listed); err != nil {
		test.Fatalf("decode list: %v", err)
	}
	if len(listed) != 2 {
		test.Fatalf("expected both customer records, got %d", len(listed))
	}
}

func TestHealthz(test *testing.T) {
	test.Parallel()
	router, _ := startTestRouter(test)

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected healthz 200, got %d", recorder.Code)
	}
}
