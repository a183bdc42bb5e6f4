package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *UPIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewUPIClient(config.GatewayConfig{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 5 * time.Second})
}

func TestCreateOrder(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_order" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"status":true,"msg":"Order Created","data":{"order_id":1234,"payment_url":"https://pay.example/1234","upi_intent":{"gpay_link":"gpay://x"}}}`))
	})

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		ClientTxnID:    "deposit_7_1742034600",
		Amount:         decimal.RequireFromString("500.75"),
		ProductInfo:    "Membership Deposit",
		CustomerName:   "Asha",
		CustomerEmail:  "9000000001@microfinance.local",
		CustomerMobile: "9000000001",
		RedirectURL:    "https://coop.example/payments/callback",
		UDF1:           "deposit",
		UDF2:           "7",
		UDF3:           "1",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.OrderID != "1234" || order.PaymentURL != "https://pay.example/1234" {
		t.Errorf("Unexpected order: %+v", order)
	}
	if order.UPIIntent["gpay_link"] != "gpay://x" {
		t.Errorf("Expected upi intent links, got %v", order.UPIIntent)
	}

	want := map[string]string{
		"key":           "secret",
		"amount":        "500",
		"client_txn_id": "deposit_7_1742034600",
		"redirect_url":  "https://coop.example/payments/callback?client_txn_id=deposit_7_1742034600",
		"udf1":          "deposit",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Request %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestCreateOrderRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"msg":"Invalid key","data":null}`))
	})
	_, err := client.CreateOrder(context.Background(), OrderRequest{ClientTxnID: "x", Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("Expected ErrGateway, got %v", err)
	}
}

func TestCreateOrderHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	if _, err := client.CreateOrder(context.Background(), OrderRequest{ClientTxnID: "x"}); !errors.Is(err, ErrGateway) {
		t.Fatalf("Expected ErrGateway, got %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	var got checkStatusReq
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/check_order_status" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":true,"data":{"id":99,"status":"SUCCESS","amount":"500","upi_txn_id":"UPI123","customer_name":"Asha","txnAt":"2025-03-15 10:31:00"}}`))
	})

	st, err := client.CheckStatus(context.Background(), "deposit_7_1742034600", time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if got.TxnDate != "05-03-2025" {
		t.Errorf("Expected txn_date 05-03-2025, got %q", got.TxnDate)
	}
	if st.TransactionStatus() != models.TransactionStatusSuccess {
		t.Errorf("Expected success, got %q", st.Status)
	}
	if st.OrderID != "99" || st.UPITxnID != "UPI123" || !st.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Unexpected status: %+v", st)
	}
	if st.TxnAt == nil || !st.TxnAt.Equal(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected txn date: %v", st.TxnAt)
	}
}

func TestTransactionStatus(t *testing.T) {
	cases := map[string]models.TransactionStatus{
		"success":   models.TransactionStatusSuccess,
		"Failure":   models.TransactionStatusFailed,
		"cancelled": models.TransactionStatusCancelled,
		"pending":   models.TransactionStatusPending,
		"":          models.TransactionStatusPending,
	}
	for in, want := range cases {
		if got := (&Status{Status: in}).TransactionStatus(); got != want {
			t.Errorf("TransactionStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewChoosesClient(t *testing.T) {
	if _, ok := New(config.GatewayConfig{Stub: true}).(StubClient); !ok {
		t.Error("Expected StubClient when the stub is enabled")
	}
	if _, ok := New(config.GatewayConfig{APIKey: "k", BaseURL: "http://localhost", Stub: true}).(*UPIClient); !ok {
		t.Error("Expected UPIClient with a key")
	}
}

func TestNewWithoutKeyNeverSettles(t *testing.T) {
	c := New(config.GatewayConfig{})
	if _, ok := c.(StubClient); ok {
		t.Fatal("An empty config must not fall back to the stub")
	}
	ctx := context.Background()
	if _, err := c.CreateOrder(ctx, OrderRequest{ClientTxnID: "deposit_1_1", Amount: decimal.NewFromInt(1)}); !errors.Is(err, ErrGateway) {
		t.Errorf("Expected ErrGateway from CreateOrder, got %v", err)
	}
	st, err := c.CheckStatus(ctx, "deposit_1_1", time.Now())
	if !errors.Is(err, ErrGateway) || st != nil {
		t.Errorf("Expected ErrGateway and no status, got %+v, %v", st, err)
	}
}
