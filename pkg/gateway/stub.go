package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/coopledger/pkg/config"
)

// StubClient accepts every order and reports it paid. Development only: it is
// used when UPI_GATEWAY_STUB is set, which configuration refuses in production.
type StubClient struct{}

func (StubClient) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	orderID := uuid.NewString()
	raw, _ := json.Marshal(map[string]string{"order_id": orderID, "client_txn_id": req.ClientTxnID})
	return &Order{
		ClientTxnID: req.ClientTxnID,
		OrderID:     orderID,
		PaymentURL:  "https://pay.invalid/" + orderID,
		Raw:         raw,
	}, nil
}

func (StubClient) CheckStatus(_ context.Context, clientTxnID string, txnDate time.Time) (*Status, error) {
	upi := uuid.NewString()
	raw, _ := json.Marshal(map[string]string{"client_txn_id": clientTxnID, "status": "success", "upi_txn_id": upi})
	at := time.Date(txnDate.Year(), txnDate.Month(), txnDate.Day(), 0, 0, 0, 0, time.UTC)
	return &Status{Status: "success", UPITxnID: upi, TxnAt: &at, Raw: raw}, nil
}

// Unconfigured is the client used when no gateway key is set and the stub was
// not asked for. Every call fails, so nothing is ever settled through it.
type Unconfigured struct{}

func (Unconfigured) CreateOrder(context.Context, OrderRequest) (*Order, error) {
	return nil, fmt.Errorf("%w: no gateway key configured", ErrGateway)
}

func (Unconfigured) CheckStatus(context.Context, string, time.Time) (*Status, error) {
	return nil, fmt.Errorf("%w: no gateway key configured", ErrGateway)
}

// New returns a UPIClient when a key is configured, a StubClient when the stub
// is explicitly enabled, and Unconfigured otherwise.
func New(cfg config.GatewayConfig) Client {
	switch {
	case cfg.APIKey != "":
		return NewUPIClient(cfg)
	case cfg.Stub:
		log.Println("[UPI] stub gateway enabled, orders settle without payment")
		return StubClient{}
	}
	log.Println("[UPI] no gateway key configured, online payments are disabled")
	return Unconfigured{}
}
