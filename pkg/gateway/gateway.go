// Package gateway talks to the UPI payment gateway that members pay through.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrGateway wraps every failure to reach the gateway or to get a usable answer from it.
var ErrGateway = errors.New("payment gateway error")

// OrderRequest describes a payment order to create.
type OrderRequest struct {
	ClientTxnID    string
	Amount         decimal.Decimal
	ProductInfo    string
	CustomerName   string
	CustomerEmail  string
	CustomerMobile string
	RedirectURL    string
	// Echoed back by the gateway: payment type, object id, user id.
	UDF1, UDF2, UDF3 string
}

type Order struct {
	ClientTxnID string
	OrderID     string
	PaymentURL  string
	UPIIDHash   string
	UPIIntent   map[string]string
	Raw         json.RawMessage
}

// Status is the gateway's view of one order.
type Status struct {
	Status       string // success, pending, failure...
	OrderID      string
	Amount       decimal.Decimal
	UPITxnID     string
	CustomerName string
	TxnAt        *time.Time
	Raw          json.RawMessage
}

// TransactionStatus maps the gateway status onto a local transaction status.
func (s *Status) TransactionStatus() models.TransactionStatus {
	switch strings.ToLower(s.Status) {
	case "success":
		return models.TransactionStatusSuccess
	case "failed", "failure":
		return models.TransactionStatusFailed
	case "cancelled", "canceled":
		return models.TransactionStatusCancelled
	}
	return models.TransactionStatusPending
}

// Client is a payment gateway.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// CheckStatus asks for the status of the order placed on txnDate.
	CheckStatus(ctx context.Context, clientTxnID string, txnDate time.Time) (*Status, error)
}
