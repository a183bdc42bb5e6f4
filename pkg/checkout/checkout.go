// Package checkout lets members pay their obligations through the payment gateway.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/gateway"
	"github.com/mcclellann/coopledger/pkg/ledger"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var productInfo = map[models.PaymentType]string{
	models.PaymentTypeDeposit:   "Membership Deposit",
	models.PaymentTypeInterest:  "Loan Interest Payment",
	models.PaymentTypePrincipal: "Loan Principal Payment",
	models.PaymentTypePenalty:   "Penalty Payment",
}

type Service struct {
	ledger      *ledger.Ledger
	storage     store.Storage
	gateway     gateway.Client
	redirectURL string
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(l *ledger.Ledger, gw gateway.Client, redirectURL string, opts ...Option) *Service {
	s := &Service{
		ledger:      l,
		storage:     l.Storage(),
		gateway:     gw,
		redirectURL: redirectURL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderResult is a created order and the links the member pays through.
type OrderResult struct {
	Transaction *models.PaymentTransaction
	PaymentURL  string
	UPIIntent   map[string]string
}

// StatusResult is the outcome of checking an order with the gateway.
type StatusResult struct {
	GatewayStatus string
	Transaction   *models.PaymentTransaction
	UPITxnID      string
	Amount        decimal.Decimal
}

// CreateOrder places a gateway order for an obligation owned by userID and
// records it as a pending transaction. The gateway is called before anything
// is written, so a gateway failure leaves no trace.
func (s *Service) CreateOrder(ctx context.Context, userID uint, ref models.PaymentRef, amount decimal.Decimal) (*OrderResult, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "must be greater than 0")
	}

	ob, err := s.obligation(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ob.owner != userID {
		return nil, models.ErrAccessDenied
	}
	if ob.status == models.PaymentStatusPaid {
		return nil, fmt.Errorf("%s: %w", ref, models.ErrAlreadyPaid)
	}
	if !amount.Equal(ob.due) {
		return nil, models.NewValidationError("amount", "must equal the amount due ("+ob.due.StringFixed(2)+")")
	}

	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Name == "" {
		return nil, models.NewValidationError("name", "profile is incomplete")
	}
	if user.Phone == "" {
		return nil, models.NewValidationError("phone", "profile is incomplete")
	}

	email := user.Email
	if email == "" {
		email = user.Phone + "@microfinance.local"
	}
	clientTxnID := ledger.ClientTxnID(ref, s.now())
	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		ClientTxnID:    clientTxnID,
		Amount:         amount,
		ProductInfo:    productInfo[ref.Type],
		CustomerName:   user.Name,
		CustomerEmail:  email,
		CustomerMobile: strings.NewReplacer("+", "", " ", "").Replace(user.Phone),
		RedirectURL:    s.redirectURL,
		UDF1:           string(ref.Type),
		UDF2:           strconv.FormatUint(uint64(ref.ID), 10),
		UDF3:           strconv.FormatUint(uint64(user.ID), 10),
	})
	if err != nil {
		log.Printf("[checkout] create order for %s failed: %v", ref, err)
		return nil, err
	}

	raw, _ := json.Marshal(map[string]json.RawMessage{"create_order": order.Raw})
	t := &models.PaymentTransaction{
		PaymentType:     ref.Type,
		RelatedObjectID: ref.ID,
		UserID:          user.ID,
		ClientTxnID:     clientTxnID,
		OrderID:         order.OrderID,
		Amount:          amount,
		Status:          models.TransactionStatusPending,
		PaymentMethod:   models.PaymentMethodGateway,
		GatewayResponse: datatypes.JSON(raw),
		CustomerName:    user.Name,
	}
	if err := s.storage.CreatePaymentTransaction(ctx, t); err != nil {
		if !errors.Is(err, models.ErrDuplicate) {
			return nil, err
		}
		existing, getErr := s.storage.GetPaymentTransactionByClientTxnID(ctx, clientTxnID, false)
		if getErr != nil {
			return nil, err
		}
		t = existing
	}
	return &OrderResult{Transaction: t, PaymentURL: order.PaymentURL, UPIIntent: order.UPIIntent}, nil
}

// CheckStatus asks the gateway about an order placed by userID on txnDate (today
// when zero) and settles it when the gateway reports a final status.
func (s *Service) CheckStatus(ctx context.Context, userID uint, clientTxnID string, txnDate time.Time) (*StatusResult, error) {
	t, err := s.storage.GetPaymentTransactionByClientTxnID(ctx, clientTxnID, false)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, models.ErrAccessDenied
	}
	return s.check(ctx, t, txnDate)
}

// Callback settles the order the gateway redirected back for.
func (s *Service) Callback(ctx context.Context, clientTxnID string) (*StatusResult, error) {
	t, err := s.storage.GetPaymentTransactionByClientTxnID(ctx, clientTxnID, false)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, t, time.Time{})
}

func (s *Service) check(ctx context.Context, t *models.PaymentTransaction, txnDate time.Time) (*StatusResult, error) {
	if txnDate.IsZero() {
		txnDate = calendar.Truncate(s.now())
	}
	st, err := s.gateway.CheckStatus(ctx, t.ClientTxnID, txnDate)
	if err != nil {
		log.Printf("[checkout] status check for %s failed: %v", t.ClientTxnID, err)
		return nil, err
	}

	result := &StatusResult{GatewayStatus: st.Status, Transaction: t, UPITxnID: st.UPITxnID, Amount: st.Amount}
	status := st.TransactionStatus()
	if status == models.TransactionStatusPending {
		return result, nil
	}
	// an underpaid order stays pending for staff to resolve
	if status == models.TransactionStatusSuccess && st.Amount.IsPositive() && st.Amount.LessThan(t.Amount) {
		log.Printf("[checkout] %s reported %s paid for an order of %s", t.ClientTxnID, st.Amount, t.Amount)
		return nil, fmt.Errorf("%w: %s paid %s of %s", gateway.ErrGateway, t.ClientTxnID, st.Amount.StringFixed(2), t.Amount.StringFixed(2))
	}

	settled, err := s.ledger.SettleGatewayTransaction(ctx, t.ClientTxnID, ledger.GatewayResult{
		Status:       status,
		UPITxnID:     st.UPITxnID,
		CustomerName: st.CustomerName,
		TxnDate:      st.TxnAt,
		Raw:          st.Raw,
	})
	if err != nil {
		return nil, err
	}
	result.Transaction = settled
	return result, nil
}

type payable struct {
	owner  uint
	status models.PaymentStatus
	due    decimal.Decimal
}

// obligation returns the owner, payment status and amount due of the obligation behind ref.
func (s *Service) obligation(ctx context.Context, ref models.PaymentRef) (payable, error) {
	switch ref.Type {
	case models.PaymentTypeDeposit:
		d, err := s.storage.GetDeposit(ctx, ref.ID, false)
		if err != nil {
			return payable{}, err
		}
		return payable{d.UserID, d.PaymentStatus, d.Amount}, nil
	case models.PaymentTypeInterest:
		p, err := s.storage.GetInterestPayment(ctx, ref.ID, false)
		if err != nil {
			return payable{}, err
		}
		return payable{p.Loan.UserID, p.PaymentStatus, p.Amount}, nil
	case models.PaymentTypePrincipal:
		p, err := s.storage.GetPrincipalPayment(ctx, ref.ID, false)
		if err != nil {
			return payable{}, err
		}
		return payable{p.Loan.UserID, p.PaymentStatus, p.Amount}, nil
	case models.PaymentTypePenalty:
		p, err := s.storage.GetPenalty(ctx, ref.ID, false)
		if err != nil {
			return payable{}, err
		}
		return payable{p.UserID, p.PaymentStatus, p.PenaltyAmount}, nil
	}
	return payable{}, fmt.Errorf("unknown payment type %q", ref.Type)
}
