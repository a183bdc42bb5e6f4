package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

// Direction is the sign of a balance adjustment.
type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "subtract"
)

// ErrInvalidDirection is returned for any direction other than add or subtract.
var ErrInvalidDirection = errors.New("invalid balance direction")

// LoanPolicy decides whether loans and principal repayments move the organization balance.
type LoanPolicy string

const (
	// PolicyOffLedger keeps loans and principal payments out of the balance.
	PolicyOffLedger LoanPolicy = "off-ledger"
	// PolicyCashflow subtracts disbursed principal and adds paid principal payments.
	PolicyCashflow LoanPolicy = "cashflow"
)

// Ledger owns the organization balance and every save or delete that can move it.
type Ledger struct {
	storage store.Storage
	now     func() time.Time
	policy  LoanPolicy
}

type Option func(*Ledger)

// WithClock overrides the time source used for paid dates and transaction ids.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLoanPolicy(p LoanPolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		now:     time.Now,
		policy:  PolicyOffLedger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Storage() store.Storage { return l.storage }

func (l *Ledger) Policy() LoanPolicy { return l.policy }

// Today is the current calendar date in UTC.
func (l *Ledger) Today() time.Time {
	return calendar.Truncate(l.now().UTC())
}

// Balance returns the current organization balance.
func (l *Ledger) Balance(ctx context.Context) (decimal.Decimal, error) {
	return l.storage.GetBalance(ctx)
}

// ApplyDelta adds or subtracts amount from the organization balance under the
// balance row lock and returns the new balance.
func (l *Ledger) ApplyDelta(ctx context.Context, amount decimal.Decimal, dir Direction) (decimal.Decimal, error) {
	return applyDelta(ctx, l.storage, amount, dir)
}

func applyDelta(ctx context.Context, s store.Storage, amount decimal.Decimal, dir Direction) (decimal.Decimal, error) {
	var delta decimal.Decimal
	switch dir {
	case DirectionAdd:
		delta = amount
	case DirectionSubtract:
		delta = amount.Neg()
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}

	bal, err := s.AdjustBalance(ctx, delta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to %s %s: %w", dir, amount, err)
	}
	log.Printf("[ledger] %s %s, balance now %s", dir, amount.StringFixed(2), bal.StringFixed(2))
	return bal, nil
}

// transition is the balance movement of one save or delete: reverse is the
// negated effect of the stored state, apply is the effect of the new state.
type transition struct {
	reverse decimal.Decimal
	apply   decimal.Decimal
}

func between(before, after decimal.Decimal) transition {
	return transition{reverse: before.Neg(), apply: after}
}

func (t transition) net() decimal.Decimal {
	return t.reverse.Add(t.apply)
}

// settle applies the net of t in a single balance adjustment, and none when it is zero.
func settle(ctx context.Context, s store.Storage, t transition) error {
	net := t.net()
	switch {
	case net.IsZero():
		return nil
	case net.IsPositive():
		_, err := applyDelta(ctx, s, net, DirectionAdd)
		return err
	default:
		_, err := applyDelta(ctx, s, net.Neg(), DirectionSubtract)
		return err
	}
}
