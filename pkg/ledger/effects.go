package ledger

import (
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

// The functions below give the signed balance contribution of one persisted
// state. A nil entity (not yet stored, or deleted) contributes nothing.

func depositEffect(d *models.Deposit) decimal.Decimal {
	if d == nil || d.PaymentStatus != models.PaymentStatusPaid {
		return decimal.Zero
	}
	return d.Amount
}

func interestEffect(p *models.InterestPayment) decimal.Decimal {
	if p == nil || p.PaymentStatus != models.PaymentStatusPaid {
		return decimal.Zero
	}
	return p.Amount
}

func fundEffect(f *models.FundManagement) decimal.Decimal {
	if f == nil || f.Status != models.FundStatusApproved {
		return decimal.Zero
	}
	switch f.Type {
	case models.FundTypeCredit:
		return f.Amount
	case models.FundTypeDebit:
		return f.Amount.Neg()
	}
	return decimal.Zero
}

func (l *Ledger) loanEffect(loan *models.Loan) decimal.Decimal {
	if l.policy != PolicyCashflow || loan == nil || !loan.Status.Disbursed() {
		return decimal.Zero
	}
	return loan.PrincipalAmount.Neg()
}

func (l *Ledger) principalEffect(p *models.PrincipalPayment) decimal.Decimal {
	if l.policy != PolicyCashflow || p == nil || p.PaymentStatus != models.PaymentStatusPaid {
		return decimal.Zero
	}
	return p.Amount
}

// becamePaid reports a transition into paid. A nil previous state is a new record.
func becamePaid(prev *models.PaymentStatus, next models.PaymentStatus) bool {
	if next != models.PaymentStatusPaid {
		return false
	}
	return prev == nil || *prev != models.PaymentStatusPaid
}
