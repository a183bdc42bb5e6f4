package store

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ObligationFilter narrows deposit and interest payment listings. Zero fields match everything.
type ObligationFilter struct {
	Status models.PaymentStatus
	UserID uint
	LoanID uint
}

// Storage defines the persistence operations used by the ledger and the batch engines.
// Lookups that find nothing return an error wrapping models.ErrNotFound.
type Storage interface {
	// Transaction runs fn against a Storage bound to one database transaction.
	// Calling Transaction on that Storage again opens a savepoint.
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	// GetBalance returns the organization balance, creating the row on first use.
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	// AdjustBalance locks the balance row, adds delta and returns the new balance.
	AdjustBalance(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error)

	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	CreateMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, id uint) (*models.Membership, error)
	CreateMembershipUser(ctx context.Context, mu *models.MembershipUser) error
	ListMembershipUsers(ctx context.Context) ([]models.MembershipUser, error)

	GetDeposit(ctx context.Context, id uint, forUpdate bool) (*models.Deposit, error)
	SaveDeposit(ctx context.Context, d *models.Deposit) error
	DeleteDeposit(ctx context.Context, id uint) error
	ListDeposits(ctx context.Context, f ObligationFilter) ([]models.Deposit, error)
	DepositExistsForMonth(ctx context.Context, userID, membershipID uint, ym calendar.YearMonth) (bool, error)
	// InsertPendingDeposit inserts d unless a deposit for the same month exists and reports whether it did.
	InsertPendingDeposit(ctx context.Context, d *models.Deposit) (bool, error)

	GetLoan(ctx context.Context, id uint, forUpdate bool) (*models.Loan, error)
	SaveLoan(ctx context.Context, l *models.Loan) error
	DeleteLoan(ctx context.Context, id uint) error
	ListLoans(ctx context.Context, statuses ...models.LoanStatus) ([]models.Loan, error)

	GetInterestPayment(ctx context.Context, id uint, forUpdate bool) (*models.InterestPayment, error)
	SaveInterestPayment(ctx context.Context, p *models.InterestPayment) error
	DeleteInterestPayment(ctx context.Context, id uint) error
	ListInterestPayments(ctx context.Context, f ObligationFilter) ([]models.InterestPayment, error)
	InterestPaymentExistsForMonth(ctx context.Context, loanID uint, ym calendar.YearMonth) (bool, error)
	InsertPendingInterestPayment(ctx context.Context, p *models.InterestPayment) (bool, error)

	GetPrincipalPayment(ctx context.Context, id uint, forUpdate bool) (*models.PrincipalPayment, error)
	SavePrincipalPayment(ctx context.Context, p *models.PrincipalPayment) error
	DeletePrincipalPayment(ctx context.Context, id uint) error
	ListPrincipalPayments(ctx context.Context, loanID uint) ([]models.PrincipalPayment, error)

	GetFund(ctx context.Context, id uint, forUpdate bool) (*models.FundManagement, error)
	SaveFund(ctx context.Context, f *models.FundManagement) error
	DeleteFund(ctx context.Context, id uint) error

	GetPenalty(ctx context.Context, id uint, forUpdate bool) (*models.Penalty, error)
	SavePenalty(ctx context.Context, p *models.Penalty) error
	// InsertPenalty inserts p unless the month is already penalized and reports whether it did.
	InsertPenalty(ctx context.Context, p *models.Penalty) (bool, error)
	DeletePenalty(ctx context.Context, id uint) error
	DeletePenaltiesFor(ctx context.Context, ref models.PaymentRef) error
	ListPenalties(ctx context.Context, ref models.PaymentRef) ([]models.Penalty, error)
	// ListPendingPenalties lists unpaid penalties, for one user when userID is non-zero.
	ListPendingPenalties(ctx context.Context, userID uint) ([]models.Penalty, error)
	UpdatePenaltyTotals(ctx context.Context, ref models.PaymentRef, total decimal.Decimal) error

	CreatePaymentTransaction(ctx context.Context, t *models.PaymentTransaction) error
	SavePaymentTransaction(ctx context.Context, t *models.PaymentTransaction) error
	GetPaymentTransactionByClientTxnID(ctx context.Context, clientTxnID string, forUpdate bool) (*models.PaymentTransaction, error)
	ListPaymentTransactions(ctx context.Context, ref models.PaymentRef) ([]models.PaymentTransaction, error)
	// DeletePaymentTransactions removes every transaction for ref except exceptID (zero keeps none).
	DeletePaymentTransactions(ctx context.Context, ref models.PaymentRef, exceptID uint) (int64, error)

	CreateNotification(ctx context.Context, n *models.Notification) error

	Close() error
}
