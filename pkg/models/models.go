package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusDefault   LoanStatus = "default"
)

// Disbursed reports whether the principal has left the organization for a loan in this status.
func (s LoanStatus) Disbursed() bool {
	return s == LoanStatusActive || s == LoanStatusCompleted || s == LoanStatusDefault
}

type FundType string

const (
	FundTypeCredit FundType = "credit"
	FundTypeDebit  FundType = "debit"
)

type FundStatus string

const (
	FundStatusPending  FundStatus = "pending"
	FundStatusApproved FundStatus = "approved"
	FundStatusRejected FundStatus = "rejected"
)

type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodGateway PaymentMethod = "gateway"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusSkipped NotificationStatus = "skipped"
)

const (
	RoleAdmin  = "admin"
	RoleBoard  = "board"
	RoleStaff  = "staff"
	RoleMember = "member"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" validate:"required"`
	Phone     string    `gorm:"size:20;uniqueIndex;not null" json:"phone" validate:"required"`
	Email     string    `gorm:"size:255" json:"email,omitempty" validate:"omitempty,email"`
	Role      string    `gorm:"size:20;not null;default:member" json:"role" validate:"omitempty,oneof=admin board staff member"`
	Status    string    `gorm:"size:20;not null;default:active" json:"status" validate:"omitempty,oneof=active freeze inactive"`
	FCMToken  string    `gorm:"column:fcm_token;size:255" json:"-"` // device token for push delivery
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Membership struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount" validate:"gt=0"` // monthly fee
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MembershipUser assigns a member to a membership plan. Monthly deposits are generated from CreatedAt onward.
type MembershipUser struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	MembershipID uint       `gorm:"not null;uniqueIndex:idx_membership_users_pair" json:"membership_id" validate:"required"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_membership_users_pair" json:"user_id" validate:"required"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Membership   Membership `gorm:"foreignKey:MembershipID" json:"-" validate:"-"`
	User         User       `gorm:"foreignKey:UserID" json:"-" validate:"-"`
}

type Deposit struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;uniqueIndex:idx_deposits_period,priority:1" json:"user_id" validate:"required"`
	MembershipID  uint            `gorm:"not null;uniqueIndex:idx_deposits_period,priority:2" json:"membership_id" validate:"required"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount" validate:"gt=0"`
	Date          time.Time       `gorm:"not null;index" json:"date" validate:"required"` // due date
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:pending;index" json:"payment_status" validate:"oneof=pending paid"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	Name          string          `gorm:"size:50" json:"name"`                                                      // "2025 Apr"
	Period        string          `gorm:"size:7;not null;uniqueIndex:idx_deposits_period,priority:3" json:"period"` // "2025-04"
	IsCustom      bool            `gorm:"not null;default:false" json:"is_custom"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	User          User            `gorm:"foreignKey:UserID" json:"-" validate:"-"`
	Membership    Membership      `gorm:"foreignKey:MembershipID" json:"-" validate:"-"`
}

type Loan struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id" validate:"required"`
	PrincipalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal_amount" validate:"gt=0"`
	InterestRate    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"interest_rate" validate:"gte=0"` // yearly percent
	TotalPayable    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_payable"`                 // fixed at creation
	TimelineMonths  int             `gorm:"not null;default:12" json:"timeline_months" validate:"min=1"`
	Status          LoanStatus      `gorm:"size:20;not null;default:pending;index" json:"status" validate:"oneof=pending approved rejected active completed default"`
	AppliedDate     time.Time       `gorm:"not null" json:"applied_date"`
	ApprovedDate    *time.Time      `json:"approved_date,omitempty"`
	DisbursedDate   *time.Time      `json:"disbursed_date,omitempty"`
	CompletedDate   *time.Time      `json:"completed_date,omitempty"`
	ActionBy        *uint           `json:"action_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	User            User            `gorm:"foreignKey:UserID" json:"-" validate:"-"`
}

type InterestPayment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	LoanID        uint            `gorm:"not null;uniqueIndex:idx_interest_payments_period,priority:1" json:"loan_id" validate:"required"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount" validate:"gt=0"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:pending;index" json:"payment_status" validate:"oneof=pending paid"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	Name          string          `gorm:"size:50" json:"name"`
	Period        string          `gorm:"size:7;not null;uniqueIndex:idx_interest_payments_period,priority:2" json:"period"`
	IsCustom      bool            `gorm:"not null;default:false" json:"is_custom"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Loan          Loan            `gorm:"foreignKey:LoanID" json:"-" validate:"-"`
}

type PrincipalPayment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	LoanID        uint            `gorm:"not null;index" json:"loan_id" validate:"required"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount" validate:"gt=0"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:pending;index" json:"payment_status" validate:"oneof=pending paid"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	IsCustom      bool            `gorm:"not null;default:false" json:"is_custom"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Loan          Loan            `gorm:"foreignKey:LoanID" json:"-" validate:"-"`
}

// FundManagement is an organizational credit or debit, e.g. a withdrawal approved by the board.
type FundManagement struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Type      FundType        `gorm:"size:20;not null" json:"type" validate:"oneof=credit debit"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount" validate:"gt=0"`
	Status    FundStatus      `gorm:"size:20;not null;default:pending;index" json:"status" validate:"oneof=pending approved rejected"`
	Date      time.Time       `gorm:"not null" json:"date"`
	Purpose   string          `gorm:"type:text;not null" json:"purpose" validate:"required"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Penalty struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	PenaltyType     PaymentType     `gorm:"size:20;not null;uniqueIndex:idx_penalties_month,priority:1" json:"penalty_type"`
	RelatedObjectID uint            `gorm:"not null;uniqueIndex:idx_penalties_month,priority:2" json:"related_object_id"`
	BaseAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"base_amount"`
	MonthNumber     int             `gorm:"not null;uniqueIndex:idx_penalties_month,priority:3" json:"month_number"` // 1-based
	PenaltyAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"penalty_amount"`
	TotalPenalty    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_penalty"` // sum of pending siblings
	PaymentStatus   PaymentStatus   `gorm:"size:20;not null;default:pending;index" json:"payment_status"`
	DueDate         time.Time       `gorm:"not null" json:"due_date"`
	PaidDate        *time.Time      `json:"paid_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	User            User            `gorm:"foreignKey:UserID" json:"-"`
}

// Ref returns the obligation this penalty was charged for.
func (p *Penalty) Ref() PaymentRef {
	return PaymentRef{Type: p.PenaltyType, ID: p.RelatedObjectID}
}

type PaymentTransaction struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	PaymentType     PaymentType       `gorm:"size:20;not null;index:idx_payment_transactions_ref,priority:1" json:"payment_type"`
	RelatedObjectID uint              `gorm:"not null;index:idx_payment_transactions_ref,priority:2" json:"related_object_id"`
	UserID          uint              `gorm:"not null;index" json:"user_id"`
	ClientTxnID     string            `gorm:"size:255;not null;uniqueIndex" json:"client_txn_id"`
	OrderID         string            `gorm:"size:64;index" json:"order_id,omitempty"`
	Amount          decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status          TransactionStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	PaymentMethod   PaymentMethod     `gorm:"size:20;not null;default:gateway" json:"payment_method"`
	GatewayResponse datatypes.JSON    `json:"gateway_response,omitempty"`
	UPITxnID        string            `gorm:"column:upi_txn_id;size:255" json:"upi_txn_id,omitempty"`
	CustomerName    string            `gorm:"size:255" json:"customer_name,omitempty"`
	TxnDate         *time.Time        `json:"txn_date,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Ref returns the obligation this transaction pays.
func (t *PaymentTransaction) Ref() PaymentRef {
	return PaymentRef{Type: t.PaymentType, ID: t.RelatedObjectID}
}

// Balance is the singleton organization account (ID is always BalanceID).
type Balance struct {
	ID        uint            `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Settings is the singleton configuration row consumed by the batch engines (ID is always SettingsID).
type Settings struct {
	ID                    uint            `gorm:"primaryKey;autoIncrement:false" json:"-"`
	DepositDueDay         int             `gorm:"not null" json:"deposit_due_day" validate:"min=1,max=31"`
	InterestDueDay        int             `gorm:"not null" json:"interest_due_day" validate:"min=1,max=31"`
	DefaultInterestRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"default_interest_rate" validate:"gte=0"`
	DefaultTimelineMonths int             `gorm:"not null" json:"default_timeline_months" validate:"min=1"`
	DefaultPenaltyAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"default_penalty_amount" validate:"gte=0"`
	PenaltyGraceDays      int             `gorm:"not null" json:"penalty_grace_days" validate:"min=0"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

const (
	BalanceID  uint = 1
	SettingsID uint = 1
)

// DefaultSettings is what the settings row holds when it is first created.
func DefaultSettings() Settings {
	return Settings{
		ID:                    SettingsID,
		DepositDueDay:         1,
		InterestDueDay:        1,
		DefaultInterestRate:   decimal.NewFromInt(10),
		DefaultTimelineMonths: 12,
		DefaultPenaltyAmount:  decimal.NewFromInt(1000),
		PenaltyGraceDays:      0,
	}
}

// Notification is the per-user delivery log of push messages.
type Notification struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	UserID    uint               `gorm:"not null;index" json:"user_id"`
	Title     string             `gorm:"size:255;not null" json:"title"`
	Body      string             `gorm:"type:text;not null" json:"body"`
	Status    NotificationStatus `gorm:"size:20;not null" json:"status"`
	Error     string             `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Membership{},
		&MembershipUser{},
		&Deposit{},
		&Loan{},
		&InterestPayment{},
		&PrincipalPayment{},
		&FundManagement{},
		&Penalty{},
		&PaymentTransaction{},
		&Balance{},
		&Settings{},
		&Notification{},
	}
}
