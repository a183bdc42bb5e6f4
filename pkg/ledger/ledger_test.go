package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/mcclellann/coopledger/pkg/store/storetest"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

// countingStore counts balance adjustments, including those made inside transactions.
type countingStore struct {
	store.Storage
	adjustments *int
	fail        error
}

func (c countingStore) AdjustBalance(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	*c.adjustments++
	if c.fail != nil {
		return decimal.Zero, c.fail
	}
	return c.Storage.AdjustBalance(ctx, delta)
}

func (c countingStore) Transaction(ctx context.Context, fn func(tx store.Storage) error) error {
	return c.Storage.Transaction(ctx, func(tx store.Storage) error {
		return fn(countingStore{Storage: tx, adjustments: c.adjustments, fail: c.fail})
	})
}

type fixture struct {
	ledger      *Ledger
	store       *store.GormStore
	member      *models.MembershipUser
	adjustments int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{store: storetest.New(t)}
	user := storetest.Member(t, f.store, "Asha", "9000000001")
	f.member = storetest.Membership(t, f.store, user, 500, calendar.Date(2025, time.January, 1))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	f.ledger = NewLedger(countingStore{Storage: f.store, adjustments: &f.adjustments}, opts...)
	return f
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	bal, err := f.ledger.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	return bal
}

func (f *fixture) expectBalance(t *testing.T, want int64) {
	t.Helper()
	if got := f.balance(t); !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("Expected balance %d, got %s", want, got)
	}
}

func (f *fixture) deposit(amount int64, status models.PaymentStatus, custom bool) *models.Deposit {
	return &models.Deposit{
		UserID:        f.member.UserID,
		MembershipID:  f.member.MembershipID,
		Amount:        decimal.NewFromInt(amount),
		Date:          calendar.Date(2025, time.March, 10),
		PaymentStatus: status,
		IsCustom:      custom,
	}
}

func (f *fixture) loan(t *testing.T, principal int64, status models.LoanStatus) *models.Loan {
	t.Helper()
	loan := &models.Loan{
		UserID:          f.member.UserID,
		PrincipalAmount: decimal.NewFromInt(principal),
		InterestRate:    decimal.NewFromInt(12),
		TimelineMonths:  12,
		Status:          status,
	}
	if err := f.ledger.CreateLoan(context.Background(), loan); err != nil {
		t.Fatalf("CreateLoan failed: %v", err)
	}
	return loan
}

func TestApplyDelta_InvalidDirection(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.ApplyDelta(context.Background(), decimal.NewFromInt(10), Direction("multiply"))
	if !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("Expected ErrInvalidDirection, got %v", err)
	}
	if f.adjustments != 0 {
		t.Errorf("Invalid direction must not touch storage, got %d adjustments", f.adjustments)
	}
}

func TestApplyDelta_AllowsNegativeBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.ApplyDelta(ctx, decimal.NewFromInt(100), DirectionAdd); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	bal, err := f.ledger.ApplyDelta(ctx, decimal.NewFromInt(300), DirectionSubtract)
	if err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("Expected -200, got %s", bal)
	}
}

func TestDeposit_PaidThenPendingNetsToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPending, false)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	f.expectBalance(t, 0)
	if d.Name != "2025 Mar" || d.Period != "2025-03" {
		t.Errorf("Expected derived label, got name=%q period=%q", d.Name, d.Period)
	}

	d.PaymentStatus = models.PaymentStatusPaid
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit (paid) failed: %v", err)
	}
	f.expectBalance(t, 500)
	if d.PaidDate == nil || !d.PaidDate.Equal(calendar.Date(2025, time.March, 15)) {
		t.Errorf("Expected paid date stamped today, got %v", d.PaidDate)
	}

	d.PaymentStatus = models.PaymentStatusPending
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit (pending) failed: %v", err)
	}
	f.expectBalance(t, 0)
}

func TestDeposit_AmountEditWhilePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPaid, false)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	before := f.adjustments

	d.Amount = decimal.NewFromInt(650)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	f.expectBalance(t, 650)
	if f.adjustments-before != 1 {
		t.Errorf("Expected one balance adjustment for the edit, got %d", f.adjustments-before)
	}

	// saving without changes must not touch the balance
	before = f.adjustments
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	if f.adjustments != before {
		t.Errorf("Unchanged save adjusted the balance %d times", f.adjustments-before)
	}
}

func TestDeposit_DeleteReversesAndRemovesPenalties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPaid, false)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	_, err := f.store.InsertPenalty(ctx, &models.Penalty{
		UserID: d.UserID, PenaltyType: models.PaymentTypeDeposit, RelatedObjectID: d.ID,
		MonthNumber: 1, BaseAmount: decimal.NewFromInt(1000), PenaltyAmount: decimal.NewFromInt(1000),
		PaymentStatus: models.PaymentStatusPending, DueDate: calendar.Date(2025, time.March, 1),
	})
	if err != nil {
		t.Fatalf("InsertPenalty failed: %v", err)
	}

	if err := f.ledger.DeleteDeposit(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDeposit failed: %v", err)
	}
	f.expectBalance(t, 0)
	penalties, _ := f.store.ListPenalties(ctx, models.DepositRef(d.ID))
	if len(penalties) != 0 {
		t.Errorf("Expected penalties removed, got %d", len(penalties))
	}
	if err := f.ledger.DeleteDeposit(ctx, d.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestDeposit_ValidationRejectedBeforeWrite(t *testing.T) {
	f := newFixture(t)

	d := f.deposit(0, models.PaymentStatusPaid, false)
	err := f.ledger.SaveDeposit(context.Background(), d)
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if _, ok := ve.Fields["amount"]; !ok {
		t.Errorf("Expected amount field error, got %v", ve.Fields)
	}
	if d.ID != 0 || f.adjustments != 0 {
		t.Error("Rejected deposit must not be written")
	}
}

func TestDeposit_BalanceFailureRollsBackSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	failing := NewLedger(countingStore{Storage: f.store, adjustments: &f.adjustments, fail: errors.New("lock timeout")})

	d := f.deposit(500, models.PaymentStatusPaid, true)
	if err := failing.SaveDeposit(ctx, d); err == nil {
		t.Fatal("Expected balance failure to fail the save")
	}

	deposits, err := f.store.ListDeposits(ctx, store.ObligationFilter{})
	if err != nil {
		t.Fatalf("ListDeposits failed: %v", err)
	}
	if len(deposits) != 0 {
		t.Errorf("Expected deposit rolled back, found %d", len(deposits))
	}
	txns, _ := f.store.ListPaymentTransactions(ctx, models.DepositRef(1))
	if len(txns) != 0 {
		t.Errorf("Expected no payment transaction, found %d", len(txns))
	}
}

func TestFund_TypeFlipWhileApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fund := &models.FundManagement{
		Type:    models.FundTypeDebit,
		Amount:  decimal.NewFromInt(200),
		Status:  models.FundStatusPending,
		Purpose: "hall rent",
	}
	if err := f.ledger.SaveFund(ctx, fund); err != nil {
		t.Fatalf("SaveFund failed: %v", err)
	}
	f.expectBalance(t, 0)

	fund.Status = models.FundStatusApproved
	if err := f.ledger.SaveFund(ctx, fund); err != nil {
		t.Fatalf("SaveFund (approve) failed: %v", err)
	}
	f.expectBalance(t, -200)

	before := f.adjustments
	fund.Type = models.FundTypeCredit
	if err := f.ledger.SaveFund(ctx, fund); err != nil {
		t.Fatalf("SaveFund (flip) failed: %v", err)
	}
	f.expectBalance(t, 200)
	if f.adjustments-before != 1 {
		t.Errorf("Expected the +400 flip in one adjustment, got %d", f.adjustments-before)
	}

	if err := f.ledger.DeleteFund(ctx, fund.ID); err != nil {
		t.Fatalf("DeleteFund failed: %v", err)
	}
	f.expectBalance(t, 0)
}

func TestBalanceConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1 := f.deposit(500, models.PaymentStatusPending, false)
	d2 := f.deposit(300, models.PaymentStatusPaid, false)
	d2.Date = calendar.Date(2025, time.February, 10)
	credit := &models.FundManagement{Type: models.FundTypeCredit, Amount: decimal.NewFromInt(1000), Status: models.FundStatusApproved, Purpose: "grant"}
	debit := &models.FundManagement{Type: models.FundTypeDebit, Amount: decimal.NewFromInt(250), Status: models.FundStatusPending, Purpose: "stationery"}

	steps := []func() error{
		func() error { return f.ledger.SaveDeposit(ctx, d1) },
		func() error { return f.ledger.SaveDeposit(ctx, d2) },
		func() error { return f.ledger.SaveFund(ctx, credit) },
		func() error { return f.ledger.SaveFund(ctx, debit) },
		func() error { d1.PaymentStatus = models.PaymentStatusPaid; return f.ledger.SaveDeposit(ctx, d1) },
		func() error { debit.Status = models.FundStatusApproved; return f.ledger.SaveFund(ctx, debit) },
		func() error { d2.Amount = decimal.NewFromInt(350); return f.ledger.SaveDeposit(ctx, d2) },
		func() error { credit.Status = models.FundStatusRejected; return f.ledger.SaveFund(ctx, credit) },
		func() error { debit.Amount = decimal.NewFromInt(100); return f.ledger.SaveFund(ctx, debit) },
		func() error { return f.ledger.DeleteDeposit(ctx, d2.ID) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	// counted: d1 paid 500, debit approved -100
	f.expectBalance(t, 400)
}

func TestCashRecorder_AtMostOneTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPending, true)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	ref := models.DepositRef(d.ID)
	if txns, _ := f.store.ListPaymentTransactions(ctx, ref); len(txns) != 0 {
		t.Fatalf("No transaction expected for a pending deposit, got %d", len(txns))
	}

	for i := 0; i < 3; i++ {
		d.PaymentStatus = models.PaymentStatusPaid
		if err := f.ledger.SaveDeposit(ctx, d); err != nil {
			t.Fatalf("SaveDeposit (paid) failed: %v", err)
		}
		d.PaymentStatus = models.PaymentStatusPending
		if err := f.ledger.SaveDeposit(ctx, d); err != nil {
			t.Fatalf("SaveDeposit (pending) failed: %v", err)
		}
	}

	txns, err := f.store.ListPaymentTransactions(ctx, ref)
	if err != nil {
		t.Fatalf("ListPaymentTransactions failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected exactly one transaction, got %d", len(txns))
	}
	txn := txns[0]
	if txn.PaymentMethod != models.PaymentMethodCash || txn.Status != models.TransactionStatusSuccess {
		t.Errorf("Unexpected transaction %+v", txn)
	}
	want := CashClientTxnID(ref, fixedNow)
	if txn.ClientTxnID != want || !strings.HasPrefix(txn.ClientTxnID, "cash_deposit_") {
		t.Errorf("Expected client txn id %s, got %s", want, txn.ClientTxnID)
	}
	if txn.CustomerName != "Asha" {
		t.Errorf("Expected customer name Asha, got %q", txn.CustomerName)
	}
}

func TestCashRecorder_SkipsNonCustom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPaid, false)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	if txns, _ := f.store.ListPaymentTransactions(ctx, models.DepositRef(d.ID)); len(txns) != 0 {
		t.Errorf("Non-custom deposit should not record a cash transaction, got %d", len(txns))
	}
}

func TestLoanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan := &models.Loan{UserID: f.member.UserID, PrincipalAmount: decimal.NewFromInt(1000)}
	if err := f.ledger.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan failed: %v", err)
	}
	if !loan.InterestRate.Equal(decimal.NewFromInt(10)) || loan.TimelineMonths != 12 {
		t.Errorf("Expected settings defaults, got rate=%s timeline=%d", loan.InterestRate, loan.TimelineMonths)
	}
	if !loan.TotalPayable.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected total payable 1100, got %s", loan.TotalPayable)
	}
	if loan.Status != models.LoanStatusPending {
		t.Errorf("Expected pending, got %s", loan.Status)
	}

	approved, err := f.ledger.ApproveLoan(ctx, loan.ID, 99)
	if err != nil {
		t.Fatalf("ApproveLoan failed: %v", err)
	}
	if approved.ApprovedDate == nil || approved.ActionBy == nil || *approved.ActionBy != 99 {
		t.Errorf("Expected approval stamped, got %+v", approved)
	}
	if _, err := f.ledger.RejectLoan(ctx, loan.ID, 99); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus rejecting an approved loan, got %v", err)
	}

	approved.InterestRate = decimal.NewFromInt(20)
	if err := f.ledger.UpdateLoan(ctx, approved); err != nil {
		t.Fatalf("UpdateLoan failed: %v", err)
	}
	reloaded, _ := f.ledger.GetLoan(ctx, loan.ID)
	if !reloaded.TotalPayable.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Total payable must not be recomputed on edit, got %s", reloaded.TotalPayable)
	}

	active, err := f.ledger.SetLoanStatus(ctx, loan.ID, models.LoanStatusActive, 7)
	if err != nil {
		t.Fatalf("SetLoanStatus failed: %v", err)
	}
	if active.DisbursedDate == nil {
		t.Error("Expected disbursed date stamped")
	}
	if _, err := f.ledger.SetLoanStatus(ctx, loan.ID, models.LoanStatus("lost"), 7); !models.IsValidation(err) {
		t.Errorf("Expected validation error for unknown status, got %v", err)
	}
	f.expectBalance(t, 0)
}

func TestLoan_CashflowPolicy(t *testing.T) {
	f := newFixture(t, WithLoanPolicy(PolicyCashflow))
	ctx := context.Background()

	loan := f.loan(t, 1000, models.LoanStatusApproved)
	f.expectBalance(t, 0)

	if _, err := f.ledger.SetLoanStatus(ctx, loan.ID, models.LoanStatusActive, 1); err != nil {
		t.Fatalf("SetLoanStatus failed: %v", err)
	}
	f.expectBalance(t, -1000)

	first := &models.PrincipalPayment{LoanID: loan.ID, Amount: decimal.NewFromInt(400), PaymentStatus: models.PaymentStatusPaid}
	if err := f.ledger.SavePrincipalPayment(ctx, first); err != nil {
		t.Fatalf("SavePrincipalPayment failed: %v", err)
	}
	f.expectBalance(t, -600)
	remaining, _ := f.ledger.RemainingPrincipal(ctx, loan.ID)
	if !remaining.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Expected remaining 600, got %s", remaining)
	}

	second := &models.PrincipalPayment{LoanID: loan.ID, Amount: decimal.NewFromInt(600), PaymentStatus: models.PaymentStatusPaid, IsCustom: true}
	if err := f.ledger.SavePrincipalPayment(ctx, second); err != nil {
		t.Fatalf("SavePrincipalPayment failed: %v", err)
	}
	f.expectBalance(t, 0)

	reloaded, _ := f.ledger.GetLoan(ctx, loan.ID)
	if reloaded.Status != models.LoanStatusCompleted || reloaded.CompletedDate == nil {
		t.Errorf("Expected loan completed, got %s", reloaded.Status)
	}
	if txns, _ := f.store.ListPaymentTransactions(ctx, models.PrincipalRef(second.ID)); len(txns) != 1 {
		t.Errorf("Expected cash transaction for custom principal payment, got %d", len(txns))
	}

	if err := f.ledger.DeleteLoan(ctx, loan.ID); err != nil {
		t.Fatalf("DeleteLoan failed: %v", err)
	}
	f.expectBalance(t, 0)
}

func TestLoan_OffLedgerPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan := f.loan(t, 1000, models.LoanStatusActive)
	p := &models.PrincipalPayment{LoanID: loan.ID, Amount: decimal.NewFromInt(1000), PaymentStatus: models.PaymentStatusPaid}
	if err := f.ledger.SavePrincipalPayment(ctx, p); err != nil {
		t.Fatalf("SavePrincipalPayment failed: %v", err)
	}
	f.expectBalance(t, 0)
	if f.adjustments != 0 {
		t.Errorf("Off-ledger loans must not adjust the balance, got %d", f.adjustments)
	}
	reloaded, _ := f.ledger.GetLoan(ctx, loan.ID)
	if reloaded.Status != models.LoanStatusCompleted {
		t.Errorf("Expected completed loan, got %s", reloaded.Status)
	}
}

func TestLoan_ReopenedWhenPrincipalOwedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan := f.loan(t, 1000, models.LoanStatusActive)
	expect := func(want models.LoanStatus) *models.Loan {
		t.Helper()
		got, err := f.ledger.GetLoan(ctx, loan.ID)
		if err != nil {
			t.Fatalf("GetLoan failed: %v", err)
		}
		if got.Status != want {
			t.Fatalf("Expected %s loan, got %s", want, got.Status)
		}
		return got
	}

	p := &models.PrincipalPayment{LoanID: loan.ID, Amount: decimal.NewFromInt(1000), PaymentStatus: models.PaymentStatusPaid}
	if err := f.ledger.SavePrincipalPayment(ctx, p); err != nil {
		t.Fatalf("SavePrincipalPayment failed: %v", err)
	}
	completed := expect(models.LoanStatusCompleted)
	if completed.CompletedDate == nil {
		t.Error("Expected a completed date")
	}
	disbursed := completed.DisbursedDate

	p.PaymentStatus = models.PaymentStatusPending
	if err := f.ledger.SavePrincipalPayment(ctx, p); err != nil {
		t.Fatalf("SavePrincipalPayment failed: %v", err)
	}
	reopened := expect(models.LoanStatusActive)
	if reopened.CompletedDate != nil {
		t.Errorf("Expected the completed date to be cleared, got %v", reopened.CompletedDate)
	}
	if reopened.DisbursedDate == nil || disbursed == nil || !reopened.DisbursedDate.Equal(*disbursed) {
		t.Errorf("Reopening must keep the disbursed date, got %v want %v", reopened.DisbursedDate, disbursed)
	}

	p.PaymentStatus = models.PaymentStatusPaid
	if err := f.ledger.SavePrincipalPayment(ctx, p); err != nil {
		t.Fatalf("SavePrincipalPayment failed: %v", err)
	}
	expect(models.LoanStatusCompleted)

	if err := f.ledger.DeletePrincipalPayment(ctx, p.ID); err != nil {
		t.Fatalf("DeletePrincipalPayment failed: %v", err)
	}
	expect(models.LoanStatusActive)
	if remaining, _ := f.ledger.RemainingPrincipal(ctx, loan.ID); !remaining.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected 1000 remaining, got %s", remaining)
	}
}

func TestDeleteLoan_ReversesInterestPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan := f.loan(t, 1200, models.LoanStatusActive)
	due := calendar.Date(2025, time.February, 10)
	p := &models.InterestPayment{LoanID: loan.ID, Amount: decimal.NewFromInt(12), DueDate: &due, PaymentStatus: models.PaymentStatusPaid}
	if err := f.ledger.SaveInterestPayment(ctx, p); err != nil {
		t.Fatalf("SaveInterestPayment failed: %v", err)
	}
	if p.Name != "2025 Feb" || p.Period != "2025-02" {
		t.Errorf("Expected label from due date, got %q %q", p.Name, p.Period)
	}
	f.expectBalance(t, 12)

	if err := f.ledger.DeleteLoan(ctx, loan.ID); err != nil {
		t.Fatalf("DeleteLoan failed: %v", err)
	}
	f.expectBalance(t, 0)
	if _, err := f.store.GetInterestPayment(ctx, p.ID, false); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected interest payment deleted with its loan, got %v", err)
	}
}

func TestSettleGatewayTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPending, false)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	ref := models.DepositRef(d.ID)
	for _, id := range []string{"deposit_1_100", "deposit_1_200"} {
		err := f.store.CreatePaymentTransaction(ctx, &models.PaymentTransaction{
			PaymentType: ref.Type, RelatedObjectID: ref.ID, UserID: d.UserID, ClientTxnID: id,
			Amount: d.Amount, Status: models.TransactionStatusPending, PaymentMethod: models.PaymentMethodGateway,
		})
		if err != nil {
			t.Fatalf("CreatePaymentTransaction failed: %v", err)
		}
	}

	res := GatewayResult{Status: models.TransactionStatusSuccess, UPITxnID: "UPI123", Raw: []byte(`{"status":"success"}`)}
	txn, err := f.ledger.SettleGatewayTransaction(ctx, "deposit_1_200", res)
	if err != nil {
		t.Fatalf("SettleGatewayTransaction failed: %v", err)
	}
	if txn.Status != models.TransactionStatusSuccess || txn.UPITxnID != "UPI123" {
		t.Errorf("Unexpected settled transaction %+v", txn)
	}
	f.expectBalance(t, 500)

	paid, _ := f.store.GetDeposit(ctx, d.ID, false)
	if paid.PaymentStatus != models.PaymentStatusPaid || paid.PaidDate == nil {
		t.Errorf("Expected deposit paid, got %s", paid.PaymentStatus)
	}
	txns, _ := f.store.ListPaymentTransactions(ctx, ref)
	if len(txns) != 1 || txns[0].ClientTxnID != "deposit_1_200" {
		t.Errorf("Expected only the settled transaction to remain, got %+v", txns)
	}

	// a repeated callback is a no-op
	if _, err := f.ledger.SettleGatewayTransaction(ctx, "deposit_1_200", res); err != nil {
		t.Fatalf("Second settle failed: %v", err)
	}
	f.expectBalance(t, 500)

	if _, err := f.ledger.SettleGatewayTransaction(ctx, "missing", res); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSettleGatewayTransaction_Failure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.deposit(500, models.PaymentStatusPending, false)
	if err := f.ledger.SaveDeposit(ctx, d); err != nil {
		t.Fatalf("SaveDeposit failed: %v", err)
	}
	err := f.store.CreatePaymentTransaction(ctx, &models.PaymentTransaction{
		PaymentType: models.PaymentTypeDeposit, RelatedObjectID: d.ID, UserID: d.UserID, ClientTxnID: "deposit_1_300",
		Amount: d.Amount, Status: models.TransactionStatusPending, PaymentMethod: models.PaymentMethodGateway,
	})
	if err != nil {
		t.Fatalf("CreatePaymentTransaction failed: %v", err)
	}

	txn, err := f.ledger.SettleGatewayTransaction(ctx, "deposit_1_300", GatewayResult{Status: models.TransactionStatusFailed})
	if err != nil {
		t.Fatalf("SettleGatewayTransaction failed: %v", err)
	}
	if txn.Status != models.TransactionStatusFailed {
		t.Errorf("Expected failed, got %s", txn.Status)
	}
	f.expectBalance(t, 0)
	pending, _ := f.store.GetDeposit(ctx, d.ID, false)
	if pending.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("Failed payment must leave the deposit pending, got %s", pending.PaymentStatus)
	}
}

func TestPayPenalty_RefreshesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := models.DepositRef(42)

	var ids []uint
	for m := 1; m <= 3; m++ {
		p := &models.Penalty{
			UserID: f.member.UserID, PenaltyType: ref.Type, RelatedObjectID: ref.ID, MonthNumber: m,
			BaseAmount: decimal.NewFromInt(1000), PenaltyAmount: decimal.NewFromInt(1000 << (m - 1)),
			PaymentStatus: models.PaymentStatusPending, DueDate: calendar.Date(2025, time.Month(m), 1),
		}
		if _, err := f.store.InsertPenalty(ctx, p); err != nil {
			t.Fatalf("InsertPenalty failed: %v", err)
		}
		ids = append(ids, p.ID)
	}
	if _, err := RefreshPenaltyTotals(ctx, f.store, ref); err != nil {
		t.Fatalf("RefreshPenaltyTotals failed: %v", err)
	}

	paid, err := f.ledger.PayPenalty(ctx, ids[2])
	if err != nil {
		t.Fatalf("PayPenalty failed: %v", err)
	}
	if !paid.TotalPenalty.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected remaining total 3000, got %s", paid.TotalPenalty)
	}
	penalties, _ := f.store.ListPenalties(ctx, ref)
	for _, p := range penalties {
		if !p.TotalPenalty.Equal(decimal.NewFromInt(3000)) {
			t.Errorf("Penalty month %d total %s, want 3000", p.MonthNumber, p.TotalPenalty)
		}
	}
	if _, err := f.ledger.PayPenalty(ctx, ids[2]); !errors.Is(err, models.ErrAlreadyPaid) {
		t.Errorf("Expected ErrAlreadyPaid, got %v", err)
	}
	f.expectBalance(t, 0)
}
