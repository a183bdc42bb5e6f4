package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcclellann/coopledger/pkg/calendar"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store/storetest"
	"github.com/shopspring/decimal"
)

type fakeSender struct {
	sent    []string
	failFor string
}

func (f *fakeSender) Send(_ context.Context, token, title, _ string) error {
	if token == f.failFor {
		return errors.New("device unregistered")
	}
	f.sent = append(f.sent, token+":"+title)
	return nil
}

func TestNotifyUser(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	sender := &fakeSender{failFor: "token-9000000003"}
	svc := NewService(s, sender)

	ok := storetest.Member(t, s, "Asha", "9000000001")
	if err := svc.NotifyUser(ctx, ok.ID, "Hello", "World"); err != nil {
		t.Fatalf("NotifyUser failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("Expected one push, got %d", len(sender.sent))
	}

	silent := &models.User{Name: "Ravi", Phone: "9000000002"}
	if err := s.CreateUser(ctx, silent); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := svc.NotifyUser(ctx, silent.ID, "Hello", "World"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}

	broken := storetest.Member(t, s, "Meena", "9000000003")
	if err := svc.NotifyUser(ctx, broken.ID, "Hello", "World"); err == nil {
		t.Error("Expected delivery failure to be returned")
	}

	if err := svc.NotifyUser(ctx, 404, "Hello", "World"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestSendReminders(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	sender := &fakeSender{}
	svc := NewService(s, sender)

	withToken := storetest.Member(t, s, "Asha", "9000000001")
	mu := storetest.Membership(t, s, withToken, 500, calendar.Date(2025, time.January, 1))
	noToken := &models.User{Name: "Ravi", Phone: "9000000002"}
	if err := s.CreateUser(ctx, noToken); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for _, month := range []time.Month{time.January, time.February} {
		ym := calendar.YearMonth{Year: 2025, Month: month}
		d := &models.Deposit{
			UserID: withToken.ID, MembershipID: mu.MembershipID, Amount: decimal.NewFromInt(500),
			Date: ym.Day(10), PaymentStatus: models.PaymentStatusPending, Name: ym.Label(), Period: ym.Period(),
		}
		if err := s.SaveDeposit(ctx, d); err != nil {
			t.Fatalf("SaveDeposit failed: %v", err)
		}
	}
	penalty := &models.Penalty{
		UserID: noToken.ID, PenaltyType: models.PaymentTypeDeposit, RelatedObjectID: 1, MonthNumber: 1,
		BaseAmount: decimal.NewFromInt(1000), PenaltyAmount: decimal.NewFromInt(1000), TotalPenalty: decimal.NewFromInt(1000),
		PaymentStatus: models.PaymentStatusPending, DueDate: calendar.Date(2025, time.February, 1),
	}
	if _, err := s.InsertPenalty(ctx, penalty); err != nil {
		t.Fatalf("InsertPenalty failed: %v", err)
	}

	dry := svc.SendReminders(ctx, ReminderOptions{DryRun: true})
	if dry.Deposits.Total != 2 || dry.Deposits.Sent != 2 {
		t.Errorf("Dry run deposit stats = %+v", dry.Deposits)
	}
	if len(sender.sent) != 0 {
		t.Errorf("Dry run must not send, sent %d", len(sender.sent))
	}

	report := svc.SendReminders(ctx, ReminderOptions{})
	if len(report.Errors) != 0 {
		t.Fatalf("Unexpected errors: %v", report.Errors)
	}
	if report.Deposits != (ReminderStats{Total: 2, Sent: 2}) {
		t.Errorf("Deposit stats = %+v", report.Deposits)
	}
	if report.Penalties != (ReminderStats{Total: 1, Skipped: 1}) {
		t.Errorf("Penalty stats = %+v", report.Penalties)
	}
	if report.Interest.Total != 0 {
		t.Errorf("Interest stats = %+v", report.Interest)
	}
	if len(sender.sent) != 2 {
		t.Errorf("Expected 2 pushes, got %d", len(sender.sent))
	}
}
