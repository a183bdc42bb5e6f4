// Package jobs runs the batch jobs on their cron schedules.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/notify"
	"github.com/mcclellann/coopledger/pkg/obligation"
	"github.com/mcclellann/coopledger/pkg/penalty"
	"github.com/robfig/cron/v3"
)

const (
	ApplyPenalties        = "apply-penalties"
	CreatePendingPayments = "create-pending-payments"
	NotificationAlert     = "notification-alert"
)

// Timeout bounds one scheduled run.
var Timeout = 10 * time.Minute

type Jobs struct {
	Penalties   *penalty.Engine
	Obligations *obligation.Generator
	Reminders   *notify.Service
}

// Run executes the named job with default options and logs its summary.
func (j *Jobs) Run(ctx context.Context, name string) error {
	switch name {
	case ApplyPenalties:
		report, err := j.Penalties.Run(ctx, penalty.Options{})
		if err != nil {
			return err
		}
		log.Printf("[jobs] %s: %d deposit and %d interest penalties created, %d errors",
			name, report.Deposits.Created, report.Interest.Created, len(report.Errors))
	case CreatePendingPayments:
		report, err := j.Obligations.Run(ctx, obligation.Options{})
		if err != nil {
			return err
		}
		log.Printf("[jobs] %s: %d deposits and %d interest payments created, %d errors",
			name, report.DepositsCreated, report.InterestCreated, len(report.Errors))
	case NotificationAlert:
		report := j.Reminders.SendReminders(ctx, notify.ReminderOptions{})
		log.Printf("[jobs] %s: deposits %+v, interest %+v, penalties %+v",
			name, report.Deposits, report.Interest, report.Penalties)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	return nil
}

// Schedule registers every job on a new cron. The caller starts and stops it.
// A run still in progress when its next tick fires is skipped.
func (j *Jobs) Schedule(cfg config.ScheduleConfig) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	specs := []struct{ name, spec string }{
		{ApplyPenalties, cfg.ApplyPenalties},
		{CreatePendingPayments, cfg.CreatePendingPayments},
		{NotificationAlert, cfg.NotificationAlert},
	}
	for _, s := range specs {
		name := s.name
		if _, err := c.AddFunc(s.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), Timeout)
			defer cancel()
			if err := j.Run(ctx, name); err != nil {
				log.Printf("[jobs] %s failed: %v", name, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", name, s.spec, err)
		}
		log.Printf("[jobs] %s scheduled at %q", name, s.spec)
	}
	return c, nil
}
