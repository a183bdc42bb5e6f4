package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcclellann/coopledger/pkg/app"
	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/jobs"
	"github.com/mcclellann/coopledger/pkg/notify"
	"github.com/mcclellann/coopledger/pkg/obligation"
	"github.com/mcclellann/coopledger/pkg/penalty"
	"github.com/spf13/cobra"
)

var Version = "dev"

// opener builds the application for one command run.
type opener func(ctx context.Context) (*app.App, error)

func openFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func main() {
	if err := rootCmd(openFromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "coopctl",
		Short:        "Batch jobs and reports for the cooperative ledger",
		Version:      Version,
		SilenceUsage: true,
	}
	root.AddCommand(applyPenaltiesCmd(open))
	root.AddCommand(createPendingPaymentsCmd(open))
	root.AddCommand(notificationAlertCmd(open))
	root.AddCommand(balanceCmd(open))
	return root
}

// withApp opens the application, runs fn and closes it. Setup failures are
// reported and the command still exits cleanly so a cron wrapper never retries.
func withApp(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app.App, out io.Writer)) error {
	out := cmd.OutOrStdout()
	a, err := open(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "ERROR: %v\n", err)
		return nil
	}
	defer a.Close()
	fn(cmd.Context(), a, out)
	return nil
}

func applyPenaltiesCmd(open opener) *cobra.Command {
	var opts penalty.Options
	cmd := &cobra.Command{
		Use:     jobs.ApplyPenalties,
		Aliases: []string{alias(jobs.ApplyPenalties)},
		Short:   "Charge doubling penalties on overdue deposits and interest payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App, out io.Writer) {
				report, err := a.Jobs.Penalties.Run(ctx, opts)
				if err != nil {
					fmt.Fprintf(out, "ERROR: %v\n", err)
					return
				}
				printPenalties(out, report, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be charged without writing")
	cmd.Flags().UintVar(&opts.UserID, "user-id", 0, "Only process this user")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Replace pending penalties for months already charged")
	return cmd
}

func printPenalties(out io.Writer, r *penalty.Report, opts penalty.Options) {
	if opts.DryRun {
		fmt.Fprintln(out, "DRY RUN - no penalties will be written")
	}
	fmt.Fprintf(out, "Date: %s  base amount: %s  grace days: %d\n", r.Today.Format("2006-01-02"), r.BaseAmount.StringFixed(2), r.GraceDays)
	for _, l := range r.Lines {
		fmt.Fprintln(out, "  "+l.String())
	}
	fmt.Fprintln(out, strings.Repeat("=", 40))
	fmt.Fprintf(out, "Deposits: %d processed, %d penalties, total %s\n", r.Deposits.Processed, r.Deposits.Created, r.Deposits.Total.StringFixed(2))
	fmt.Fprintf(out, "Interest: %d processed, %d penalties, total %s\n", r.Interest.Processed, r.Interest.Created, r.Interest.Total.StringFixed(2))
	printErrors(out, r.Errors)
}

func createPendingPaymentsCmd(open opener) *cobra.Command {
	var opts obligation.Options
	cmd := &cobra.Command{
		Use:     jobs.CreatePendingPayments,
		Aliases: []string{alias(jobs.CreatePendingPayments)},
		Short:   "Create the monthly deposits and interest payments that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App, out io.Writer) {
				report, err := a.Jobs.Obligations.Run(ctx, opts)
				if err != nil {
					fmt.Fprintf(out, "ERROR: %v\n", err)
					return
				}
				if report.DryRun {
					fmt.Fprintln(out, "DRY RUN - nothing will be written")
				}
				fmt.Fprintf(out, "Date: %s  deposit due day: %d  interest due day: %d\n",
					report.Today.Format("2006-01-02"), report.DepositDueDay, report.InterestDueDay)
				for _, l := range report.Lines {
					fmt.Fprintln(out, "  "+l)
				}
				fmt.Fprintln(out, strings.Repeat("=", 40))
				fmt.Fprintf(out, "Deposits created: %d\n", report.DepositsCreated)
				fmt.Fprintf(out, "Interest payments created: %d\n", report.InterestCreated)
				printErrors(out, report.Errors)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be created without writing")
	return cmd
}

func notificationAlertCmd(open opener) *cobra.Command {
	var opts notify.ReminderOptions
	cmd := &cobra.Command{
		Use:     jobs.NotificationAlert,
		Aliases: []string{alias(jobs.NotificationAlert)},
		Short:   "Remind members about pending deposits, interest and penalties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App, out io.Writer) {
				report := a.Notify.SendReminders(ctx, opts)
				if report.DryRun {
					fmt.Fprintln(out, "DRY RUN - no notifications will be sent")
				}
				for _, l := range report.Lines {
					fmt.Fprintln(out, "  "+l)
				}
				fmt.Fprintln(out, strings.Repeat("=", 40))
				for _, row := range []struct {
					name  string
					stats notify.ReminderStats
				}{
					{"Deposits", report.Deposits},
					{"Interest", report.Interest},
					{"Penalties", report.Penalties},
				} {
					fmt.Fprintf(out, "%s: %d pending, %d sent, %d skipped, %d failed\n",
						row.name, row.stats.Total, row.stats.Sent, row.stats.Skipped, row.stats.Failed)
				}
				printErrors(out, report.Errors)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show who would be notified without sending")
	return cmd
}

func balanceCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the organization balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App, out io.Writer) {
				bal, err := a.Ledger.Balance(ctx)
				if err != nil {
					fmt.Fprintf(out, "ERROR: %v\n", err)
					return
				}
				fmt.Fprintf(out, "Balance: %s\n", bal.StringFixed(2))
			})
		},
	}
}

func printErrors(out io.Writer, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(out, "Errors (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintln(out, "  "+e)
	}
}

// alias is the underscore spelling of a job name, as the old scheduler entries use it.
func alias(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
