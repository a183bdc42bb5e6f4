// Package app wires the store, ledger and services from configuration.
package app

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/checkout"
	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/gateway"
	"github.com/mcclellann/coopledger/pkg/jobs"
	"github.com/mcclellann/coopledger/pkg/ledger"
	"github.com/mcclellann/coopledger/pkg/notify"
	"github.com/mcclellann/coopledger/pkg/obligation"
	"github.com/mcclellann/coopledger/pkg/penalty"
	"github.com/mcclellann/coopledger/pkg/store"
)

type App struct {
	Config   *config.Config
	Store    *store.GormStore
	Ledger   *ledger.Ledger
	Notify   *notify.Service
	Checkout *checkout.Service
	Jobs     *jobs.Jobs
}

// New opens the database and builds every service on top of it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, s), nil
}

// Build wires the services over an already open store.
func Build(ctx context.Context, cfg *config.Config, s *store.GormStore) *App {
	var opts []ledger.Option
	if cfg.Ledger.LoanPolicy != "" {
		opts = append(opts, ledger.WithLoanPolicy(ledger.LoanPolicy(cfg.Ledger.LoanPolicy)))
	}
	l := ledger.NewLedger(s, opts...)
	n := notify.NewService(s, notify.NewSender(ctx, cfg.Firebase.CredentialsFile))
	return &App{
		Config:   cfg,
		Store:    s,
		Ledger:   l,
		Notify:   n,
		Checkout: checkout.NewService(l, gateway.New(cfg.Gateway), cfg.Gateway.RedirectURL),
		Jobs: &jobs.Jobs{
			Penalties:   penalty.NewEngine(s, n),
			Obligations: obligation.NewGenerator(s),
			Reminders:   n,
		},
	}
}

func (a *App) Close() error {
	return a.Store.Close()
}
