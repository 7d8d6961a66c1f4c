// Package app wires the investment platform services together and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/plan"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/accrual"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/approvals"
	planssvc "github.com/ameer851/axix-finance-sub002/internal/app/services/plans"
	txsvc "github.com/ameer851/axix-finance-sub002/internal/app/services/transactions"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage/memory"
	"github.com/ameer851/axix-finance-sub002/internal/app/system"
	"github.com/ameer851/axix-finance-sub002/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Transactions storage.TransactionStore
	Ledger       storage.LedgerStore
}

// Options tunes application construction.
type Options struct {
	Plans              []plan.Plan // nil selects the built-in tiers
	AdminUserIDs       []string
	WithdrawFeePercent float64
	AccrualEnabled     bool
	AccrualSchedule    string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Plans        *planssvc.Catalog
	Transactions *txsvc.Service
	Approvals    *approvals.Coordinator
	Authorizer   auth.Authorizer
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Transactions == nil {
		stores.Transactions = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}

	planList := opts.Plans
	if planList == nil {
		planList = planssvc.DefaultPlans()
	}
	catalog, err := planssvc.NewCatalog(planList)
	if err != nil {
		return nil, fmt.Errorf("build plan catalog: %w", err)
	}

	authorizer := auth.NewRoleAuthorizer(opts.AdminUserIDs)

	machineOpts := []txsvc.Option{txsvc.WithAuthorizer(authorizer)}
	if opts.WithdrawFeePercent > 0 {
		machineOpts = append(machineOpts, txsvc.WithFeePercent(opts.WithdrawFeePercent))
	}
	machine := txsvc.New(catalog, stores.Transactions, stores.Ledger, log, machineOpts...)
	coordinator := approvals.New(machine, log)

	manager := system.NewManager()
	if err := manager.Register(system.NoopService{ServiceName: "transactions"}); err != nil {
		return nil, fmt.Errorf("register transactions service: %w", err)
	}

	if opts.AccrualEnabled {
		runner, err := accrual.NewRunner(catalog, stores.Transactions, stores.Ledger, opts.AccrualSchedule, log)
		if err != nil {
			return nil, fmt.Errorf("configure accrual runner: %w", err)
		}
		if err := manager.Register(runner); err != nil {
			return nil, fmt.Errorf("register accrual runner: %w", err)
		}
	} else {
		log.Warn("accrual runner disabled; daily profit will not be credited")
	}

	return &Application{
		manager:      manager,
		log:          log,
		Plans:        catalog,
		Transactions: machine,
		Approvals:    coordinator,
		Authorizer:   authorizer,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
