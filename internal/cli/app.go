package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/auth"
	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/backend/firestore"
	"github.com/Ithachiuchiha/e-commers-site/internal/backend/rest"
	"github.com/Ithachiuchiha/e-commers-site/internal/cart"
	"github.com/Ithachiuchiha/e-commers-site/internal/catalog"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/orders"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/config"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/retry"
	"github.com/Ithachiuchiha/e-commers-site/internal/session"
)

// app is one storefront "tab": a fresh page lifetime over the persistent device storage.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time

	device     *localstore.SQLite
	local      localstore.Store
	tables     backend.Tables
	sessions   *session.Manager
	store      *cart.Store
	reconciler *cart.Reconciler
	auth       *auth.Orchestrator
	catalog    *catalog.Service
	checkout   *orders.Checkout
	history    *orders.History
	dashboard  *orders.Dashboard

	closers []func() error
}

// snapshotTables serves cart snapshots from a store other than the table backend.
type snapshotTables struct {
	backend.Tables
	snapshots backend.CartSnapshots
}

func (t snapshotTables) CartSnapshots() backend.CartSnapshots { return t.snapshots }

// openApp loads configuration, wires the storefront and runs the start-up sequence.
func openApp(ctx context.Context, opts *RootOptions) (_ *app, err error) {
	loadOpts := []config.Option{config.WithEnvFile(opts.EnvFile)}
	if opts.env != nil {
		loadOpts = append(loadOpts, config.WithEnvMap(opts.env), config.WithoutSystemEnv())
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, err
	}

	logger := opts.logger
	if logger == nil {
		level := "warn"
		if opts.Verbose {
			level = "debug"
		}
		if logger, err = observability.NewLogger(level); err != nil {
			return nil, WrapExitError(ExitCommandError, "initialise logger", err)
		}
	}
	logger = logger.Named("storefront")
	now := opts.clock()

	a := &app{cfg: cfg, logger: logger, now: now}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	device, err := localstore.OpenSQLite(cfg.Storage.LocalDB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open local storage", err)
	}
	a.device = device
	a.closers = append(a.closers, device.Close)
	a.local = device.Scope(localstore.ScopeLocal)
	page := localstore.NewMemory()

	client, err := rest.New(rest.Config{
		BaseURL:         cfg.Backend.URL,
		AnonKey:         cfg.Backend.AnonKey,
		ProjectRef:      cfg.Backend.ProjectRef,
		ApplicationName: cfg.Backend.ApplicationName,
		HTTPClient:      opts.httpClient,
		Timeout:         cfg.Backend.HTTPTimeout,
		Local:           a.local,
		Clock:           now,
		Logger:          logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure backend", err)
	}
	a.tables = client

	if cfg.Storage.SnapshotBackend == config.SnapshotBackendFirestore {
		provider := firestore.NewProvider(cfg.Firestore, logger)
		a.closers = append(a.closers, provider.Close)
		snapshots, err := firestore.NewSnapshots(provider, firestore.DefaultCollection, logger)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "configure firestore", err)
		}
		a.tables = snapshotTables{Tables: client, snapshots: snapshots}
	}

	if a.sessions, err = session.NewManager(session.ManagerDeps{
		Auth:  client,
		Local: a.local,
		Page:  page,
		Retry: retry.Policy{
			MaxAttempts: cfg.Session.MaxAttempts,
			BaseDelay:   cfg.Session.BaseDelay,
		},
		Logger: logger,
	}); err != nil {
		return nil, err
	}

	notifier := cart.NewNotifier()
	if a.store, err = cart.NewStore(cart.StoreDeps{Local: a.local, Notifier: notifier, Logger: logger}); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })
	if err := a.store.Load(ctx); err != nil {
		logger.Warn("stored cart unreadable, starting empty", zap.Error(err))
	}
	if a.reconciler, err = cart.NewReconciler(cart.ReconcilerDeps{
		Snapshots: a.tables.CartSnapshots(),
		Local:     a.local,
		Notifier:  notifier,
		Clock:     now,
		Logger:    logger,
	}); err != nil {
		return nil, err
	}

	if a.auth, err = auth.NewOrchestrator(auth.OrchestratorDeps{
		Auth:         client,
		Customers:    a.tables.Customers(),
		Sessions:     a.sessions,
		Cart:         a.reconciler,
		Page:         page,
		ReloadPolicy: auth.ReloadPolicy(cfg.Session.ReloadPolicy),
		Logger:       logger,
	}); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.auth.Close(); return nil })

	if a.catalog, err = catalog.NewService(catalog.ServiceDeps{Catalog: a.tables.Catalog(), Logger: logger}); err != nil {
		return nil, err
	}
	if a.checkout, err = orders.NewCheckout(orders.CheckoutDeps{
		Orders:      a.tables.Orders(),
		Cart:        a.store,
		Clock:       now,
		IDGenerator: opts.newID,
		Logger:      logger,
	}); err != nil {
		return nil, err
	}
	if a.history, err = orders.NewHistory(a.tables.Orders()); err != nil {
		return nil, err
	}
	if a.dashboard, err = orders.NewDashboard(a.tables, logger); err != nil {
		return nil, err
	}

	if err := a.auth.Initialize(ctx); err != nil {
		logger.Warn("start-up session check failed, continuing signed out", zap.Error(err))
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing storefront resource failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

// userID returns the signed-in user id, or errNotSignedIn.
func (a *app) userID() (string, error) {
	user := a.auth.User()
	if user == nil || user.ID == "" {
		return "", errNotSignedIn
	}
	return user.ID, nil
}

// syncCart mirrors the in-memory cart to device storage and, when signed in,
// to the remote snapshot so the next start-up restores it.
func (a *app) syncCart(ctx context.Context) error {
	current := a.store.Cart()
	if err := cart.WriteLocal(ctx, a.local, current); err != nil {
		return err
	}
	user := a.auth.User()
	if user == nil {
		return nil
	}
	if err := a.reconciler.PushLocal(ctx, user.ID); err != nil {
		return fmt.Errorf("sync cart: %w", err)
	}
	return nil
}

func (a *app) product(ctx context.Context, id string) (domain.Product, error) {
	product, err := a.catalog.Find(ctx, domain.ProductID(id))
	if err != nil {
		return domain.Product{}, err
	}
	if product == nil {
		return domain.Product{}, errProductNotFound
	}
	return *product, nil
}
