package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voodoo-o/toy-exchange/params"
	"github.com/voodoo-o/toy-exchange/pkg/api"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/engine"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/instrument"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/ledger"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/registry"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/txlog"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/user"
	"github.com/voodoo-o/toy-exchange/pkg/storage"
	"github.com/voodoo-o/toy-exchange/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Log.File)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger initialized", zap.String("log_file", cfg.Log.File))

	// ---- State components ----
	bal := ledger.New()
	insts := instrument.NewRegistry()
	orders := registry.New()
	trades := txlog.New()
	users := user.NewDirectory()

	// ---- Persistence (optional) ----
	var store *storage.Store
	if cfg.Storage.DataDir != "" {
		store, err = storage.Open(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal("store open failed", zap.String("dir", cfg.Storage.DataDir), zap.Error(err))
		}
		defer store.Close()

		restore(store, logger, users, insts, bal, trades)
	} else {
		logger.Warn("persistence disabled, state is memory only")
	}

	// ---- Bootstrap admin ----
	seedAdmin(cfg, logger, users, store)

	// ---- Engine ----
	eng := engine.New(engine.Options{
		CashAsset:   cfg.Exchange.CashAsset,
		Ledger:      bal,
		Instruments: insts,
		Orders:      orders,
		Trades:      trades,
		Store:       store,
		Logger:      logger,
	})

	if store != nil {
		restoreOrders(store, logger, eng)
	}

	// ---- API Server ----
	server := api.NewServer(eng, users, insts, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(cfg.Server.ListenAddr); err != nil {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	logger.Info("exchange started",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("cash_asset", cfg.Exchange.CashAsset))

	<-ctx.Done()
	logger.Info("shutting down")
}

// restore replays persisted state into the in-memory components. Load errors
// are fatal, a half-restored exchange must not serve traffic.
func restore(store *storage.Store, logger *zap.Logger, users *user.Directory, insts *instrument.Registry, bal *ledger.Ledger, trades *txlog.Log) {
	loadedUsers, err := store.LoadUsers()
	if err != nil {
		logger.Fatal("restore users failed", zap.Error(err))
	}
	for _, u := range loadedUsers {
		users.Seed(u)
	}

	loadedInsts, err := store.LoadInstruments()
	if err != nil {
		logger.Fatal("restore instruments failed", zap.Error(err))
	}
	for _, inst := range loadedInsts {
		if err := insts.Register(inst); err != nil {
			logger.Fatal("restore instrument failed", zap.String("ticker", inst.Ticker), zap.Error(err))
		}
	}

	rows, err := store.LoadBalances()
	if err != nil {
		logger.Fatal("restore balances failed", zap.Error(err))
	}
	for _, row := range rows {
		if err := bal.Adjust(row.UserID, row.Asset, row.Amount); err != nil {
			logger.Fatal("restore balance failed", zap.String("user", row.UserID), zap.Error(err))
		}
	}

	loadedTrades, err := store.LoadTrades()
	if err != nil {
		logger.Fatal("restore trades failed", zap.Error(err))
	}
	for _, tx := range loadedTrades {
		trades.Append(tx)
	}

	logger.Info("state restored",
		zap.Int("users", len(loadedUsers)),
		zap.Int("instruments", len(loadedInsts)),
		zap.Int("balances", len(rows)),
		zap.Int("trades", len(loadedTrades)))
}

// restoreOrders replays persisted orders once the engine exists. Open limit
// orders go back into their books.
func restoreOrders(store *storage.Store, logger *zap.Logger, eng *engine.Engine) {
	loaded, err := store.LoadOrders()
	if err != nil {
		logger.Fatal("restore orders failed", zap.Error(err))
	}
	for _, o := range loaded {
		eng.RestoreOrder(o)
	}
	logger.Info("orders restored", zap.Int("orders", len(loaded)))
}

// seedAdmin ensures the configured bootstrap ADMIN user exists.
func seedAdmin(cfg params.Config, logger *zap.Logger, users *user.Directory, store *storage.Store) {
	key := cfg.Exchange.AdminKey
	if key == "" {
		logger.Warn("no admin api key configured, admin endpoints unreachable")
		return
	}
	if _, err := users.GetByKey(key); err == nil {
		return
	}

	admin := user.User{
		ID:     uuid.NewString(),
		Name:   cfg.Exchange.AdminName,
		Role:   user.RoleAdmin,
		APIKey: key,
	}
	users.Seed(admin)
	if store != nil {
		if err := store.SaveUser(admin); err != nil {
			logger.Warn("persist admin failed", zap.Error(err))
		}
	}
	logger.Info("admin seeded", zap.String("user", admin.ID), zap.String("name", admin.Name))
}
