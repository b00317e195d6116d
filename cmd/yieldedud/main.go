package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"yieldedu/config"
	"yieldedu/core/events"
	"yieldedu/crypto"
	"yieldedu/native/borrow"
	"yieldedu/native/registry"
	"yieldedu/native/yieldpool"
	"yieldedu/observability/logging"
	"yieldedu/rpc"
	"yieldedu/state"
	"yieldedu/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("YIELDEDU_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("yieldedud", env).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}
	log := logging.Setup("yieldedud", env)

	owner, err := cfg.Owner()
	if err != nil {
		log.Error("invalid owner address", "error", err)
		os.Exit(1)
	}
	treasury, err := cfg.Treasury()
	if err != nil {
		log.Error("invalid treasury address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		log.Error("failed to open database", "error", err, "dataDir", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	ledger, err := state.NewLedgerState(db)
	if err != nil {
		log.Error("failed to build ledger", "error", err)
		os.Exit(1)
	}

	token := tokenAddress(cfg)
	recorder := events.NewRecorder()

	reg := registry.NewEngine(owner, token, cfg.Token.Name, cfg.Token.Symbol)
	reg.SetState(ledger)
	reg.SetEmitter(recorder)

	pool := yieldpool.NewEngine(owner, state.ModuleAddress("yieldpool"))
	pool.SetState(ledger)
	pool.SetEmitter(recorder)

	brw := borrow.NewEngine(owner, state.ModuleAddress("borrow"), state.ModuleAddress("borrow/collateral"), treasury)
	brw.SetState(ledger)
	brw.SetEmitter(recorder)
	brw.SetAllowance(pool)

	if err := seedParameters(ledger, cfg, token); err != nil {
		log.Error("failed to seed parameters", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(ledger, reg, pool, brw, recorder, log)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("rpc server listening", "address", cfg.ListenAddress, "token", token.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

// tokenAddress resolves the protocol token account: the configured address
// when set, otherwise an address derived from the token symbol so a bare
// config still boots deterministically.
func tokenAddress(cfg *config.Config) crypto.Address {
	raw := strings.TrimSpace(cfg.Token.Address)
	if raw != "" {
		if addr, err := crypto.DecodeAddress(raw); err == nil {
			return addr
		}
	}
	return state.ModuleAddress("token/" + cfg.Token.Symbol)
}

// seedParameters writes the configured pool and borrow settings on first boot
// and allow-lists the protocol token so staking and borrowing work out of the
// box. Later changes go through the owner RPC and are never overwritten here.
func seedParameters(ledger *state.LedgerState, cfg *config.Config, token crypto.Address) error {
	return ledger.Mutate(func() error {
		seeded, err := ledger.Seeded()
		if err != nil {
			return err
		}
		if seeded {
			return nil
		}
		if err := ledger.PutPoolParams(&yieldpool.Params{
			YieldRate:   cfg.Pool.YieldRate,
			MinDuration: cfg.Pool.MinDuration,
			MaxDuration: cfg.Pool.MaxDuration,
		}); err != nil {
			return err
		}
		params, err := ledger.GetBorrowParams()
		if err != nil {
			return err
		}
		params.MinHealthFactor = cfg.Borrow.MinHealthFactor
		params.MinimumDuration = cfg.Borrow.MinimumDuration
		if err := ledger.PutBorrowParams(params); err != nil {
			return err
		}
		if err := ledger.PutAllowList(registry.NewAllowList(token)); err != nil {
			return err
		}
		return ledger.MarkSeeded()
	})
}
