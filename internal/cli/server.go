package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goAMMd/internal/config"
	"github.com/LeJamon/goAMMd/internal/core/dex"
	"github.com/LeJamon/goAMMd/internal/core/token"
	"github.com/LeJamon/goAMMd/internal/rpc"
	"github.com/LeJamon/goAMMd/internal/storage/statedb"
)

// serverCmd starts the daemon. This is also the default action when no
// subcommand is given.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the market maker daemon",
	Long: `Start the goAMMd server which provides:
- HTTP JSON-RPC API for market, liquidity and swap operations
- WebSocket event stream for market activity
- Health check endpoint`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(log)

	db, err := statedb.Open(cfg.Database.Backend, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("state store close failed", "err", closeErr)
		}
	}()
	log.Info("state store open",
		"backend", cfg.Database.Backend, "path", cfg.Database.Path)

	base, registry, err := seedGenesis(cfg, log)
	if err != nil {
		return fmt.Errorf("seed genesis: %w", err)
	}

	var hub *rpc.Hub
	var events dex.EventPublisher
	if cfg.Server.WSEnabled {
		hub = rpc.NewHub(log)
		events = rpc.NewPublisher(hub, log)
	}

	engine, err := dex.NewEngine(dex.Config{
		DB:      db,
		Tokens:  registry,
		Base:    base,
		Custody: cfg.Dex.CustodyAccount,
		Fee:     dex.FeePolicy{OutputBps: cfg.Dex.FeeBps},
		Events:  events,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	server := rpc.NewServer(cfg.Server, rpc.NewHandler(engine), hub, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(cfg.ListenAddr())
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedGenesis builds the in-process token ledgers: one for the base
// currency and one per configured asset. Every genesis mint also grants the
// pool custody a matching allowance so the funded account can deposit and
// trade without an extra approval step.
func seedGenesis(cfg *config.Config, log *slog.Logger) (*token.Ledger, *token.Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	base := token.NewLedger()
	registry := token.NewRegistry()

	assets := make(map[string]*token.Ledger, len(cfg.Genesis.Assets))
	for _, symbol := range cfg.Genesis.Assets {
		ledger := token.NewLedger()
		assets[symbol] = ledger
		registry.Register(symbol, ledger)
	}

	for _, bal := range cfg.Genesis.Balances {
		ledger := base
		if bal.Token != "" {
			ledger = assets[bal.Token]
		}
		amount, err := decimal.NewFromString(bal.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("genesis amount %q: %w", bal.Amount, err)
		}
		if err := ledger.Mint(bal.Account, amount); err != nil {
			return nil, nil, err
		}
		if _, err := ledger.Approve(bal.Account, cfg.Dex.CustodyAccount, amount); err != nil {
			return nil, nil, err
		}
		log.Debug("genesis mint",
			"account", bal.Account, "token", bal.Token, "amount", bal.Amount)
	}

	return base, registry, nil
}
