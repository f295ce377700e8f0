package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/config"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/delegation"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/gamesession"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/securestore"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/signer"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/token"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/txcompose"
	"github.com/agentic-reserve/magic-roullete-sub000/internal/walletsession"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// runtime bundles every wired service behind the daemon's HTTP surface.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	wallet   *walletsession.Manager
	games    *gamesession.Authorizer
	control  *delegation.Controller
	tokens   *token.Service
	composer *txcompose.Composer
	started  time.Time
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	metricsAddr := flag.String("metrics-addr", "", "Metrics listen address override")
	demoGame := flag.Uint64("demo-game", 0, "Run one delegated round against this game id and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("roulette-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roulette-daemon failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	rt, err := build(cfg, logger)
	if err != nil {
		logger.Error("roulette-daemon failed to initialize", "error", err)
		os.Exit(1)
	}

	logger.Info("roulette-daemon starting",
		"version", version,
		"base_rpc", cfg.BaseRPC,
		"rollup_rpc", cfg.RollupRPC)
	if *demoGame != 0 {
		if err := rt.demoRound(ctx, *demoGame); err != nil {
			logger.Error("demo round failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := rt.run(ctx); err != nil {
		logger.Error("roulette-daemon failed", "error", err)
		os.Exit(1)
	}
	logger.Info("roulette-daemon stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func build(cfg config.Config, logger *slog.Logger) (*runtime, error) {
	store, err := securestore.Open(filepath.Join(cfg.DataDir, "session.store"), cfg.StorePassphrase)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	mnemonic := cfg.Mnemonic
	if mnemonic == "" {
		mnemonic, err = signer.GenerateMnemonic()
		if err != nil {
			return nil, fmt.Errorf("generate mnemonic: %w", err)
		}
		logger.Warn("no mnemonic configured, generated an ephemeral signer")
	}

	endpoints := cfg.Endpoints()
	base := ledger.NewRPCClient(endpoints.Base,
		ledger.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		ledger.WithLogger(logger.With("endpoint", "base")))
	rollup := ledger.NewRPCClient(endpoints.Rollup,
		ledger.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		ledger.WithLogger(logger.With("endpoint", "rollup")))

	local, err := signer.NewLocalSigner(mnemonic, base)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}

	wallet := walletsession.New(local, store,
		signer.Identity{Name: "Magic Roulette", URI: "https://magicroulette.app"},
		walletsession.WithTTL(cfg.SessionTTL),
		walletsession.WithLogger(logger))
	games := gamesession.New(store,
		gamesession.WithTTL(cfg.GameSessionTTL),
		gamesession.WithLogger(logger))
	wallet.OnDisconnect(func() {
		if err := games.Clear(); err != nil {
			logger.Warn("failed to clear game session", "error", err)
		}
	})

	control := delegation.New(base, rollup, wallet, games,
		delegation.WithValidator(cfg.ValidatorKey()),
		delegation.WithLogger(logger))
	tokens := token.NewService(
		token.NewLightBackend(rollup, wallet),
		token.NewStandardBackend(base, wallet),
		token.WithPreferCompressed(cfg.UsesCompressed()),
		token.WithLogger(logger))
	composer := txcompose.New(rollup, wallet, txcompose.WithLogger(logger))

	if restored, err := wallet.RestoreSession(); err != nil {
		logger.Warn("session restore failed", "error", err)
	} else if restored {
		logger.Info("previous wallet session restored", "address", wallet.Address())
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		wallet:   wallet,
		games:    games,
		control:  control,
		tokens:   tokens,
		composer: composer,
		started:  time.Now(),
	}, nil
}

func (rt *runtime) run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", rt.handleHealth)

	srv := &http.Server{
		Addr:              rt.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	rt.logger.Info("metrics listening", "addr", rt.cfg.MetricsAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// demoRound plays one delegated round: connect, pre-authorize, delegate,
// shoot until the game ends or the action budget runs out, then settle.
func (rt *runtime) demoRound(ctx context.Context, gameID uint64) error {
	if err := rt.wallet.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := rt.wallet.Disconnect(context.Background()); err != nil {
			rt.logger.Warn("disconnect failed", "error", err)
		}
	}()

	session, err := rt.games.PreAuthorize(gameID, rt.cfg.MaxActions)
	if err != nil {
		return fmt.Errorf("pre-authorize: %w", err)
	}
	rt.logger.Info("round authorized", "game_id", gameID, "actions", session.MaxShots)

	if err := rt.control.Delegate(ctx, gameID); err != nil {
		return fmt.Errorf("delegate: %w", err)
	}

	for {
		result, err := rt.control.ExecuteAction(ctx, gameID)
		if err != nil {
			return fmt.Errorf("shot: %w", err)
		}
		rt.logger.Info("shot result",
			"signature", result.Signature,
			"bullet_hit", result.BulletHit,
			"game_over", result.GameOver,
			"remaining", result.Remaining,
			"latency_ms", result.Latency.Milliseconds())
		if result.GameOver || result.Remaining == 0 {
			break
		}
	}

	if err := rt.control.Undelegate(ctx, gameID); err != nil {
		return fmt.Errorf("undelegate: %w", err)
	}
	return nil
}

func (rt *runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"state":         rt.wallet.State().String(),
		"uptimeSeconds": int(time.Since(rt.started).Seconds()),
	}
	if session, ok := rt.games.Active(); ok {
		status["gameId"] = session.GameID
		status["actionsRemaining"] = session.Remaining()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		rt.logger.Warn("healthz encode failed", "error", err)
	}
}
