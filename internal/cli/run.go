package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"delta-trader/internal/engine"
	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/exchange"
	"delta-trader/internal/executor"
	"delta-trader/internal/journal"
	"delta-trader/internal/logging"
	"delta-trader/internal/metrics"
	"delta-trader/internal/models"
	"delta-trader/internal/notify"
	"delta-trader/internal/ratelimit"
	"delta-trader/internal/sizing"
	"delta-trader/internal/strategy"
)

func addRunCommand(rootCmd *cobra.Command, app *App) {
	var metricsAddr string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop",
		Long: `Run starts the polling trading loop for the configured symbol and
strategy. The loop replays history to seed strategy state, reconciles the
local position against the exchange, then evaluates one closed candle per
interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, app, metricsAddr)
		},
	}

	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}

func runLoop(ctx context.Context, app *App, metricsAddr string) error {
	cfg := app.Config
	trading := cfg.Trading
	if trading.Symbol == "" {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "trading.symbol is required")
	}
	if trading.Strategy == "" {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "trading.strategy is required")
	}

	logger := logging.WithStrategy(logging.WithSymbol(app.Logger, trading.Symbol), trading.Strategy)
	paper := cfg.IsPaperMode()

	client := exchange.NewClient(cfg.Credentials.BaseURL, cfg.Credentials.APIKey, cfg.Credentials.APISecret)
	limiter := ratelimit.New(cfg.Limiter.MaxRequests, cfg.Limiter.Window)
	gateway := exchange.NewGateway(client, limiter, exchange.GatewayConfig{
		MaxRetries:  cfg.Retry.MaxRetries,
		BackoffBase: cfg.Retry.BackoffBase,
		BackoffCap:  cfg.Retry.BackoffCap,
	}, logger)

	product, err := gateway.Product(ctx, trading.Symbol)
	if err != nil {
		return apperrors.Wrap(err, "resolving product")
	}

	asset, explicit := cfg.Asset(trading.Symbol)
	if !explicit {
		logger.Warn().Msg("No asset configuration entry, trading disabled by default")
	}
	if !asset.Enabled && !paper {
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "asset %s is not enabled for live trading", trading.Symbol)
	}
	contractValue := asset.ContractValue
	if contractValue <= 0 {
		contractValue = product.ContractValue
	}

	rules, err := strategy.New(trading.Strategy, strategy.Config{
		Mode:      strategy.ModeBoth,
		AllowFlip: true,
	})
	if err != nil {
		return err
	}
	machine := strategy.NewMachine(rules, asset.EnablePartialTP, asset.PartialExitPct)

	var jnl executor.Journal
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("Journal unavailable, trades will not be recorded")
		} else {
			defer j.Close()
			jnl = j
		}
	}

	webhookURL := ""
	if cfg.Notifications.Enabled && cfg.Notifications.Webhook.Enabled {
		webhookURL = cfg.Notifications.Webhook.URL
	}
	notifier := notify.New(webhookURL, logger)
	defer notifier.Close()

	met := metrics.New()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	exec := executor.New(gateway, machine, executor.Config{
		Symbol:        trading.Symbol,
		ProductID:     product.ID,
		TargetMargin:  asset.TargetMargin,
		Leverage:      float64(asset.Leverage),
		ContractValue: contractValue,
		Paper:         paper,
	}, jnl, notifier, logger)

	// Sanity-check sizing up front so a misconfigured asset fails at
	// startup, not on the first entry signal.
	if price, err := gateway.Ticker(ctx, trading.Symbol); err == nil {
		if _, serr := sizing.Contracts(sizing.Params{
			TargetMargin:  asset.TargetMargin,
			Leverage:      float64(asset.Leverage),
			Price:         price,
			ContractValue: contractValue,
			EvenContracts: asset.EnablePartialTP,
		}); serr != nil {
			return serr
		}
	}

	timeframe := models.Timeframe(trading.Timeframe)
	eng := engine.New(gateway, machine, exec, engine.Config{
		Symbol:      trading.Symbol,
		Timeframe:   timeframe,
		HeikinAshi:  trading.CandleType == "heikin-ashi",
		HistoryDays: trading.HistoryDays,
	}, met, logger)

	var rec *executor.Reconciler
	if !paper {
		rec = executor.NewReconciler(gateway, machine, product.ID, trading.Symbol, met, logger)
	}

	interval := trading.PollInterval
	if interval <= 0 {
		interval = timeframe.Duration()
	}

	runner := engine.NewRunner(eng, rec, notifier, gateway, met, engine.RunnerConfig{
		Interval: interval,
		Cooldown: trading.Cooldown,
		Paper:    paper,
	}, logger)

	logger.Info().
		Str("version", Version).
		Str("symbol", trading.Symbol).
		Str("strategy", trading.Strategy).
		Str("timeframe", string(timeframe)).
		Bool("paper", paper).
		Msg("Starting delta-trader")

	return runner.Run(ctx)
}
