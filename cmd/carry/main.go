package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregtusar/cashcarry/api"
	"github.com/gregtusar/cashcarry/internal/config"
	"github.com/gregtusar/cashcarry/internal/logging"
	"github.com/gregtusar/cashcarry/internal/metrics"
	"github.com/gregtusar/cashcarry/pkg/binance"
	"github.com/gregtusar/cashcarry/pkg/models"
	"github.com/gregtusar/cashcarry/pkg/trader"
)

var cfgFile string

type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	trader  *trader.CarryTrader
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "carry",
		Short: "Cash-and-carry arbitrage evaluator for Binance",
		Long: `Compares a Binance spot price against a dated USD-M futures contract,
prices the future at its cost-of-carry fair value using the margin borrow rate,
and reports whether a cash-and-carry or reverse cash-and-carry trade clears fees
and the required risk premium.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(evaluateCmd(), contractsCmd(), scanCmd(), serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Logging)
	m := metrics.New()

	gateway := binance.NewGateway(cfg.GatewayConfig(),
		binance.WithLogger(logger),
		binance.WithObserver(m.ObserveRequest),
	)

	ct := trader.NewCarryTrader(gateway, cfg.TradingParams(), logger)
	ct.SetRecorder(m)

	return &app{cfg: cfg, logger: logger, metrics: m, trader: ct}, nil
}

func evaluateCmd() *cobra.Command {
	var spotSymbol, futureSymbol string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one spot/future pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			p := a.trader.Params()
			if spotSymbol == "" {
				spotSymbol = p.SpotSymbol
			}
			if futureSymbol == "" {
				futureSymbol = p.FutureSymbol
			}

			result, err := a.trader.EvaluatePair(cmd.Context(), spotSymbol, futureSymbol)
			if err != nil {
				return err
			}

			return printJSON(cmd, models.NewPairEvaluation(spotSymbol, futureSymbol, result))
		},
	}

	cmd.Flags().StringVar(&spotSymbol, "spot", "", "spot symbol (default from config)")
	cmd.Flags().StringVar(&futureSymbol, "future", "", "futures symbol (default from config)")
	return cmd
}

func contractsCmd() *cobra.Command {
	var (
		base       string
		withPrices bool
	)

	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List dated futures contracts eligible for evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			contracts, serverTime, err := a.trader.ListContracts(cmd.Context(), base, withPrices)
			if err != nil {
				return err
			}

			return printJSON(cmd, map[string]interface{}{
				"server_time": serverTime,
				"contracts":   contracts,
			})
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "underlying base asset (default from config)")
	cmd.Flags().BoolVar(&withPrices, "prices", false, "include the latest futures price per contract")
	return cmd
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Evaluate every eligible contract against the configured spot symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			results, err := a.trader.Scan(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve evaluations over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			apiServer := api.NewServer(a.trader, a.logger, strconv.Itoa(a.cfg.Server.Port),
				api.WithJWTSecret(a.cfg.Server.JWTSecret),
				api.WithGatherer(a.metrics.Registry()),
			)

			errCh := make(chan error, 1)
			go func() {
				errCh <- apiServer.Start()
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			a.logger.Info("Carry evaluator is running. Press Ctrl+C to stop.")

			select {
			case err := <-errCh:
				return err
			case <-sigChan:
				a.logger.Info("Received shutdown signal")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}

			a.logger.Info("Carry evaluator stopped")
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
