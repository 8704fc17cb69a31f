package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DipSentinel/internal/collector"
	"DipSentinel/internal/model"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/scheduler"
	"DipSentinel/internal/strategy"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		app     *App
	)
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}

	root := &cobra.Command{
		Use:           "dipsentinel",
		Short:         "Statistical dip and spike alerts for a single ticker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfgPath)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "path to the YAML config file")

	getApp := func() *App { return app }
	root.AddCommand(newSessionCmd(getApp), newCheckCmd(getApp), newWatchCmd(getApp))
	return root
}

// request builds a live request, or a forced one when --at is set.
func request(app *App, ticker, at string) (collector.Request, error) {
	if at == "" {
		return collector.Request{Ticker: ticker, Mode: model.TriggerLive}, nil
	}
	t, err := parseAt(at, app.Clock.Location)
	if err != nil {
		return collector.Request{}, err
	}
	return collector.Request{Ticker: ticker, Mode: model.TriggerForced, At: t}, nil
}

func newSessionCmd(app func() *App) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "session <ticker>",
		Short: "Show whether the ticker's market session is open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := request(app(), args[0], at)
			if err != nil {
				return err
			}
			st := app().Clock.Evaluate(req.Ticker, req.Mode, req.At)
			fmt.Fprint(cmd.OutOrStdout(), notifier.FormatSessionStatus(req.Ticker, st))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at a forced instant, \"2006-01-02 15:04\" in the reference timezone")
	return cmd
}

func newCheckCmd(app func() *App) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "check <ticker>",
		Short: "Compute the buy and sell bands and classify the live price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runCheck(ctx, app(), cmd.OutOrStdout(), args[0], at)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at a forced instant, \"2006-01-02 15:04\" in the reference timezone")
	return cmd
}

// runCheck evaluates one ticker and prints the report. A closed session is not an error.
func runCheck(ctx context.Context, a *App, out io.Writer, ticker, at string) error {
	defer a.close()
	req, err := request(a, ticker, at)
	if err != nil {
		return err
	}
	eval, err := a.collector(ctx).Evaluate(ctx, req)
	if err != nil {
		fmt.Fprintln(out, notifier.FormatError(req.Ticker, err))
		if errors.Is(err, strategy.ErrMarketClosed) {
			return nil
		}
		return err
	}
	fmt.Fprint(out, notifier.FormatBandReport(eval))
	return nil
}

func newWatchCmd(app func() *App) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the configured ticker on a schedule and send alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), app(), runOnStart || os.Getenv("RUN_ON_START") == "true")
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "evaluate once immediately after starting")
	return cmd
}

func runWatch(parent context.Context, a *App, runOnStart bool) error {
	defer a.close()
	log := a.Logger
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	col := a.collector(ctx)
	sender := a.sender()
	sched := scheduler.NewScheduler(ctx, col, sender, a.Config.Ticker, a.Config.Watch.NotifyOnChange, log)
	if err := sched.Register(a.Config.Watch.Cron); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched.Start()
		if runOnStart {
			log.Info().Msg("run on start enabled, evaluating now")
			sched.RunNow()
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if tn, ok := sender.(*notifier.TelegramNotifier); ok {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
	}

	if addr := a.Config.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().
		Str("ticker", a.Config.Ticker).
		Str("cron", a.Config.Watch.Cron).
		Str("timezone", a.Clock.Location.String()).
		Msg("DipSentinel is running, press Ctrl+C to stop")

	err := g.Wait()
	log.Info().Msg("DipSentinel stopped")
	return err
}
