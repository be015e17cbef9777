package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CVDMonitor/internal/notifier"
	"CVDMonitor/internal/recorder"
	"CVDMonitor/internal/scheduler"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled monitor",
	Long: `Run the analysis on the configured cron schedule, push new divergences and
answer chat commands over Telegram, and expose Prometheus metrics.

Set RUN_ON_START=true to run one analysis immediately.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger
	cfg := a.cfg
	log.Info("cvdmonitor starting", zap.String("source", a.collector.Source.Name()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	var tn *notifier.TelegramNotifier
	var sender scheduler.Sender
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = tn
	} else {
		log.Warn("telegram not configured, notifications disabled")
	}

	sched := scheduler.NewScheduler(ctx, a.collector, a.monitor, sender, rec, a.metrics, scheduler.Options{
		Hours:   cfg.Analysis.Hours,
		Symbols: cfg.Analysis.Symbols,
		TopN:    cfg.Ranking.TopN,
	}, log)
	if err := sched.Register(cfg.Schedule.AnalysisCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, running analysis now")
		sched.Trigger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("metrics listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
		log.Info("telegram polling started")
	}

	log.Info("cvdmonitor is running, press Ctrl+C to stop")
	err = g.Wait()
	log.Info("cvdmonitor stopped")
	return err
}
