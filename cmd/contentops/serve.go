package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contentops/internal/domain"
	"contentops/internal/infra/logger"
	"contentops/internal/infra/middleware"
	"contentops/internal/usecase/notice"
	"contentops/internal/usecase/scheduling"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, alert checks and metrics endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	if n, err := a.orch.RecoverStale(ctx); err != nil {
		log.Warn("stale task recovery failed", "error", err)
	} else if n > 0 {
		log.Info("recovered stale tasks", "count", n)
	}

	unsubscribe := subscribeNotices(a)
	defer unsubscribe()

	pool := scheduling.NewPool(cfg.Orchestrator.Workers, cfg.Orchestrator.QueueSize, 0, a.metrics, logger.Component(log, "scheduling"))
	sched := scheduling.NewScheduler(pool, logger.Component(log, "scheduling"))
	if cfg.Scheduler.Enabled {
		if err := registerJobs(ctx, a, sched); err != nil {
			return err
		}
	}
	sched.Start(ctx)

	var srv *http.Server
	errc := make(chan error, 1)
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		httpLog := logger.Component(log, "http")
		mws := []func(http.Handler) http.Handler{middleware.RequestLog(httpLog), middleware.Recover(httpLog)}
		if cfg.Metrics.RequestsPerMin > 0 {
			mws = append(mws, middleware.RateLimit(ctx, cfg.Metrics.RequestsPerMin, cfg.Metrics.Burst, cfg.Metrics.TrustedProxies))
		}
		srv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           middleware.Chain(mux, mws...),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		log.Info("metrics endpoint listening", "addr", cfg.Metrics.Listen)
	}

	notice.SendDeployNotification(ctx, a.notifier, version, envFlag)
	log.Info("contentops serving", "version", version, "env", envFlag, "jobs", len(sched.Names()))

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errc:
	}

	log.Info("shutting down")
	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.Warn("metrics server shutdown", "error", serr)
		}
	}
	return err
}

// registerJobs adds the alert check, the daily report, configured agent
// tasks and, when enabled, the stored schedules.
func registerJobs(ctx context.Context, a *app, sched *scheduling.Scheduler) error {
	cfg := a.cfg.Scheduler
	if a.alerts != nil && cfg.AlertCheck != "" {
		if err := sched.Add("alert-check", cfg.AlertCheck, scheduling.AlertCheckJob(a.alerts)); err != nil {
			return err
		}
	}
	if cfg.DailyReport != "" {
		if err := sched.Add("daily-report", cfg.DailyReport, scheduling.DailyReportJob(a.orch, a.notifier)); err != nil {
			return err
		}
	}
	for _, t := range cfg.Tasks {
		if err := sched.AddAgentTask(a.orch, t); err != nil {
			return err
		}
	}
	if cfg.LoadDBSchedules {
		n, err := sched.LoadSchedules(ctx, a.store, a.orch)
		if err != nil {
			return err
		}
		a.log.Info("stored schedules loaded", "count", n)
	}
	return nil
}

// subscribeNotices posts task completions and failures to the sink.
func subscribeNotices(a *app) func() {
	decode := func(e domain.Event) domain.TaskEventPayload {
		var p domain.TaskEventPayload
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				a.log.Warn("task event payload unreadable", "type", string(e.Type), "error", err)
			}
		}
		return p
	}
	offDone := a.bus.Subscribe(domain.EventTaskCompleted, func(ctx context.Context, e domain.Event) {
		p := decode(e)
		notice.NotifyTaskCompleted(ctx, a.notifier, p.AgentName, e.TaskID, p.Duration)
	})
	offFailed := a.bus.Subscribe(domain.EventTaskFailed, func(ctx context.Context, e domain.Event) {
		p := decode(e)
		notice.SendErrorAlert(ctx, a.notifier, p.AgentName+" failed", p.Error, e.TaskID)
	})
	return func() {
		offDone()
		offFailed()
	}
}
