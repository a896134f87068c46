package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the benchmark API server with a scheduled daily batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newServeMux(ctx, env)

		// Scheduled batch pass, typically nightly.
		if cfg.Batch.Schedule != "" {
			scheduler := cron.New()
			_, err := scheduler.AddFunc(cfg.Batch.Schedule, func() {
				result, err := env.Orchestrator.Run(ctx)
				if err != nil {
					zap.L().Error("scheduled batch failed", zap.Error(err))
					return
				}
				zap.L().Info("scheduled batch complete",
					zap.Int("processed", result.UsersProcessed),
					zap.Int("alerts", result.AlertsCreated),
				)
			})
			if err != nil {
				return eris.Wrapf(err, "serve: invalid batch schedule %q", cfg.Batch.Schedule)
			}
			scheduler.Start()
			defer scheduler.Stop()
			zap.L().Info("batch schedule armed", zap.String("schedule", cfg.Batch.Schedule))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newServeMux builds the HTTP routes. Authentication happens upstream; the
// user id in the path is trusted. ctx outlives individual requests and
// bounds the async batch trigger.
func newServeMux(ctx context.Context, env *scoringEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/users/{id}/benchmark", func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("id")
		if userID == "" {
			http.Error(w, `{"error":"user id is required"}`, http.StatusBadRequest)
			return
		}

		result, err := env.Cohort.Benchmark(r.Context(), userID)
		if err != nil {
			zap.L().Warn("benchmark request failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			http.Error(w, `{"error":"no score history for user"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	})

	mux.HandleFunc("POST /api/batch/run", func(w http.ResponseWriter, r *http.Request) {
		// Run asynchronously; the pass can take minutes on large tenants.
		go func() {
			result, err := env.Orchestrator.Run(ctx)
			if err != nil {
				zap.L().Error("triggered batch failed", zap.Error(err))
				return
			}
			zap.L().Info("triggered batch complete",
				zap.Int("processed", result.UsersProcessed),
				zap.Int("alerts", result.AlertsCreated),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	})

	return mux
}
