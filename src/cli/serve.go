package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankflow-server/src/api"
	"bankflow-server/src/handlers"
	"bankflow-server/src/scheduler"
	"bankflow-server/src/seed"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the download scheduler when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(app *App) error {
				return runServe(ctx, app)
			})
		},
	}
}

func runServe(ctx context.Context, app *App) error {
	cfg, log := app.Config, app.Log

	if _, err := seed.Apply(ctx, app.Rules, cfg.RulesSeedFile, log); err != nil {
		return err
	}
	app.RuleSource.Invalidate()

	if cfg.SchedulerEnabled {
		s, err := scheduler.New(app.Pipeline, cfg.SchedulerAccountIDs, app.RemoteAuth(), cfg.SchedulerCron, cfg.SchedulerDaysBack, log)
		if err != nil {
			return err
		}
		go s.Start(ctx)
	}

	router := api.NewRouter(api.Dependencies{
		Log:        log,
		Ingester:   app.Pipeline,
		Receiver:   app.Pipeline,
		Searcher:   app.Search,
		Overrider:  app.Override,
		Rules:      app.Rules,
		RuleCache:  app.RuleSource,
		Reclassify: app.Reclassifier,
		Cache:      app.Cache,
		RemoteAuth: app.RemoteAuth(),
		AccountID:  cfg.DefaultAccountID,
		Token: handlers.TokenConfig{
			ClientID:         cfg.APIClientID,
			ClientSecretHash: cfg.APIClientSecretHash,
			JWTSecret:        []byte(cfg.JWTSecret),
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
		ReadOnly:    cfg.ReadOnly,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("read_only", cfg.ReadOnly).Msg("API server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
