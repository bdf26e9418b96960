package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plantops-backend/config"
	"plantops-backend/internal/api"
	"plantops-backend/internal/approval"
	"plantops-backend/internal/db"
)

func newServerCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API, the notification workers and the expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret (or JWT_SECRET) must be set")
			}

			gormDB, err := db.Init(&cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			logger.Println("database initialized successfully")

			a, err := newApp(cfg, gormDB)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.workers.Start(ctx)
			sweeper := approval.NewSweeper(a.approvals, cfg.Approval.SweepInterval)

			handler := api.NewHandler(a.store, a.bookings, a.approvals, a.authz, a.webpush)
			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
				Handler: api.NewRouter(cfg.Server, []byte(cfg.Auth.JWTSecret), handler),
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				sweeper.Run(gctx)
				return nil
			})
			g.Go(func() error {
				logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP server ListenAndServe: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Println("Shutdown signal received, stopping services...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			logger.Println("Server gracefully stopped")
			return nil
		},
	}
}
