package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"plantops-backend/config"
	"plantops-backend/internal/approval"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/db"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if _, err := db.Init(&cfg.Database); err != nil {
				return err
			}
			logger.Println("migrations applied")
			return nil
		},
	}
}

func newSweepCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue approval requests once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gormDB, err := db.Open(&cfg.Database)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, gormDB)
			if err != nil {
				return err
			}

			// Deliver the expiry notifications before exiting.
			ctx, cancel := context.WithCancel(cmd.Context())
			a.workers.Start(ctx)
			n, err := approval.NewSweeper(a.approvals, cfg.Approval.SweepInterval).SweepOnce(ctx)
			for i := 0; i < 50 && len(a.workers.Jobs()) > 0; i++ {
				time.Sleep(100 * time.Millisecond)
			}
			cancel()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "expired %d request(s)\n", n)
			return nil
		},
	}
}

func newTokenCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		actor auth.Actor
		ttl   time.Duration
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret (or JWT_SECRET) must be set")
			}
			tok, err := auth.IssueToken([]byte(cfg.Auth.JWTSecret), actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, tok)
			return nil
		},
	}

	c.Flags().StringVar(&actor.ID, "sub", "", "user id")
	c.Flags().StringVar(&actor.Username, "username", "", "username")
	c.Flags().StringVar(&actor.DisplayName, "name", "", "display name")
	c.Flags().StringVar(&actor.Role, "role", "", "role")
	c.Flags().StringSliceVar(&actor.Permissions, "permission", nil, "permission to grant (repeatable)")
	c.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("sub")
	return c
}

func newVAPIDKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "vapid_public_key: %q\nvapid_private_key: %q\n", pub, priv)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("plantopsd %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
