package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lmsledger/internal/actor"
	"lmsledger/internal/auth"
	"lmsledger/internal/config"
	"lmsledger/internal/db"
	"lmsledger/internal/logger"
	"lmsledger/internal/server"
	"lmsledger/internal/sweeper"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the event worker and the expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := db.RunMigrations(a.db, a.cfg.MigrationsPath); err != nil {
					return err
				}
				logger.Info("Migrations completed")
			}

			if a.queue != nil {
				go a.queue.Start(ctx)
			}
			go sweeper.New(a.payments, a.redis, a.cfg.SweepInterval, a.cfg.PendingTTL).Start(ctx)

			srv := server.New(server.Deps{
				Config:     a.cfg,
				DB:         a.db,
				Redis:      a.redis,
				Payments:   a.payments,
				Statements: a.statements,
				Wallets:    a.wallets,
			})

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- srv.Start()
			}()

			select {
			case <-ctx.Done():
				logger.Info("Shutting down gracefully...")
			case err := <-serverErr:
				if err != nil {
					logger.Error("Server error", "error", err)
				}
				cancel()
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during server shutdown", "error", err)
			}

			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			database, err := db.Connect(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
				return err
			}
			logger.Info("Migrations completed", "path", cfg.MigrationsPath)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Cancel stale pending payments once and print pending stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if ttl == 0 {
				ttl = a.cfg.PendingTTL
			}

			res, err := sweeper.New(a.payments, a.redis, a.cfg.SweepInterval, ttl).SweepOnce(ctx)
			if err != nil {
				return err
			}
			stats, err := a.payments.PendingStats(ctx)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			return out.Encode(map[string]interface{}{
				"sweep":   res,
				"pending": stats,
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "staleness threshold (defaults to PENDING_TTL)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		profile string
		center  string
		role    string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access and refresh token pair for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a := actor.Actor{Role: role}
			if a.ProfileID, err = uuid.Parse(profile); err != nil {
				return fmt.Errorf("--profile: %w", err)
			}
			if center != "" {
				id, err := uuid.Parse(center)
				if err != nil {
					return fmt.Errorf("--center: %w", err)
				}
				a.CenterID = &id
			}

			access, refresh, err := auth.GenerateTokens(a, cfg.JWTSecret, cfg.JWTSecret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access_token=%s\nrefresh_token=%s\n", access, refresh)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "profile id (required)")
	cmd.Flags().StringVar(&center, "center", "", "center id")
	cmd.Flags().StringVar(&role, "role", actor.RoleStaff, "actor role")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
