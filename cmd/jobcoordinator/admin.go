package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"jobcoordinator/internal/config"
	"jobcoordinator/internal/lockstore"
	applog "jobcoordinator/internal/log"
)

// newAdminCommand returns the `admin` command group, which talks to the
// same lockstore.Store the server uses rather than going through HTTP —
// useful when the HTTP front door itself is unhealthy.
func newAdminCommand() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Inspect and repair coordinator state directly via the lock store.",
	}

	errorsCmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect or purge recorded job failures.",
	}
	errorsCmd.AddCommand(newErrorsListCommand())
	errorsCmd.AddCommand(newErrorsPurgeCommand())

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect currently locked jobs.",
	}
	jobsCmd.AddCommand(newJobsListCommand())

	admin.AddCommand(errorsCmd, jobsCmd)
	return admin
}

func newErrorsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every job path with a live error flag.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store lockstore.Store) error {
				errs, err := store.Errors(ctx)
				if err != nil {
					return err
				}
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"errors": errs})
			})
		},
	}
}

func newErrorsPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Clear every recorded error flag.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store lockstore.Store) error {
				return store.ClearErrors(ctx)
			})
		},
	}
}

func newJobsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every job path currently holding a lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store lockstore.Store) error {
				jobs, err := store.Jobs(ctx)
				if err != nil {
					return err
				}
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"jobs": jobs})
			})
		},
	}
}

// withStore loads configuration, dials the Redis-backed store, runs fn,
// and releases the connection on every exit path.
func withStore(fn func(ctx context.Context, store lockstore.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := applog.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store := lockstore.NewRedisStore(lockstore.RedisConfig{
		Host:        cfg.RedisHost,
		Port:        cfg.RedisPort,
		DB:          cfg.RedisDB,
		JobPrefix:   cfg.RedisJobKeyPrefix,
		ErrorPrefix: cfg.RedisErrorKeyPrefix,
		ErrorExpiry: cfg.ErrorExpiry,
	}, logger)
	defer store.Close() //nolint:errcheck

	return fn(context.Background(), store)
}
