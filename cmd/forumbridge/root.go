package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/forumbridge/internal/adapter/driven/jsonfile"
	"github.com/ericfisherdev/forumbridge/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/forumbridge/internal/config"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/forumbridge/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "forumbridge",
		Short: "Forumbridge turns Discord forum threads into GitHub issues",
		Long: `Forumbridge is a Discord bot that lets reporters file a GitHub issue from a
forum thread, keep it in sync with the thread's opening message and append
thread replies as issue comments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "",
		"config file (default: config.{json,yaml,yml,toml} in $FORUMBRIDGE_DATA_DIR)")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newRegisterCommandsCmd(flags))
	root.AddCommand(newMappingsCmd(flags))

	return root
}

// loadConfig reads configuration and installs the process logger. The logger
// writes to the command's error stream so data output stays clean.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat), nil
}

// snapshotBackend is the configured mapping snapshot store plus its cleanup.
type snapshotBackend struct {
	store    driven.MappingSnapshotStore
	location string
	sqlite   *sqlite.MappingRepo // nil for the json backend
	close    func() error
}

func openSnapshotStore(ctx context.Context, cfg *config.Config) (*snapshotBackend, error) {
	if cfg.Storage == config.StorageJSON {
		return &snapshotBackend{
			store:    jsonfile.NewSnapshotFile(cfg.DataFile),
			location: cfg.DataFile,
			close:    func() error { return nil },
		}, nil
	}

	db, err := sqlite.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlite.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := sqlite.NewMappingRepo(db)
	return &snapshotBackend{
		store:    repo,
		location: db.Path(),
		sqlite:   repo,
		close:    db.Close,
	}, nil
}
