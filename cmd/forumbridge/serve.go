package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/forumbridge/internal/adapter/driven/github"
	"github.com/ericfisherdev/forumbridge/internal/adapter/driving/discord"
	httphandler "github.com/ericfisherdev/forumbridge/internal/adapter/driving/http"
	"github.com/ericfisherdev/forumbridge/internal/application"
	"github.com/ericfisherdev/forumbridge/internal/config"
	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and handle bug report commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded",
		"github_repo", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo,
		"github_app_id", cfg.GitHub.AppID,
		"github_installation_id", cfg.GitHub.InstallationID,
		"github_app_key", logging.MaskSensitive(cfg.GitHub.AppKey),
		"discord_token", logging.MaskSensitive(cfg.Discord.Token),
		"discord_guild_id", cfg.Discord.GuildID,
		"discord_channel_id", cfg.Discord.ChannelID,
		"reporter_roles", len(cfg.Discord.ReporterRoleIDs),
		"storage", cfg.Storage,
		"listen_addr", cfg.ListenAddr,
	)

	// 1. GitHub App identity and the first installation token.
	key, err := github.ParsePrivateKey(cfg.GitHub.AppKey)
	if err != nil {
		return fmt.Errorf("%w: %w", application.ErrAuthFailure, err)
	}

	clk := clock.New()
	authenticator, err := github.NewAppAuthenticator(model.SigningIdentity{
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.InstallationID,
		PrivateKey:     key,
	}, cfg.GitHub.APIURL, clk)
	if err != nil {
		return fmt.Errorf("create github app authenticator: %w", err)
	}

	creds := application.NewCredentialManager(authenticator, clk, logger.With("component", "credentials"))
	defer creds.Close()

	if err := creds.Initialize(ctx); err != nil {
		return err
	}

	// 2. Mapping store.
	backend, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.close(); err != nil {
			logger.Error("error closing mapping storage", "error", err)
		}
	}()

	mappings := application.NewMappingStore(backend.store, logger.With("component", "mappings"))
	if err := mappings.Load(ctx); err != nil {
		return err
	}
	logger.Info("mappings loaded", "entries", mappings.Len(), "location", backend.location)

	// 3. Adapters and the engine.
	tracker, err := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Owner, cfg.GitHub.Repo)
	if err != nil {
		return fmt.Errorf("create github client: %w", err)
	}

	gateway, err := discord.NewGateway(cfg.Discord.Token, cfg.Discord.GuildID, logger.With("component", "discord"))
	if err != nil {
		return err
	}

	engine := application.NewIssueSyncEngine(application.SyncConfig{
		TrackedChannelID: cfg.Discord.ChannelID,
		AllowedRoleIDs:   cfg.Discord.ReporterRoleIDs,
	}, creds, tracker, mappings, gateway, logger.With("component", "sync"))

	if cfg.RegisterCommands {
		if err := gateway.RegisterCommands(ctx); err != nil {
			return err
		}
	}

	// 4. Run the gateway and the ops API until shutdown.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gateway.Run(gctx, engine)
	})

	if cfg.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httphandler.NewServeMux(httphandler.NewHandler(creds, mappings, clk, logger), logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		g.Go(func() error {
			logger.Info("http server starting", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			return nil
		})
	}

	logger.Info("forumbridge started")
	runErr := g.Wait()
	logger.Info("shutting down")

	// 5. Let in-flight commands finish so created issues are recorded.
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := engine.Wait(drainCtx); err != nil {
		logger.Warn("in-flight commands still running at shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}
