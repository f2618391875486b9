package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/araucarialabs/presenca/external/config"
	"github.com/araucarialabs/presenca/external/discord"
	opsimpl "github.com/araucarialabs/presenca/external/ops"
	storeimpl "github.com/araucarialabs/presenca/external/store"
	webhookimpl "github.com/araucarialabs/presenca/external/webhook"
	"github.com/araucarialabs/presenca/internal/bot"
	"github.com/araucarialabs/presenca/internal/config"
	discordpkg "github.com/araucarialabs/presenca/internal/discord"
	"github.com/araucarialabs/presenca/internal/event"
	"github.com/samber/do/v2"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	storeimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	opsimpl.RegisterDI(injector)
	bot.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*bot.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve bot manager", "error", err)
		os.Exit(1)
	}
	scheduler, err := do.Invoke[*event.Scheduler](injector)
	if err != nil {
		slog.Error("failed to resolve event scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	// Recovery runs before any handler is registered so the rebuilt
	// timers and repaired participations never race live gateway events.
	if report, err := event.NewRecovery(scheduler).Run(context.Background()); err != nil {
		slog.Error("event recovery failed", "error", err)
		os.Exit(1)
	} else {
		slog.Info("startup: event recovery finished", "resumed", len(report.Resumed), "finalized", len(report.Finalized), "failures", len(report.Failures))
	}

	if err := dc.UpsertSlashCommands(cfg.DiscordGuildID, bot.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}

	dc.RegisterMembershipChangeHandler(manager.HandleMembershipChange)
	dc.RegisterSlashCommandHandler(manager.HandleSlashCommand)
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID)
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.OpsListenAddr != "" {
		opsServer, err := do.Invoke[*opsimpl.Server](injector)
		if err != nil {
			slog.Error("failed to resolve ops server", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := opsServer.Run(runCtx); err != nil {
				slog.Error("ops server failed", "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
}
