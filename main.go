package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskchat/internal/agent"
	"taskchat/internal/channel"
	"taskchat/internal/config"
	"taskchat/internal/eventbus"
	"taskchat/internal/llm"
	"taskchat/internal/security"
	"taskchat/internal/server"
	"taskchat/internal/store"
	"taskchat/internal/task"
	"taskchat/internal/tool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "taskchat:", err)
		os.Exit(1)
	}
}

func run() error {
	loader, err := config.NewLoader()
	if err != nil {
		return fmt.Errorf("config loader: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	if err := resolveSecrets(cfg, logger); err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no LLM API key configured (set llm.api_key in %s)", loader.FilePath())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dbPath = filepath.Join(home, ".taskchat", "taskchat.db")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer st.Close()

	tasks, err := task.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer tasks.Close()

	registry := tool.NewRegistry()
	tool.RegisterTaskTools(registry, tasks)

	provider, err := llm.Build(cfg.LLM, cfg.FallbackLLM, logger)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	logger.Info("provider ready",
		zap.String("provider", provider.Name()),
		zap.String("api_key", security.MaskKey(cfg.LLM.APIKey)))

	bus := eventbus.New()
	agent.ObserveBus(bus, logger)
	dispatcher := tool.NewDispatcher(registry, logger)
	orch := agent.NewOrchestrator(provider, registry, dispatcher, cfg.Agent, bus, logger)
	svc := agent.NewService(cfg.Agent, st, orch, bus, logger)

	chanMgr := channel.NewManager(logger)
	if tg := cfg.Channels.Telegram; tg != nil && tg.Token != "" {
		chanMgr.Register(channel.NewTelegramChannel(tg.Token, tg.ChatUsers, logger))
	}
	if cfg.Channels.Console {
		chanMgr.Register(channel.NewConsoleChannel(1))
	}
	if err := chanMgr.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	defer chanMgr.StopAll(context.Background())

	router := agent.NewRouter(svc, chanMgr, bus, logger)
	router.Start(ctx)

	auth := server.NewTokenAuthenticator(cfg.Server.AuthTokens)
	srv := server.New(cfg.Server, svc, auth, logger)
	return srv.Run(ctx)
}

// newLogger builds a production zap logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// resolveSecrets expands keyring references in the loaded config.
func resolveSecrets(cfg *config.Config, logger *zap.Logger) error {
	ks := security.NewKeyStore()

	key, err := ks.Resolve(cfg.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("resolve LLM API key: %w", err)
	}
	cfg.LLM.APIKey = key

	if cfg.FallbackLLM != nil {
		key, err := ks.Resolve(cfg.FallbackLLM.APIKey)
		if err != nil {
			return fmt.Errorf("resolve fallback API key: %w", err)
		}
		cfg.FallbackLLM.APIKey = key
	}

	if tg := cfg.Channels.Telegram; tg != nil {
		token, err := ks.Resolve(tg.Token)
		if err != nil {
			logger.Warn("telegram token unresolved, channel disabled", zap.Error(err))
			tg.Token = ""
		} else {
			tg.Token = token
		}
	}
	return nil
}
