package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"contrarian-trading-bot/config"
	"contrarian-trading-bot/internal/admission"
	"contrarian-trading-bot/internal/api"
	"contrarian-trading-bot/internal/auth"
	"contrarian-trading-bot/internal/cache"
	"contrarian-trading-bot/internal/engine"
	"contrarian-trading-bot/internal/enhancers"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/journal"
	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/metrics"
	"contrarian-trading-bot/internal/notification"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/secrets"
	"contrarian-trading-bot/internal/signal"

	"github.com/rs/zerolog/log"
)

func main() {
	generateConfig := flag.Bool("generate-config", false, "write a sample config.json and exit")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password and exit")
	dryRun := flag.Bool("dry-run", false, "force the mock broker and disable persistence")
	flag.Parse()

	if *generateConfig {
		if err := config.GenerateSampleConfig("config.sample.json"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote config.sample.json")
		return
	}

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		cfg.BrokerConfig.MockMode = true
		cfg.DatabaseConfig.Enabled = false
	}

	logging.Init(logging.Config{
		Level:   cfg.LoggingConfig.Level,
		Console: cfg.LoggingConfig.Console,
		Output:  cfg.LoggingConfig.Output,
	})
	logger := logging.Component("main")
	logger.Info().Bool("mock", cfg.BrokerConfig.MockMode).Bool("dry_run", *dryRun).
		Msg("starting contrarian trading bot")

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	m := metrics.New()

	// Secrets: broker credentials and notifier tokens, Vault-backed when
	// enabled
	vault, err := secrets.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("vault client failed")
	}
	if !vault.IsEnabled() {
		_ = vault.StoreBrokerCredentials(ctx, secrets.BrokerCredentials{
			BaseURL: cfg.BrokerConfig.BaseURL,
			APIKey:  cfg.BrokerConfig.APIKey,
		})
		_ = vault.StoreNotifierTokens(ctx, secrets.NotifierTokens{
			TelegramBotToken:  cfg.NotificationConfig.Telegram.BotToken,
			TelegramChatID:    cfg.NotificationConfig.Telegram.ChatID,
			DiscordWebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
		})
	}

	notifier := buildNotifier(ctx, cfg, vault)

	// Broker: simulated in mock mode, otherwise the REST gateway
	var broker market.Broker
	if cfg.BrokerConfig.MockMode {
		broker = market.NewMockBroker()
		logger.Info().Msg("using mock broker")
	} else {
		creds, err := vault.GetBrokerCredentials(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("broker credentials unavailable")
		}
		broker = market.NewBridgeClient(creds.BaseURL, creds.APIKey)
		logger.Info().Str("gateway", creds.BaseURL).Msg("using broker gateway")
	}

	// Signal journal, optional
	var repo *journal.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := journal.NewDB(cfg.DatabaseConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
		repo = journal.NewRepository(db)
		logger.Info().Str("database", cfg.DatabaseConfig.Database).Msg("signal journal enabled")
	}

	correlationCache := cache.NewCorrelationCache(cfg.RedisConfig, cache.DefaultMatrixTTL)

	scorer := signal.NewScorer(signal.ScorerConfig{
		MinConfluences:    cfg.ScorerConfig.MinConfluences,
		MinSignalStrength: cfg.ScorerConfig.MinSignalStrength,
	})
	calculator := risk.NewCalculator(cfg.RiskConfig)
	controller := admission.NewController(cfg.AdmissionConfig, cfg.RiskConfig.TradeWindows)

	// The correlation enhancer needs the engine's open symbols; the engine
	// needs the chain. The closure breaks the cycle.
	var eng *engine.Engine
	openSymbols := func() []string {
		if eng == nil {
			return nil
		}
		return eng.OpenSymbols()
	}

	var mlEnhancer *enhancers.MLEnhancer
	chain := buildChain(cfg, broker, correlationCache, openSymbols, &mlEnhancer)

	eng = engine.New(engine.Config{
		Symbols:        cfg.EngineConfig.Symbols,
		CycleInterval:  cfg.CycleInterval(),
		PairPause:      cfg.PairPause(),
		StatusInterval: cfg.StatusInterval(),
	}, engine.Deps{
		Broker:     broker,
		Scorer:     scorer,
		Chain:      chain,
		Controller: controller,
		Calculator: calculator,
		Notifier:   notifier,
		Bus:        bus,
		Metrics:    m,
		Journal:    repo,
		ML:         mlEnhancer,
		Positions:  cfg.PositionsConfig.ToMonitorConfig(),
	})

	// Status API
	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.ServerConfig{
			Host:             cfg.ServerConfig.Host,
			Port:             cfg.ServerConfig.Port,
			ProductionMode:   cfg.ServerConfig.ProductionMode,
			AuthEnabled:      cfg.AuthConfig.Enabled,
			OperatorUsername: cfg.AuthConfig.OperatorUsername,
			OperatorPassHash: cfg.AuthConfig.OperatorPassHash,
			JWTSecret:        cfg.AuthConfig.JWTSecret,
			TokenTTL:         cfg.TokenTTL(),
		}, eng, repo, bus)

		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("api server stopped")
			}
		}()
	}

	// The trading loop blocks until the context is cancelled
	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("trading loop exited with error")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("api shutdown failed")
		}
	}

	log.Info().Msg("shutdown complete")
}

func buildNotifier(ctx context.Context, cfg *config.Config, vault *secrets.Client) *notification.Manager {
	manager := notification.NewManager()
	if !cfg.NotificationConfig.Enabled {
		return manager
	}

	tokens, err := vault.GetNotifierTokens(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("notifier tokens unavailable, notifications disabled")
		return manager
	}

	if cfg.NotificationConfig.Telegram.Enabled {
		manager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: tokens.TelegramBotToken,
			ChatID:   tokens.TelegramChatID,
			Enabled:  true,
		}))
	}
	if cfg.NotificationConfig.Discord.Enabled {
		manager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: tokens.DiscordWebhookURL,
			Enabled:    true,
		}))
	}
	return manager
}

func buildChain(cfg *config.Config, broker market.Broker, cc *cache.CorrelationCache,
	openSymbols enhancers.OpenSymbolsFunc, mlOut **enhancers.MLEnhancer) *enhancers.Chain {

	var list []enhancers.Enhancer

	if cfg.EnhancersConfig.VolumeEnabled {
		list = append(list, enhancers.NewVolumeEnhancer(broker, enhancers.DefaultVolumeConfig()))
	}
	if cfg.EnhancersConfig.CorrelationEnabled {
		corrCfg := enhancers.DefaultCorrelationConfig(cfg.EngineConfig.Symbols)
		if cfg.EnhancersConfig.CorrelationThreshold > 0 {
			corrCfg.Threshold = cfg.EnhancersConfig.CorrelationThreshold
		}
		list = append(list, enhancers.NewCorrelationEnhancer(broker, cc, corrCfg, openSymbols))
	}
	if cfg.EnhancersConfig.MLEnabled {
		ml := enhancers.NewMLEnhancer(enhancers.MLConfig{
			MinATRThreshold: cfg.EnhancersConfig.MinATRThreshold,
			HistoryFile:     cfg.EnhancersConfig.MLHistoryFile,
			SessionHours:    cfg.RiskConfig.SessionHours,
		})
		*mlOut = ml
		list = append(list, ml)
	}

	return enhancers.NewChain(list...)
}
