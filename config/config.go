// Package config loads the bot configuration from config.json with
// environment variable overrides. Every trading parameter is injectable; the
// defaults reproduce the standard contrarian setup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"contrarian-trading-bot/internal/admission"
	"contrarian-trading-bot/internal/cache"
	"contrarian-trading-bot/internal/journal"
	"contrarian-trading-bot/internal/positions"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/secrets"

	"github.com/joho/godotenv"
)

type Config struct {
	BrokerConfig       BrokerConfig       `json:"broker"`
	EngineConfig       EngineConfig       `json:"engine"`
	ScorerConfig       ScorerConfig       `json:"scorer"`
	RiskConfig         risk.Config        `json:"risk"`
	AdmissionConfig    admission.Config   `json:"admission"`
	PositionsConfig    PositionsConfig    `json:"positions"`
	EnhancersConfig    EnhancersConfig    `json:"enhancers"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	ServerConfig       ServerConfig       `json:"server"`
	AuthConfig         AuthConfig         `json:"auth"`
	VaultConfig        secrets.Config     `json:"vault"`
	DatabaseConfig     journal.Config     `json:"database"`
	RedisConfig        cache.RedisConfig  `json:"redis"`
}

// BrokerConfig holds the market gateway configuration
type BrokerConfig struct {
	MockMode bool   `json:"mock_mode"` // Simulated quotes and fills, no gateway needed
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// EngineConfig holds the loop timing and the symbol universe
type EngineConfig struct {
	Symbols         []string `json:"symbols"`
	CycleSeconds    int      `json:"cycle_seconds"`
	PairPauseMillis int      `json:"pair_pause_ms"`
	StatusMinutes   int      `json:"status_minutes"`
}

// ScorerConfig holds the confluence thresholds
type ScorerConfig struct {
	MinConfluences    int     `json:"min_confluences"`
	MinSignalStrength float64 `json:"min_signal_strength"`
}

// PositionsConfig holds the lifecycle monitor thresholds
type PositionsConfig struct {
	TradeFollowing         bool       `json:"trade_following"`
	ReversalCheckSeconds   int        `json:"reversal_check_seconds"`
	MajorReversalThreshold float64    `json:"major_reversal_threshold"`
	ReversalConfluenceMin  int        `json:"reversal_confluence_min"`
	TPClosePercents        [3]float64 `json:"tp_close_percents"`
}

// ToMonitorConfig converts to the positions package config
func (p PositionsConfig) ToMonitorConfig() positions.Config {
	return positions.Config{
		TradeFollowing:         p.TradeFollowing,
		ReversalCheckInterval:  time.Duration(p.ReversalCheckSeconds) * time.Second,
		MajorReversalThreshold: p.MajorReversalThreshold,
		ReversalConfluenceMin:  p.ReversalConfluenceMin,
		TPClosePercents:        p.TPClosePercents,
	}
}

// EnhancersConfig toggles and tunes the enhancement chain
type EnhancersConfig struct {
	VolumeEnabled        bool    `json:"volume_enabled"`
	CorrelationEnabled   bool    `json:"correlation_enabled"`
	CorrelationThreshold float64 `json:"correlation_threshold"`
	MLEnabled            bool    `json:"ml_enabled"`
	MinATRThreshold      float64 `json:"min_atr_threshold"`
	MLHistoryFile        string  `json:"ml_history_file"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // Human-readable console output instead of JSON
	Output  string `json:"output"`  // stdout, stderr, or file path
}

type ServerConfig struct {
	Enabled        bool   `json:"enabled"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
}

type AuthConfig struct {
	Enabled          bool   `json:"enabled"`
	JWTSecret        string `json:"-"`
	OperatorUsername string `json:"operator_username"`
	OperatorPassHash string `json:"-"`
	TokenTTLMinutes  int    `json:"token_ttl_minutes"`
}

// Load reads config.json (if present), a .env file (if present), and applies
// environment overrides on top of the defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config.json: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the standard contrarian setup
func Default() *Config {
	return &Config{
		BrokerConfig: BrokerConfig{
			MockMode: true,
			BaseURL:  "http://localhost:5001",
		},
		EngineConfig: EngineConfig{
			Symbols:         []string{"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD", "USDCAD", "NZDUSD"},
			CycleSeconds:    30,
			PairPauseMillis: 1000,
			StatusMinutes:   60,
		},
		ScorerConfig: ScorerConfig{
			MinConfluences:    4,
			MinSignalStrength: 6.0,
		},
		RiskConfig: risk.Config{
			UseFixedPips:        true,
			FixedSLPips:         15,
			FixedTPPips:         10,
			SLATRMultiplier:     1.2,
			TPATRMultipliers:    [3]float64{1, 2, 3},
			BreakevenTriggerATR: 0.5,
			TrailingTriggerATR:  0.8,
			TrailingDistanceATR: 0.5,
			FixedRiskAmount:     3.0,
			PipValuePerLot:      1.0,
			BaseLotSize:         0.03,
			SessionHours:        risk.DefaultSessionHours(),
			SessionMultipliers:  risk.DefaultSessionMultipliers(),
			TradeWindows:        risk.DefaultTradeWindows(),
		},
		AdmissionConfig: admission.Config{
			DailyProfitTarget: 140,
			MaxDailyDrawdown:  70,
			MaxConcurrent:     7,
			MaxTradesPerDay:   14,
			MaxPerPairPerDay:  2,
			SessionPairCap:    1,
			StopOnPairSuccess: true,
		},
		PositionsConfig: PositionsConfig{
			TradeFollowing:         true,
			ReversalCheckSeconds:   30,
			MajorReversalThreshold: 7.0,
			ReversalConfluenceMin:  3,
			TPClosePercents:        [3]float64{0.70, 0.20, 0.10},
		},
		EnhancersConfig: EnhancersConfig{
			VolumeEnabled:        true,
			CorrelationEnabled:   true,
			CorrelationThreshold: 0.7,
			MLEnabled:            true,
			MinATRThreshold:      0.0008,
			MLHistoryFile:        "ml_history.json",
		},
		NotificationConfig: NotificationConfig{},
		LoggingConfig: LoggingConfig{
			Level:   "info",
			Console: false,
			Output:  "stdout",
		},
		ServerConfig: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
		},
		AuthConfig: AuthConfig{
			OperatorUsername: "operator",
			TokenTTLMinutes:  60,
		},
		VaultConfig: secrets.Config{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "contrarian-bot",
		},
		DatabaseConfig: journal.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "contrarian_bot",
			SSLMode:  "disable",
		},
		RedisConfig: cache.RedisConfig{
			Address:  "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.BrokerConfig.MockMode = getEnvBool("BROKER_MOCK_MODE", cfg.BrokerConfig.MockMode)
	cfg.BrokerConfig.BaseURL = getEnv("BROKER_BASE_URL", cfg.BrokerConfig.BaseURL)
	cfg.BrokerConfig.APIKey = getEnv("BROKER_API_KEY", cfg.BrokerConfig.APIKey)

	if symbols := os.Getenv("ENGINE_SYMBOLS"); symbols != "" {
		cfg.EngineConfig.Symbols = strings.Split(symbols, ",")
	}
	cfg.EngineConfig.CycleSeconds = getEnvInt("ENGINE_CYCLE_SECONDS", cfg.EngineConfig.CycleSeconds)
	cfg.EngineConfig.PairPauseMillis = getEnvInt("ENGINE_PAIR_PAUSE_MS", cfg.EngineConfig.PairPauseMillis)

	cfg.NotificationConfig.Enabled = getEnvBool("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBool("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBool("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnv("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.LoggingConfig.Level = getEnv("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Console = getEnvBool("LOG_CONSOLE", cfg.LoggingConfig.Console)
	cfg.LoggingConfig.Output = getEnv("LOG_OUTPUT", cfg.LoggingConfig.Output)

	cfg.ServerConfig.Enabled = getEnvBool("SERVER_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Host = getEnv("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvInt("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvBool("SERVER_PRODUCTION", cfg.ServerConfig.ProductionMode)

	cfg.AuthConfig.Enabled = getEnvBool("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.OperatorUsername = getEnv("AUTH_OPERATOR_USERNAME", cfg.AuthConfig.OperatorUsername)
	cfg.AuthConfig.OperatorPassHash = getEnv("AUTH_OPERATOR_PASSWORD_HASH", cfg.AuthConfig.OperatorPassHash)

	cfg.VaultConfig.Enabled = getEnvBool("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnv("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnv("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnv("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnv("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	cfg.DatabaseConfig.Enabled = getEnvBool("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnv("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvInt("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnv("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnv("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnv("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnv("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvBool("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnv("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnv("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvInt("REDIS_DB", cfg.RedisConfig.DB)
}

// Validate rejects configurations the loop cannot run with. A failure here is
// fatal at startup; limits are never silently corrected.
func (c *Config) Validate() error {
	if len(c.EngineConfig.Symbols) == 0 {
		return fmt.Errorf("config invalid: no symbols configured")
	}
	if c.EngineConfig.CycleSeconds <= 0 {
		return fmt.Errorf("config invalid: cycle_seconds must be positive")
	}
	if c.ScorerConfig.MinConfluences < 1 {
		return fmt.Errorf("config invalid: min_confluences must be at least 1")
	}
	if c.ScorerConfig.MinSignalStrength < 0 || c.ScorerConfig.MinSignalStrength > 10 {
		return fmt.Errorf("config invalid: min_signal_strength must be in [0,10]")
	}
	if c.AdmissionConfig.MaxConcurrent < 1 {
		return fmt.Errorf("config invalid: max_concurrent_trades must be at least 1")
	}
	if c.AdmissionConfig.MaxDailyDrawdown <= 0 {
		return fmt.Errorf("config invalid: max_daily_drawdown must be positive")
	}
	if c.RiskConfig.UseFixedPips && c.RiskConfig.FixedSLPips <= 0 {
		return fmt.Errorf("config invalid: fixed_sl_pips must be positive")
	}

	w := c.RiskConfig.TradeWindows
	if w.LondonStart >= w.LondonEnd || w.NewYorkStart >= w.NewYorkEnd ||
		w.LondonStart < 0 || w.NewYorkEnd > 24 {
		return fmt.Errorf("config invalid: trade_windows hours out of order")
	}

	var sum float64
	for _, p := range c.PositionsConfig.TPClosePercents {
		if p < 0 || p > 1 {
			return fmt.Errorf("config invalid: tp close percents must be in [0,1]")
		}
		sum += p
	}
	if sum > 1.0001 {
		return fmt.Errorf("config invalid: tp close percents exceed 100%%")
	}

	if !c.BrokerConfig.MockMode && c.BrokerConfig.BaseURL == "" {
		return fmt.Errorf("config invalid: broker base_url required outside mock mode")
	}
	if c.AuthConfig.Enabled {
		if c.AuthConfig.JWTSecret == "" {
			return fmt.Errorf("config invalid: auth enabled without AUTH_JWT_SECRET")
		}
		if c.AuthConfig.OperatorPassHash == "" {
			return fmt.Errorf("config invalid: auth enabled without AUTH_OPERATOR_PASSWORD_HASH")
		}
	}

	return nil
}

// CycleInterval returns the evaluation cycle period
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.EngineConfig.CycleSeconds) * time.Second
}

// PairPause returns the pause between symbol evaluations
func (c *Config) PairPause() time.Duration {
	return time.Duration(c.EngineConfig.PairPauseMillis) * time.Millisecond
}

// StatusInterval returns the periodic status notification interval
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.EngineConfig.StatusMinutes) * time.Minute
}

// TokenTTL returns the operator JWT lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.AuthConfig.TokenTTLMinutes) * time.Minute
}

// GenerateSampleConfig writes a fully populated config file with the defaults
func GenerateSampleConfig(filename string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
