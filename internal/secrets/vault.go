// Package secrets stores broker gateway credentials and notifier tokens in
// HashiCorp Vault, with an in-memory fallback when Vault is disabled.
package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config holds Vault configuration
type Config struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"-"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// BrokerCredentials is the broker gateway credential set stored in Vault
type BrokerCredentials struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// NotifierTokens holds the notification provider secrets
type NotifierTokens struct {
	TelegramBotToken  string `json:"telegram_bot_token"`
	TelegramChatID    string `json:"telegram_chat_id"`
	DiscordWebhookURL string `json:"discord_webhook_url"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config Config
	mu     sync.RWMutex
	broker *BrokerCredentials
	tokens *NotifierTokens
}

// NewClient creates a new Vault client. With Vault disabled the client works
// purely from values set through StoreBrokerCredentials / StoreNotifierTokens.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// StoreBrokerCredentials stores the broker gateway credentials
func (c *Client) StoreBrokerCredentials(ctx context.Context, creds BrokerCredentials) error {
	c.mu.Lock()
	c.broker = &creds
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"base_url": creds.BaseURL,
			"api_key":  creds.APIKey,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath("broker"), secretData); err != nil {
		return fmt.Errorf("failed to store broker credentials in vault: %w", err)
	}
	return nil
}

// GetBrokerCredentials retrieves the broker gateway credentials
func (c *Client) GetBrokerCredentials(ctx context.Context) (*BrokerCredentials, error) {
	c.mu.RLock()
	if c.broker != nil {
		cached := *c.broker
		c.mu.RUnlock()
		return &cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("broker credentials not found and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath("broker"))
	if err != nil {
		return nil, fmt.Errorf("failed to read broker credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("broker credentials not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &BrokerCredentials{
		BaseURL: getString(data, "base_url"),
		APIKey:  getString(data, "api_key"),
	}

	c.mu.Lock()
	c.broker = creds
	c.mu.Unlock()

	return creds, nil
}

// StoreNotifierTokens stores the notification provider secrets
func (c *Client) StoreNotifierTokens(ctx context.Context, tokens NotifierTokens) error {
	c.mu.Lock()
	c.tokens = &tokens
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"telegram_bot_token":  tokens.TelegramBotToken,
			"telegram_chat_id":    tokens.TelegramChatID,
			"discord_webhook_url": tokens.DiscordWebhookURL,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath("notifiers"), secretData); err != nil {
		return fmt.Errorf("failed to store notifier tokens in vault: %w", err)
	}
	return nil
}

// GetNotifierTokens retrieves the notification provider secrets. Missing
// tokens are not an error; notifiers simply stay disabled.
func (c *Client) GetNotifierTokens(ctx context.Context) (*NotifierTokens, error) {
	c.mu.RLock()
	if c.tokens != nil {
		cached := *c.tokens
		c.mu.RUnlock()
		return &cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return &NotifierTokens{}, nil
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath("notifiers"))
	if err != nil {
		return nil, fmt.Errorf("failed to read notifier tokens from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return &NotifierTokens{}, nil
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	tokens := &NotifierTokens{
		TelegramBotToken:  getString(data, "telegram_bot_token"),
		TelegramChatID:    getString(data, "telegram_chat_id"),
		DiscordWebhookURL: getString(data, "discord_webhook_url"),
	}

	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()

	return tokens, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
