// Package notification delivers fire-and-forget trade notifications through
// Telegram and Discord. Delivery failures are logged and swallowed; they must
// never affect trading state.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyTradeOpen    NotificationType = "trade_open"
	NotifyTPHit        NotificationType = "tp_hit"
	NotifySLHit        NotificationType = "sl_hit"
	NotifyReversal     NotificationType = "reversal_close"
	NotifySystemStatus NotificationType = "system_status"
	NotifyDailyReset   NotificationType = "daily_reset"
	NotifyError        NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Price     float64
	PnL       float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendTradeOpened sends a contrarian trade-opened notification
func (m *Manager) SendTradeOpened(symbol, direction, originalDirection string, entry, lotSize, sl, tp1, tp2, tp3 float64) error {
	emoji := "🟢"
	if direction == "SELL" {
		emoji = "🔴"
	}

	return m.Send(&Notification{
		Type:  NotifyTradeOpen,
		Title: fmt.Sprintf("%s Contrarian Trade: %s", emoji, symbol),
		Message: fmt.Sprintf("%s %s @ %.5f (signal said %s)\nLots: %.2f\nSL: %.5f\nTP1: %.5f | TP2: %.5f | TP3: %.5f",
			direction, symbol, entry, originalDirection, lotSize, sl, tp1, tp2, tp3),
		Symbol:    symbol,
		Price:     entry,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"direction":          direction,
			"original_direction": originalDirection,
			"lot_size":           lotSize,
		},
	})
}

// SendTPHit sends a partial take-profit notification
func (m *Manager) SendTPHit(symbol string, level int, price, closedLots, pnl float64) error {
	return m.Send(&Notification{
		Type:      NotifyTPHit,
		Title:     fmt.Sprintf("🎯 TP%d Hit: %s", level, symbol),
		Message:   fmt.Sprintf("Closed %.2f lots @ %.5f\nP&L: $%.2f", closedLots, price, pnl),
		Symbol:    symbol,
		Price:     price,
		PnL:       pnl,
		Timestamp: time.Now(),
	})
}

// SendSLHit sends a stop-loss notification
func (m *Manager) SendSLHit(symbol string, price, pnl float64) error {
	return m.Send(&Notification{
		Type:      NotifySLHit,
		Title:     fmt.Sprintf("🛑 Stop Loss: %s", symbol),
		Message:   fmt.Sprintf("Closed @ %.5f\nP&L: $%.2f", price, pnl),
		Symbol:    symbol,
		Price:     price,
		PnL:       pnl,
		Timestamp: time.Now(),
	})
}

// SendReversalClose sends a reversal-close notification
func (m *Manager) SendReversalClose(symbol string, price, pnl float64) error {
	emoji := "✅"
	if pnl < 0 {
		emoji = "⚠️"
	}

	return m.Send(&Notification{
		Type:      NotifyReversal,
		Title:     fmt.Sprintf("%s Reversal Close: %s", emoji, symbol),
		Message:   fmt.Sprintf("Market confirmed the original call, position closed @ %.5f\nP&L: $%.2f", price, pnl),
		Symbol:    symbol,
		Price:     price,
		PnL:       pnl,
		Timestamp: time.Now(),
	})
}

// SendSystemStatus sends a periodic status summary
func (m *Manager) SendSystemStatus(openTrades, dailyTrades int, dailyPnL float64) error {
	return m.Send(&Notification{
		Type:      NotifySystemStatus,
		Title:     "📊 System Status",
		Message:   fmt.Sprintf("Open trades: %d\nTrades today: %d\nDaily P&L: $%.2f", openTrades, dailyTrades, dailyPnL),
		PnL:       dailyPnL,
		Timestamp: time.Now(),
	})
}

// SendDailyReset announces a new trading day
func (m *Manager) SendDailyReset(date string) error {
	return m.Send(&Notification{
		Type:      NotifyDailyReset,
		Title:     "🌅 New Trading Day",
		Message:   fmt.Sprintf("Daily counters reset for %s", date),
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	// Create Discord embed
	color := 0x00FF00 // Green
	if notification.Type == NotifyError || notification.Type == NotifySLHit {
		color = 0xFF0000 // Red
	} else if notification.PnL < 0 {
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	// Add fields if available
	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.5f", notification.Price), "inline": true,
			})
		}
		if notification.PnL != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "P&L", "value": fmt.Sprintf("$%.2f", notification.PnL), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
