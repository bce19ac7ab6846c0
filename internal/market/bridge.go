package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BridgeClient talks to a trading-terminal REST gateway. The gateway exposes
// the terminal's tick/rate feeds and order endpoints over plain HTTP.
type BridgeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBridgeClient creates a new gateway client
func NewBridgeClient(baseURL, apiKey string) *BridgeClient {
	return &BridgeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *BridgeClient) get(path string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error calling gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway error: %s", string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func (c *BridgeClient) post(path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error calling gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: %s", ErrOrderRejected, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway error: %s", string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("error parsing response: %w", err)
		}
	}
	return nil
}

// GetTick fetches the current quote for a symbol
func (c *BridgeClient) GetTick(symbol string) (*Tick, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var tick Tick
	if err := c.get("/api/v1/tick", params, &tick); err != nil {
		return nil, err
	}
	if tick.Bid <= 0 || tick.Ask <= 0 {
		return nil, ErrNoData
	}
	return &tick, nil
}

// GetRates fetches OHLC history for a symbol and timeframe
func (c *BridgeClient) GetRates(symbol string, tf Timeframe, count int) ([]Rate, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timeframe", string(tf))
	params.Set("count", strconv.Itoa(count))

	var rates []Rate
	if err := c.get("/api/v1/rates", params, &rates); err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, ErrNoData
	}
	return rates, nil
}

// PlaceOrder submits a market order through the gateway
func (c *BridgeClient) PlaceOrder(symbol, side string, lotSize, slPrice, tpPrice float64) (*OrderResult, error) {
	payload := map[string]interface{}{
		"symbol":      symbol,
		"side":        side,
		"lot_size":    lotSize,
		"stop_loss":   slPrice,
		"take_profit": tpPrice,
	}

	var result OrderResult
	if err := c.post("/api/v1/order", payload, &result); err != nil {
		return nil, err
	}
	if result.Ticket == 0 {
		return nil, ErrOrderRejected
	}
	return &result, nil
}

// ClosePosition closes the full position for a ticket
func (c *BridgeClient) ClosePosition(ticket int64) error {
	payload := map[string]interface{}{"ticket": ticket}
	return c.post("/api/v1/close", payload, nil)
}

// PartialClose closes part of a position
func (c *BridgeClient) PartialClose(ticket int64, lots float64) error {
	payload := map[string]interface{}{"ticket": ticket, "lots": lots}
	return c.post("/api/v1/close", payload, nil)
}

// Compile-time interface check
var _ Broker = (*BridgeClient)(nil)
