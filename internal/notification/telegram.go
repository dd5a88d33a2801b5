package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig configures the admin alert bot.
type TelegramConfig struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
	// PerSecond caps outbound messages; Telegram throttles bots at about 30/s.
	PerSecond float64
}

// TelegramNotifier posts messages to an admin chat through the Bot API.
type TelegramNotifier struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTelegramNotifier constructs a Bot API client.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramAPI
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 20
	}
	return &TelegramNotifier{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.BotToken,
		chatID:     cfg.ChatID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.PerSecond), 1),
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers the message to the configured admin chat.
func (n *TelegramNotifier) Send(ctx context.Context, message Message) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	text := fmt.Sprintf("[%s] %s", strings.ToUpper(message.Kind), message.Body)
	if message.Destination != "" {
		text += "\nAccount: " + message.Destination
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: n.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var result sendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram %s: unmarshal response: %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram %s: %s", resp.Status, result.Description)
	}
	return nil
}
