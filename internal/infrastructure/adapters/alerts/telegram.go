// Package alerts implements the best-effort admin channels that receive a
// plain text message for every detected deposit.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/pkg/security"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
}

// TelegramNotifier posts admin alerts through the Bot API sendMessage call
type TelegramNotifier struct {
	client *resty.Client
	config TelegramConfig
	logger *zap.Logger
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegramNotifier creates a Telegram admin notifier
func NewTelegramNotifier(config TelegramConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	if strings.TrimSpace(config.BotToken) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if strings.TrimSpace(config.ChatID) == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultTelegramBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramNotifier{client: client, config: config, logger: logger}, nil
}

// Send delivers message to the configured chat
func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	var result telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":                  t.config.ChatID,
			"text":                     message,
			"disable_web_page_preview": true,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.config.BotToken + "/sendMessage")
	if err != nil {
		// transport errors echo the request URL, which carries the bot token
		return fmt.Errorf("failed to send telegram message: %w", security.RedactError(err, t.config.BotToken))
	}

	if !resp.IsSuccess() || !result.OK {
		t.logger.Warn("Telegram rejected admin alert",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("description", result.Description))
		return fmt.Errorf("telegram error: status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}
