package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(ctx context.Context, command string) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

const pollTimeoutSeconds = 30

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: (pollTimeoutSeconds + 5) * time.Second, Transport: t.Client.Transport}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("polling stopped")
			return
		default:
		}

		next, err := t.poll(ctx, client, offset, pollTimeoutSeconds, handler)
		if err != nil {
			if ctx.Err() != nil {
				t.logger.Info("polling stopped")
				return
			}
			t.logger.Warn("polling request failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}
		offset = next
	}
}

// poll fetches one batch of updates, dispatches commands from the configured
// chat and returns the next offset.
func (t *TelegramNotifier) poll(ctx context.Context, client *http.Client, offset, timeout int, handler CommandHandler) (int, error) {
	apiURL := fmt.Sprintf("%s?offset=%d&timeout=%d", t.endpoint("getUpdates"), offset, timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return offset, errors.Wrap(err, "create polling request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return offset, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return offset, errors.Wrap(err, "read polling response")
	}
	if resp.StatusCode != http.StatusOK {
		return offset, errors.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return offset, errors.Wrap(err, "decode polling response")
	}

	for _, update := range result.Result {
		offset = update.UpdateID + 1
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		if chat := strconv.FormatInt(update.Message.Chat.ID, 10); chat != t.ChatID {
			t.logger.Warn("ignoring message from unknown chat", zap.String("chat_id", chat))
			continue
		}
		text := strings.TrimSpace(update.Message.Text)
		t.logger.Info("received command", zap.String("command", text))
		reply := handler(ctx, text)
		if reply != "" {
			if err := t.Send(ctx, reply); err != nil {
				t.logger.Error("send reply failed", zap.Error(err))
			}
		}
	}
	return offset, nil
}
