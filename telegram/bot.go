package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/httpjson"
	"github.com/eqtlab/whale-tracker/tracker"
)

const (
	// messageLimit is the longest text telegram accepts in one message.
	messageLimit = 4096
	// updatesLimit is the largest getUpdates page.
	updatesLimit = 100
)

var ErrNotOK = errors.New("telegram answered not ok")

type Config struct {
	BotToken string  `env:"BOT_TOKEN, required"`
	URL      string  `env:"URL, default=https://api.telegram.org"`
	RPS      float64 `env:"RPS, default=20"`
	Timezone string  `env:"TIMEZONE, default=Local"` // Zone of report timestamps
}

// Bot sends html messages and reads admin commands through the bot API.
type Bot struct {
	api    *httpjson.Client
	logger *zap.Logger
}

func New(cfg Config, l *zap.Logger) *Bot {
	return &Bot{
		api: httpjson.New(
			"telegram",
			cfg.URL,
			l,
			httpjson.WithPathPrefix("/bot"+cfg.BotToken),
			httpjson.WithRateLimit(cfg.RPS, 1),
		),
		logger: l,
	}
}

type envelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		Username string `json:"username"`
	} `json:"from"`
}

func (b *Bot) call(ctx context.Context, method string, params url.Values, out any) error {
	var env envelope
	if err := b.api.Get(ctx, "/"+method, params, &env); err != nil {
		return err
	}
	if !env.OK {
		return fmt.Errorf("%s: %w: %s", method, ErrNotOK, env.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: %w: %v", method, httpjson.ErrDecodeBody, err)
	}
	return nil
}

// SendMessage sends text as html, split into several messages when it is too long for one.
func (b *Bot) SendMessage(ctx context.Context, chatID, text string) error {
	for _, part := range splitMessage(text, messageLimit) {
		params := url.Values{}
		params.Set("chat_id", chatID)
		params.Set("parse_mode", "HTML")
		params.Set("disable_web_page_preview", "true")
		params.Set("text", part)

		if err := b.call(ctx, "sendMessage", params, nil); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// Commands returns the slash commands among updates newer than afterUpdateID. Other updates are skipped
// but still count for the batch's last update id, so that a flood of chat messages can't hide later commands.
func (b *Bot) Commands(ctx context.Context, afterUpdateID int64) (tracker.CommandBatch, error) {
	batch := tracker.CommandBatch{LastUpdateID: afterUpdateID}

	for pages := 0; ; pages++ {
		params := url.Values{}
		params.Set("offset", strconv.FormatInt(batch.LastUpdateID+1, 10))
		params.Set("limit", strconv.Itoa(updatesLimit))
		params.Set("allowed_updates", `["message"]`)

		var updates []update
		if err := b.call(ctx, "getUpdates", params, &updates); err != nil {
			return tracker.CommandBatch{}, fmt.Errorf("get updates: %w", err)
		}

		for _, u := range updates {
			if u.UpdateID > batch.LastUpdateID {
				batch.LastUpdateID = u.UpdateID
			}
			if cmd, ok := toCommand(u); ok {
				batch.Commands = append(batch.Commands, cmd)
			}
		}

		b.logger.Debug("polled updates",
			zap.Int("page", pages),
			zap.Int("updates", len(updates)),
			zap.Int("commands", len(batch.Commands)),
			zap.Int64("last_update_id", batch.LastUpdateID),
		)

		if len(updates) < updatesLimit {
			return batch, nil
		}
	}
}

func toCommand(u update) (tracker.Command, bool) {
	if u.Message == nil || u.Message.From == nil {
		return tracker.Command{}, false
	}

	method, kwargs, ok := ParseCommand(u.Message.Text)
	if !ok {
		return tracker.Command{}, false
	}

	return tracker.Command{
		UpdateID: u.UpdateID,
		ChatID:   strconv.FormatInt(u.Message.Chat.ID, 10),
		User:     u.Message.From.Username,
		Method:   method,
		Kwargs:   kwargs,
	}, true
}
