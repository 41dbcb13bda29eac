// Package telegram implements channels.Transport over the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/tgrelay/internal/channels"
	"github.com/nextlevelbuilder/tgrelay/internal/config"
)

// Client is a thin Bot API client. It does not poll on its own: the relay
// poller drives GetUpdates so that offsets and dedup stay under its control.
type Client struct {
	bot     *telego.Bot
	limiter *channels.SendLimiter
}

// New creates a Telegram client from config.
func New(cfg config.TelegramConfig) (*Client, error) {
	opts := []telego.BotOption{telego.WithLogger(slogLogger{})}

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}
	if cfg.APIServer != "" {
		opts = append(opts, telego.WithAPIServer(cfg.APIServer))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Client{
		bot:     bot,
		limiter: channels.NewSendLimiter(cfg.SendRatePerSec, cfg.SendBurst),
	}, nil
}

// GetUpdates performs one getUpdates call. Only "message" updates are
// requested; updates without a sender or without text come back with an
// empty Text so the caller still sees their ids.
func (c *Client) GetUpdates(ctx context.Context, offset, timeoutSec, limit int) ([]channels.Update, error) {
	raw, err := c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset:         offset,
		Timeout:        timeoutSec,
		Limit:          limit,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return nil, &channels.TransportError{Op: "getUpdates", Err: err}
	}

	out := make([]channels.Update, 0, len(raw))
	for _, u := range raw {
		out = append(out, convertUpdate(u))
	}
	return out, nil
}

func convertUpdate(u telego.Update) channels.Update {
	upd := channels.Update{UpdateID: u.UpdateID}
	if u.Message == nil {
		slog.Debug("telegram update skipped (no message)", "update_id", u.UpdateID)
		return upd
	}
	if u.Message.From != nil {
		upd.SenderID = u.Message.From.ID
	}
	upd.Text = u.Message.Text
	return upd
}

// SendMessage sends text as a plain message, waiting on the send limiter first.
func (c *Client) SendMessage(ctx context.Context, recipientID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &channels.TransportError{Op: "sendMessage", Err: err}
	}
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(recipientID), text)); err != nil {
		return &channels.TransportError{Op: "sendMessage", Err: err}
	}
	return nil
}

// GetSelf calls getMe.
func (c *Client) GetSelf(ctx context.Context) (channels.Identity, error) {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return channels.Identity{}, &channels.TransportError{Op: "getMe", Err: err}
	}
	if me == nil {
		return channels.Identity{}, &channels.TransportError{Op: "getMe", Err: errors.New("empty response")}
	}
	return channels.Identity{ID: me.ID, Username: me.Username, FirstName: me.FirstName}, nil
}

var _ channels.Transport = (*Client)(nil)
