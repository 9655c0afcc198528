// Package telegram delivers exec approval requests as interactive inline
// keyboard messages and resolves them from button presses.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
	"github.com/nextlevelbuilder/clawrelay/internal/channels"
)

// callbackDedupeTTL guards against double button taps: the same
// verb+id pair is acted on once per window.
const callbackDedupeTTL = time.Minute

// StatusProvider returns a plain-text snapshot for the /status command.
type StatusProvider func() string

// Config holds the Telegram channel settings.
type Config struct {
	Token  string
	ChatID int64 // destination chat for approval requests
}

// Channel sends approval requests to a fixed Telegram chat and listens for
// inline button callbacks over long polling.
type Channel struct {
	bot      *telego.Bot
	chatID   int64
	username string

	resolver channels.Resolver
	status   StatusProvider
	limiter  *channels.SendLimiter
	seen     *expirable.LRU[string, struct{}]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates the Telegram channel. The bot token is validated lazily, on
// Healthy or on the first send.
func New(cfg Config) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{
		bot:     bot,
		chatID:  cfg.ChatID,
		limiter: channels.NewSendLimiter(20, 3),
		seen:    expirable.NewLRU[string, struct{}](512, nil, callbackDedupeTTL),
	}, nil
}

func (c *Channel) Name() string { return channels.Telegram }

// SetResolver wires the bridge's button-press resolver. Must be called
// before Start.
func (c *Channel) SetResolver(r channels.Resolver) { c.resolver = r }

// SetStatusProvider wires the /status command snapshot source.
func (c *Channel) SetStatusProvider(p StatusProvider) { c.status = p }

// DeliverRequest sends the interactive approval message.
func (c *Channel) DeliverRequest(ctx context.Context, info approval.Info) (approval.Handle, error) {
	if err := c.limiter.Wait(ctx, strconv.FormatInt(c.chatID, 10)); err != nil {
		return nil, err
	}

	msg, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      tu.ID(c.chatID),
		Text:        renderRequest(info),
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: approvalKeyboard(info.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("send approval request: %w", err)
	}

	slog.Info("telegram approval request delivered",
		"id", shortID(info.ID), "chat_id", c.chatID, "message_id", msg.MessageID)
	return approval.TelegramHandle{ChatID: c.chatID, MessageID: msg.MessageID}, nil
}

// UpdateResolved rewrites the delivered message with the outcome and drops
// the buttons.
func (c *Channel) UpdateResolved(ctx context.Context, handle approval.Handle, info approval.Info, action approval.Action) error {
	return c.edit(ctx, handle, renderResolved(info, action))
}

// UpdateExpired rewrites the delivered message as expired.
func (c *Channel) UpdateExpired(ctx context.Context, handle approval.Handle, info approval.Info) error {
	return c.edit(ctx, handle, renderExpired(info))
}

func (c *Channel) edit(ctx context.Context, handle approval.Handle, text string) error {
	h, ok := handle.(approval.TelegramHandle)
	if !ok {
		return fmt.Errorf("telegram: unexpected handle type %T", handle)
	}
	if err := c.limiter.Wait(ctx, strconv.FormatInt(h.ChatID, 10)); err != nil {
		return err
	}

	edit := tu.EditMessageText(tu.ID(h.ChatID), h.MessageID, text)
	edit.ParseMode = telego.ModeHTML
	if _, err := c.bot.EditMessageText(ctx, edit); err != nil {
		return fmt.Errorf("edit approval message %d: %w", h.MessageID, err)
	}
	return nil
}

// Healthy verifies the bot token via getMe.
func (c *Channel) Healthy(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.username = me.Username
	c.mu.Unlock()
	return nil
}

// Start launches the long-polling loop for button callbacks and the
// /status command. Idempotent.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := c.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.cancel = cancel
	c.running = true
	go c.updateLoop(ctx, updates)
	slog.Info("telegram channel started", "chat_id", c.chatID)
	return nil
}

// Stop halts the long-polling loop and releases the rate limiter. Safe to
// call when never started.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.limiter.Stop()
	if !c.running {
		return
	}
	c.cancel()
	c.running = false
	slog.Info("telegram channel stopped")
}

func (c *Channel) updateLoop(ctx context.Context, updates <-chan telego.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				c.handleCallback(ctx, update.CallbackQuery)
			} else if update.Message != nil {
				c.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (c *Channel) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	id, action, ok := parseCallbackData(query.Data)
	if !ok {
		return
	}

	if _, dup := c.seen.Get(query.Data); dup {
		c.answerCallback(ctx, query.ID, "Already handled")
		return
	}
	c.seen.Add(query.Data, struct{}{})

	if c.resolver == nil {
		slog.Warn("telegram callback with no resolver wired", "id", shortID(id))
		return
	}

	if err := c.resolver(ctx, id, action); err != nil {
		// Allow an immediate retry of the same button.
		c.seen.Remove(query.Data)
		slog.Warn("telegram approval resolution failed",
			"id", shortID(id), "action", action, "error", err)
		c.answerCallback(ctx, query.ID, "Failed: "+err.Error())
		return
	}

	slog.Info("telegram approval resolved via button",
		"id", shortID(id), "action", action, "from", query.From.Username)
	c.answerCallback(ctx, query.ID, fmt.Sprintf("Recorded: %s", action))
}

func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) {
	if c.status == nil || !c.isStatusCommand(msg.Text) {
		return
	}
	reply := tu.Message(tu.ID(msg.Chat.ID), c.status())
	if _, err := c.bot.SendMessage(ctx, reply); err != nil {
		slog.Debug("failed to send status reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// isStatusCommand matches "/status" and the "/status@botname" form clients
// send in group chats. The bot username is learned from getMe.
func (c *Channel) isStatusCommand(text string) bool {
	text = strings.TrimSpace(text)
	if text == "/status" {
		return true
	}
	c.mu.Lock()
	username := c.username
	c.mu.Unlock()
	return username != "" && text == "/status@"+username
}

func (c *Channel) answerCallback(ctx context.Context, queryID, text string) {
	err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		slog.Debug("answerCallbackQuery failed", "error", err)
	}
}
