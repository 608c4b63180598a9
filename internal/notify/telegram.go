package notify

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	logx "calendd/pkg/logx"
)

type TelegramConfig struct {
	Token   string
	ChatID  int64
	OpenURL string
}

// Telegram delivers reminders as messages to one chat. Slot replacement is
// emulated by deleting the previous message for the slot before sending the
// new one, so a re-fire never stacks.
type Telegram struct {
	cfg TelegramConfig
	log logx.Logger
	bot *tele.Bot

	mu    sync.Mutex
	slots map[int64]tele.StoredMessage
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Telegram{cfg: cfg, log: log, bot: b, slots: map[int64]tele.StoredMessage{}}, nil
}

// CreateChannel is the idempotent setup hook. Telegram has no channel
// registration step beyond the bot handshake done in NewTelegram, so this
// only confirms the target chat is configured.
func (t *Telegram) CreateChannel(ctx context.Context) error {
	t.log.Debug("notification channel ready",
		logx.Int64("chat_id", t.cfg.ChatID), logx.String("bot", t.bot.Me.Username))
	return nil
}

func (t *Telegram) Display(ctx context.Context, n Notification) error {
	t.mu.Lock()
	prev, hadPrev := t.slots[n.Slot]
	t.mu.Unlock()

	// Replace, don't stack: drop the previous message for this slot first.
	if hadPrev {
		if err := t.bot.Delete(prev); err != nil {
			t.log.Debug("stale slot message delete failed",
				logx.Int64("slot", n.Slot), logx.Err(err))
		}
	}

	text := "\U0001F514 " + n.Title
	if n.Body != "" {
		text += "\n" + n.Body
	}

	opts := &tele.SendOptions{DisableWebPagePreview: true}
	openURL := n.OpenURL
	if openURL == "" {
		openURL = t.cfg.OpenURL
	}
	if openURL != "" {
		rm := &tele.ReplyMarkup{}
		rm.Inline(rm.Row(rm.URL("Open calendar", openURL)))
		opts.ReplyMarkup = rm
	}

	msg, err := t.bot.Send(&tele.Chat{ID: t.cfg.ChatID}, text, opts)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.slots[n.Slot] = tele.StoredMessage{ChatID: t.cfg.ChatID, MessageID: strconv.Itoa(msg.ID)}
	t.mu.Unlock()
	return nil
}
