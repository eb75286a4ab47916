package presenter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/scheduler"
)

const callbackPrefix = "respond"

// BotAPI is the part of *tgbotapi.BotAPI the Telegram presenter uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type pendingAlarm struct {
	alarm   scheduler.Alarm
	respond func(scheduler.Response)
	message int
}

// Telegram sends each alarm to one chat with an inline keyboard and turns
// button presses into responses. Run must be running for presses to arrive.
type Telegram struct {
	api    BotAPI
	chatID int64

	mu      sync.Mutex
	seq     int
	pending map[int]*pendingAlarm
}

// NewTelegramBot authorizes token against the Bot API.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Authorized on Telegram", "account", api.Self.UserName)
	return api, nil
}

func NewTelegram(api BotAPI, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID, pending: make(map[int]*pendingAlarm)}
}

func (t *Telegram) PresentAlarm(_ context.Context, alarm scheduler.Alarm, respond func(scheduler.Response)) {
	p := &pendingAlarm{alarm: alarm, respond: respond}
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.pending[seq] = p
	t.mu.Unlock()

	row := make([]tgbotapi.InlineKeyboardButton, 0, len(alarm.Options()))
	for _, k := range alarm.Options() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(OptionLabel(k), callbackData(k, seq)))
	}
	msg := tgbotapi.NewMessage(t.chatID, "⏰ "+alarm.Title()+"\n\n"+Describe(alarm))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)

	sent, err := t.api.Send(msg)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		delete(t.pending, seq)
		logger.Error("Failed to send Telegram alarm; dismissing", "reminder", alarm.Reminder.ID, "error", err)
		// PresentAlarm runs on the event loop, which respond posts back to.
		go respond(scheduler.Response{Kind: scheduler.Dismiss})
		return
	}
	p.message = sent.MessageID
}

// Pending is the number of alarms waiting for a button press.
func (t *Telegram) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Run polls for updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = constants.DefaultTelegramTimeout
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.CallbackQuery != nil {
				t.handleCallback(update.CallbackQuery)
			}
		}
	}
}

func (t *Telegram) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil || cq.Message.Chat.ID != t.chatID {
		logger.Warn("Ignoring Telegram callback from another chat")
		return
	}

	kind, seq, err := parseCallbackData(cq.Data)
	if err != nil {
		logger.Warn("Ignoring malformed Telegram callback", "data", cq.Data, "error", err)
		_, _ = t.api.Request(tgbotapi.NewCallback(cq.ID, ""))
		return
	}

	t.mu.Lock()
	p, ok := t.pending[seq]
	delete(t.pending, seq)
	var message int
	if ok {
		message = p.message
	}
	t.mu.Unlock()

	if !ok {
		_, _ = t.api.Request(tgbotapi.NewCallback(cq.ID, "Already handled"))
		return
	}
	if _, err := t.api.Request(tgbotapi.NewCallback(cq.ID, OptionLabel(kind))); err != nil {
		logger.Debug("Failed to answer Telegram callback", "error", err)
	}

	p.respond(scheduler.Response{Kind: kind, Log: logFor(p.alarm, kind, "")})

	edit := tgbotapi.NewEditMessageText(t.chatID, message, fmt.Sprintf("⏰ %s\n\n%s ✔", p.alarm.Title(), OptionLabel(kind)))
	if _, err := t.api.Send(edit); err != nil {
		logger.Debug("Failed to update Telegram alarm message", "error", err)
	}
}

func callbackData(k scheduler.ResponseKind, seq int) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, k, seq)
}

func parseCallbackData(data string) (scheduler.ResponseKind, int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return 0, 0, fmt.Errorf("unexpected callback %q", data)
	}
	kind, err := scheduler.ParseResponseKind(parts[1])
	if err != nil {
		return 0, 0, err
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("bad alarm sequence %q", parts[2])
	}
	return kind, seq, nil
}
