package presenter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/scheduler"
)

const testChat int64 = 4242

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	answered []tgbotapi.CallbackConfig
	updates  chan tgbotapi.Update
	sendErr  error
	nextID   int
	stopped  bool
}

func newFakeBot() *fakeBot { return &fakeBot{updates: make(chan tgbotapi.Update, 8)} }

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered = append(f.answered, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeBot) snapshot() ([]tgbotapi.Chattable, []tgbotapi.CallbackConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...), append([]tgbotapi.CallbackConfig(nil), f.answered...)
}

func press(chat int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: chat}},
	}}
}

func TestTelegramPresentAlarm(t *testing.T) {
	bot := newFakeBot()
	tg := NewTelegram(bot, testChat)

	tg.PresentAlarm(context.Background(), weeklyAlarm(), func(scheduler.Response) {})

	sent, _ := bot.snapshot()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected MessageConfig, got %T", sent[0])
	}
	if msg.ChatID != testChat || !strings.Contains(msg.Text, "Biscuit: Walk") {
		t.Errorf("unexpected message %+v", msg)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("expected a one-row inline keyboard, got %#v", msg.ReplyMarkup)
	}
	var data []string
	for _, b := range kb.InlineKeyboard[0] {
		data = append(data, *b.CallbackData)
	}
	want := []string{"respond:acknowledge:1", "respond:snooze:1", "respond:skip:1", "respond:dismiss:1"}
	if strings.Join(data, ",") != strings.Join(want, ",") {
		t.Errorf("buttons = %v, want %v", data, want)
	}
	if tg.Pending() != 1 {
		t.Errorf("expected 1 pending alarm, got %d", tg.Pending())
	}
}

func TestTelegramSendFailureDismisses(t *testing.T) {
	bot := newFakeBot()
	bot.sendErr = errors.New("network down")
	tg := NewTelegram(bot, testChat)

	rec := newRecorder()
	tg.PresentAlarm(context.Background(), weeklyAlarm(), rec.respond)
	if tg.Pending() != 0 {
		t.Errorf("expected no pending alarms, got %d", tg.Pending())
	}
	if got := rec.wait(t); got.Kind != scheduler.Dismiss {
		t.Errorf("undelivered alarm should be dismissed, got %s", got.Kind)
	}
}

func TestTelegramCallbacks(t *testing.T) {
	bot := newFakeBot()
	tg := NewTelegram(bot, testChat)
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()

	tg.PresentAlarm(ctx, weeklyAlarm(), rec.respond)

	bot.updates <- press(999, "respond:snooze:1")
	bot.updates <- press(testChat, "garbage")
	bot.updates <- press(testChat, "respond:acknowledge:1")

	got := rec.wait(t)
	if got.Kind != scheduler.Acknowledge {
		t.Fatalf("expected acknowledge, got %s", got.Kind)
	}
	if got.Log == nil || got.Log.Action != models.ActionWalk {
		t.Errorf("acknowledge should log the walk, got %+v", got.Log)
	}

	bot.updates <- press(testChat, "respond:snooze:1")

	// Flush: a further alarm proves the loop processed the duplicate press.
	tg.PresentAlarm(ctx, oneTimeAlarm(), rec.respond)
	bot.updates <- press(testChat, "respond:dismiss:2")
	if got := rec.wait(t); got.Kind != scheduler.Dismiss {
		t.Fatalf("expected dismiss, got %s", got.Kind)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	if rec.count() != 2 {
		t.Errorf("expected 2 responses, got %d", rec.count())
	}
	sent, answered := bot.snapshot()
	var texts []string
	for _, a := range answered {
		texts = append(texts, a.Text)
	}
	if strings.Join(texts, "|") != "|Done|Already handled|Dismiss" {
		t.Errorf("callback answers = %q", texts)
	}
	edits := 0
	for _, c := range sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			edits++
			if e.ChatID != testChat {
				t.Errorf("edit sent to chat %d", e.ChatID)
			}
		}
	}
	if edits != 2 {
		t.Errorf("expected 2 message edits, got %d", edits)
	}
	if !bot.stopped {
		t.Error("Run should stop receiving updates")
	}
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data    string
		kind    scheduler.ResponseKind
		seq     int
		wantErr bool
	}{
		{data: "respond:unskip:12", kind: scheduler.Unskip, seq: 12},
		{data: "respond:dismiss:1", kind: scheduler.Dismiss, seq: 1},
		{data: "respond:nap:1", wantErr: true},
		{data: "respond:snooze:x", wantErr: true},
		{data: "other:snooze:1", wantErr: true},
		{data: "respond:snooze", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			kind, seq, err := parseCallbackData(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (kind != tt.kind || seq != tt.seq) {
				t.Errorf("got %s/%d", kind, seq)
			}
			if !tt.wantErr && callbackData(kind, seq) != tt.data {
				t.Errorf("callbackData round trip = %q", callbackData(kind, seq))
			}
		})
	}
}
