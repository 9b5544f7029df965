package telegram

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snap-to-spec/api/internal/presenter"
	"snap-to-spec/api/internal/session"
)

const (
	cbStep   = "step:"
	cbExport = "export"
	cbReset  = "reset"
	cbRetry  = "retry"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	switch data := cb.Data; {
	case strings.HasPrefix(data, cbStep):
		n, err := strconv.Atoi(strings.TrimPrefix(data, cbStep))
		if err != nil {
			return
		}
		r.onToggle(cid, msgID, n)
	case data == cbExport:
		r.onExport(cid)
	case data == cbReset:
		r.resetChat(cid, msgID)
	case data == cbRetry:
		r.onRetry(cid, msgID)
	}
}

func (r *Router) onToggle(chatID int64, msgID, step int) {
	m, err := r.Sessions.Get(chatKey(chatID))
	if err != nil {
		r.send(chatID, expiredText)
		return
	}
	if _, err := m.Toggle(step); err != nil {
		if errors.Is(err, session.ErrNoGuide) || errors.Is(err, session.ErrUnknownStep) {
			r.send(chatID, expiredText)
			return
		}
		log.Printf("telegram: chat %d toggle %d: %v", chatID, step, err)
		return
	}
	v, ok := m.View()
	if !ok {
		return
	}
	kb := guideKeyboard(v)
	r.edit(chatID, msgID, guideText(v), &kb)
}

// onExport sends the printable page as an HTML document; opening it triggers the print dialog.
func (r *Router) onExport(chatID int64) {
	m, err := r.Sessions.Get(chatKey(chatID))
	if err != nil {
		r.send(chatID, expiredText)
		return
	}
	v, ok := m.View()
	if !ok {
		r.send(chatID, expiredText)
		return
	}
	var buf bytes.Buffer
	if err := v.Export(&buf); err != nil {
		log.Printf("telegram: chat %d export: %v", chatID, err)
		r.send(chatID, "Export failed.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: presenter.ExportFileName(v.Guide.ItemName), Bytes: buf.Bytes()})
	doc.Caption = "Open in a browser and print to PDF."
	if _, err := r.Bot.Send(doc); err != nil {
		log.Printf("telegram: chat %d send export: %v", chatID, err)
	}
}

// resetChat returns the chat session to Idle. msgID, when set, is the guide message to close.
func (r *Router) resetChat(chatID int64, msgID int) {
	m := r.Sessions.GetOrCreate(chatKey(chatID))
	if _, err := m.Reset(); err != nil {
		r.send(chatID, busyText)
		return
	}
	if msgID != 0 {
		// drop the keyboard so old buttons cannot act on the new session
		_, _ = r.Bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		}))
	}
	r.send(chatID, idleText)
}

func (r *Router) onRetry(chatID int64, msgID int) {
	m, err := r.Sessions.Get(chatKey(chatID))
	if err != nil {
		r.send(chatID, expiredText)
		return
	}
	_, done, err := m.RetryAsync(context.Background())
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			r.send(chatID, busyText)
			return
		}
		r.send(chatID, idleText)
		return
	}
	r.edit(chatID, msgID, loadingText, nil)
	go r.awaitResult(chatID, msgID, m, done)
}
