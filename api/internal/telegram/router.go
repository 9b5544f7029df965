package telegram

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        BotAPI
	Sessions   *session.Store
	Ingest     *ingest.Ingestor
	Engines    *guide.Engines
	EngManager *guide.Manager

	// HTTPClient downloads photos; nil means a client with a 60s timeout.
	HTTPClient *http.Client
}

func chatKey(chatID int64) string { return fmt.Sprintf("chat:%d", chatID) }

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	// inline keyboard presses
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message

	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(msg)
	case msg.Document != nil:
		r.acceptDocument(msg)
	default:
		r.send(msg.Chat.ID, "Send me a photo of the broken item.")
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, "Snap a photo of a broken item and I'll send back a repair guide.\nCommands: /reset, /engine, /health")
	case "health":
		r.send(cid, "✅ OK")
	case "reset":
		r.resetChat(cid, 0)
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Unknown command")
	}
}

// handleEngineCommand switches the engine for one chat.
//
//	/engine
//	/engine gemini [model]
//	/engine claude [model]
func (r *Router) handleEngineCommand(chatID int64, argLine string) {
	args := strings.Fields(argLine)
	key := chatKey(chatID)
	if len(args) == 0 {
		cur := r.EngManager.Get(key)
		name := "none"
		if cur != nil {
			name = cur.Name() + " (" + cur.GetModel() + ")"
		}
		r.send(chatID, "Current engine: "+name+
			"\nUsage: /engine {"+strings.Join(r.Engines.Names(), "|")+"} [model]")
		return
	}

	eng, err := r.Engines.GetEngine(args[0])
	if err != nil {
		r.send(chatID, "❌ "+err.Error())
		return
	}
	// a model switch gets a copy; the shared engine serves every other chat
	if len(args) > 1 {
		ms, ok := eng.(guide.ModelSwitcher)
		if !ok {
			r.send(chatID, "❌ "+eng.Name()+" has a fixed model")
			return
		}
		eng = ms.WithModel(args[1])
	}
	r.EngManager.Set(key, eng)
	log.Printf("telegram: chat %d engine -> %s/%s", chatID, eng.Name(), eng.GetModel())
	r.send(chatID, "✅ Engine: "+eng.Name()+" ("+eng.GetModel()+").")
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

// sendMarkdown sends text as legacy Markdown. If Telegram rejects it, the same content goes out
// again as plain text so the reader still gets the guide and its keyboard.
func (r *Router) sendMarkdown(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	sent, err := r.Bot.Send(msg)
	if err != nil {
		log.Printf("telegram: send to %d: %v; resending as plain text", chatID, err)
		msg.Text = plainText(text)
		msg.ParseMode = ""
		if sent, err = r.Bot.Send(msg); err != nil {
			log.Printf("telegram: send to %d: %v", chatID, err)
			return 0, err
		}
	}
	return sent.MessageID, nil
}

func (r *Router) edit(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	var e tgbotapi.EditMessageTextConfig
	if kb != nil {
		e = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, *kb)
	} else {
		e = tgbotapi.NewEditMessageText(chatID, msgID, text)
	}
	e.ParseMode = tgbotapi.ModeMarkdown
	_, err := r.Bot.Send(e)
	if err == nil || strings.Contains(err.Error(), "message is not modified") {
		return
	}
	log.Printf("telegram: edit %d/%d: %v; retrying as plain text", chatID, msgID, err)
	e.Text = plainText(text)
	e.ParseMode = ""
	if _, err := r.Bot.Send(e); err != nil {
		log.Printf("telegram: edit %d/%d: %v", chatID, msgID, err)
	}
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}
