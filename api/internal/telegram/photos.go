package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

func (r *Router) acceptPhoto(msg *tgbotapi.Message) {
	// largest size is last
	ph := msg.Photo[len(msg.Photo)-1]
	r.acceptFile(msg.Chat.ID, ph.FileID, ingest.File{Name: "photo.jpg", ContentType: "image/jpeg"})
}

// acceptDocument handles images sent "as file". Anything else is rejected before download.
func (r *Router) acceptDocument(msg *tgbotapi.Message) {
	doc := msg.Document
	r.acceptFile(msg.Chat.ID, doc.FileID, ingest.File{Name: doc.FileName, ContentType: doc.MimeType})
}

func (r *Router) acceptFile(chatID int64, fileID string, f ingest.File) {
	ctx := context.Background()
	m := r.Sessions.GetOrCreate(chatKey(chatID))
	if m.Snapshot().Phase == session.Loading {
		r.send(chatID, busyText)
		return
	}

	// reject by declared type first so non-images are never downloaded
	if err := r.Ingest.Check(f.Name, f.ContentType); err != nil {
		r.send(chatID, ingest.RejectMessage)
		return
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendFailure(chatID, fmt.Errorf("get file: %w", err))
		return
	}
	body, err := r.download(ctx, url)
	if err != nil {
		r.sendFailure(chatID, fmt.Errorf("download: %w", err))
		return
	}
	defer body.Close()
	f.Body = body

	img, err := r.Ingest.Ingest(ctx, f)
	if err != nil {
		if ingest.IsRejection(err) {
			r.send(chatID, userMessage(err))
			return
		}
		r.sendFailure(chatID, err)
		return
	}

	_, done, err := m.SubmitAsync(ctx, img)
	if err != nil {
		r.send(chatID, busyText)
		return
	}
	loadingID, _ := r.sendMarkdown(chatID, loadingText, nil)
	go r.awaitResult(chatID, loadingID, m, done)
}

// awaitResult replaces the loading message with the guide or the failure once the cycle settles.
// A newer cycle started in the meantime owns the chat, so nothing is sent then.
func (r *Router) awaitResult(chatID int64, loadingID int, m *session.Machine, done <-chan struct{}) {
	<-done
	snap := m.Snapshot()
	switch snap.Phase {
	case session.Success:
		v, ok := m.View()
		if !ok {
			return
		}
		kb := guideKeyboard(v)
		if loadingID != 0 {
			r.edit(chatID, loadingID, guideText(v), &kb)
			return
		}
		_, _ = r.sendMarkdown(chatID, guideText(v), &kb)
	case session.Failure:
		kb := failureKeyboard()
		text := failureText(*snap.Error)
		if loadingID != 0 {
			r.edit(chatID, loadingID, text, &kb)
			return
		}
		_, _ = r.sendMarkdown(chatID, text, &kb)
	}
}

// sendFailure covers errors before the session is involved, such as a failed download.
func (r *Router) sendFailure(chatID int64, err error) {
	log.Printf("telegram: chat %d: %v", chatID, err)
	_, _ = r.sendMarkdown(chatID, failureText("Could not fetch the photo. Please send it again."), nil)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		return "That image is too large. Please send a smaller one."
	case errors.Is(err, ingest.ErrEmpty):
		return "That image is empty. Please send it again."
	}
	return ingest.RejectMessage
}

func (r *Router) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return resp.Body, nil
}
