package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"snap-to-spec/api/internal/config"
	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/engines"
	"snap-to-spec/api/internal/httpserver"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
	"snap-to-spec/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	token := config.MustEnv("TELEGRAM_BOT_TOKEN")

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	// Engines: per-chat choice via /engine, default from LLM_PROVIDER
	set := engines.New(cfg)
	def, err := set.GetEngine("")
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	manager := guide.NewManager(def)
	client := guide.NewClient(manager, cfg.AnalyzeTimeout)

	sessions, err := session.NewStore(cfg.SessionCapacity, client)
	if err != nil {
		log.Fatal(err)
	}

	r := &telegram.Router{
		Bot:        bot,
		Sessions:   sessions,
		Ingest:     ingest.New(cfg.MaxImageBytes),
		Engines:    set,
		EngManager: manager,
	}

	// ListenForWebhook registers on DefaultServeMux, so healthz goes there too.
	httpserver.Healthz(http.DefaultServeMux, "ok")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := "0.0.0.0:" + cfg.Port

	// --- Choose mode: Webhook vs Polling ---
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		err = startWebhookMode(ctx, addr, bot, r, webhookURL)
	} else {
		err = startPollingMode(ctx, addr, bot, r)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) error {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	updates := bot.ListenForWebhook(path)

	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		log.Printf("webhook updates channel closed")
	}()

	log.Printf("webhook listening on %s%s", addr, path)
	return httpserver.Run(ctx, addr, http.DefaultServeMux)
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) error {
	g, gctx := errgroup.WithContext(ctx)
	// healthz is not needed for polling but platforms probe it
	g.Go(func() error {
		return httpserver.Run(gctx, addr, http.DefaultServeMux)
	})
	g.Go(func() error {
		runPolling(gctx, bot, r.HandleUpdate)
		return nil
	})
	return g.Wait()
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return 2 * time.Second
		}
	}
	return 1 * time.Second
}

func clampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// runPolling long-polls with backoff and never exits the process on API errors.
func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)

	for {
		select {
		case <-ctx.Done():
			log.Printf("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err), baseDelay, maxDelay)
			log.Printf("polling error: %v; retry in %v", err, d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a; stable per token, not a secret in itself
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
