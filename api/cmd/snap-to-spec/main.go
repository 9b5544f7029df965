package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"snap-to-spec/api/internal/config"
	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/engines"
	"snap-to-spec/api/internal/handle"
	"snap-to-spec/api/internal/httpserver"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

func main() {
	cfg := config.Load()

	set := engines.New(cfg)
	def, err := set.GetEngine("")
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	log.Printf("default engine: %s (%s)", def.Name(), def.GetModel())

	client := guide.NewClient(guide.NewManager(def), cfg.AnalyzeTimeout)
	sessions, err := session.NewStore(cfg.SessionCapacity, client)
	if err != nil {
		log.Fatal(err)
	}

	mux := http.NewServeMux()
	httpserver.Healthz(mux, "ok")
	handle.New(sessions, ingest.New(cfg.MaxImageBytes), client).Register(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpserver.Run(ctx, ":"+cfg.Port, mux); err != nil {
		log.Fatal(err)
	}
}
