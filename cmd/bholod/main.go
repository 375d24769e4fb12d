// Command bholod runs the BHOLO feed and trending service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/bholo-app/bholo/internal/api"
	"github.com/bholo-app/bholo/internal/brain"
	"github.com/bholo-app/bholo/internal/config"
	"github.com/bholo-app/bholo/internal/coord"
	"github.com/bholo-app/bholo/internal/feed"
	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/media"
	"github.com/bholo-app/bholo/internal/store"
	"github.com/bholo-app/bholo/internal/trends"
)

func main() {
	godotenv.Load()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "logging init: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		logging.Fatal("Store open failed", "path", cfg.Server.DBPath, "error", err)
	}
	defer st.Close()

	// Object storage is optional; without it media stays in pending state.
	var uploader feed.Uploader
	if up, err := media.New(ctx, cfg.Storage); err != nil {
		logging.Warn("Object storage unavailable, media uploads disabled", "error", err)
	} else {
		uploader = up
	}

	viewer := cfg.Server.ViewerID
	if viewer == "" {
		viewer = uuid.NewString()
		logging.Info("No viewer configured, generated session identity", "viewer", viewer)
	}

	f := feed.New(st, uploader, viewer, cfg.Feed.PageSize)
	f.FetchPage(ctx) // warm the first page and the prefetch buffer

	watcher := feed.NewWatcher(f, viewer, cfg.Feed.RecencyWindow())
	notifications, cancelSub := st.Subscribe()
	defer cancelSub()
	go watcher.Run(ctx, notifications)

	manager := brain.NewManager()
	if cfg.Models.OpenAI.Enabled {
		manager.Add(brain.NewOpenAIProvider(cfg.Models.OpenAI.APIKey, cfg.Models.OpenAI.Model))
	}
	if cfg.Models.Ollama.Enabled {
		manager.Add(brain.NewOllamaProvider(cfg.Models.Ollama.Endpoint, cfg.Models.Ollama.Model))
	}
	if cfg.Models.Ollama.Enabled && cfg.Models.Ollama.Priority < cfg.Models.OpenAI.Priority {
		manager.SetPreferred("ollama")
	}
	logging.Info("Generative providers", "available", manager.ListAvailable())
	provider := manager.Pick()
	if provider == nil {
		logging.Warn("No generative provider available; trending stays empty")
	} else {
		logging.Info("Generative provider selected", "provider", provider.Name())
	}

	aggregator := trends.NewAggregator(st, cfg.Trending.Window(), cfg.Trending.Floor, cfg.Trending.TopN)
	synthesizer := trends.NewSynthesizer(provider, cfg.Trending.SynthesisPerMinute)
	coordinator := coord.New(st, aggregator, synthesizer, time.Duration(cfg.Trending.RefreshMinutes)*time.Minute)
	coordinator.Start(ctx)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.New(f, watcher, coordinator, st).Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("HTTP listening", "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Fatal("HTTP server failed", "error", err)
	}

	coordinator.Wait()
	f.Wait()
}
