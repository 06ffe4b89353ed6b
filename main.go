package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/talisman-ep/autoria-monitoring-bot/bot"
	"github.com/talisman-ep/autoria-monitoring-bot/config"
	"github.com/talisman-ep/autoria-monitoring-bot/httputil"
	"github.com/talisman-ep/autoria-monitoring-bot/logging"
	"github.com/talisman-ep/autoria-monitoring-bot/scheduler"
	"github.com/talisman-ep/autoria-monitoring-bot/scraper"
	"github.com/talisman-ep/autoria-monitoring-bot/storage"
	"github.com/talisman-ep/autoria-monitoring-bot/telegram"
)

var (
	pollNow = flag.Bool("poll", false, "Run one poll cycle and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting autoria-monitoring-bot...")

	clients := httputil.NewClients(cfg.ProxyURL)
	if cfg.ProxyURL != "" {
		log.Printf("Proxy: %s", cfg.ProxyURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage ready (%s)", cfg.DB.Driver)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}
	log.Printf("Authorized as @%s", api.Self.UserName)

	market := scraper.NewClient(cfg.Marketplace, clients)
	notifier := telegram.NewNotifier(api)
	poller := scheduler.New(cfg.Poller, store, market, notifier)

	if *pollNow {
		log.Println("Running one poll cycle...")
		poller.TriggerNow(ctx)
		log.Println("Poll cycle complete!")
		return
	}

	if err := poller.Start(ctx); err != nil {
		log.Fatalf("Failed to start poller: %v", err)
	}

	frontend := bot.New(api, store, market)
	go frontend.Run(ctx)

	log.Println("Bot running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	poller.Stop()
	log.Println("Goodbye!")
}
