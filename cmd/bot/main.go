package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-planner/internal/assistant"
	"ai-planner/internal/calendar"
	"ai-planner/internal/config"
	"ai-planner/internal/intent"
	"ai-planner/internal/llm"
	"ai-planner/internal/scheduler"
	"ai-planner/internal/storage"
	"ai-planner/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, string(cfg.StorageBackend), cfg.StorageFilePath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close storage: %v", err)
		}
	}()

	llmClient, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	opts := assistant.Options{
		HistoryWindow: cfg.HistoryWindow,
		OracleTimeout: cfg.OracleTimeout,
		CacheSize:     cfg.ClassifyCacheSize,
	}
	if cfg.CalendarEnabled() {
		exp, err := calendar.NewGoogleExporter(ctx, calendar.Options{
			CredentialsPath: cfg.CalendarCredentialsPath,
			TokenPath:       cfg.CalendarTokenPath,
			RefreshToken:    cfg.CalendarRefreshToken,
			CalendarID:      cfg.CalendarID,
			Location:        loc,
		})
		if err != nil {
			log.Printf("calendar export disabled: %v", err)
		} else {
			opts.Exporter = exp
		}
	}

	svc, err := assistant.New(intent.NewLLMOracle(llmClient), store, opts)
	if err != nil {
		log.Fatalf("failed to create assistant: %v", err)
	}

	bot, err := telegram.New(cfg.TelegramBotToken, svc, loc)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	sched := scheduler.New(loc)
	if err := sched.AddJob(cfg.DigestCron, "daily digest", func(ctx context.Context) error {
		day := time.Now().In(loc).Format("2006-01-02")
		sent, err := svc.SendDigest(ctx, day, bot)
		log.Printf("📬 Digest for %s sent to %d chat(s)", day, sent)
		return err
	}); err != nil {
		log.Fatalf("invalid DIGEST_CRON %q: %v", cfg.DigestCron, err)
	}
	sched.Start()
	defer sched.Stop()
	if sched.IsRunning() {
		log.Printf("📬 Next digest at %s", sched.Next().Format(time.RFC3339))
	}

	log.Printf("🚀 Planner bot started (storage=%s, provider=%s, tz=%s)", cfg.StorageBackend, cfg.LLMProvider, loc)
	bot.Start(ctx)
}
