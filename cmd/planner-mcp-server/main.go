package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ai-planner/internal/assistant"
	"ai-planner/internal/config"
	"ai-planner/internal/intent"
	"ai-planner/internal/llm"
	"ai-planner/internal/mcpserver"
	"ai-planner/internal/storage"
)

const version = "1.0.0"

func main() {
	// stdout is the MCP channel, all logging goes to stderr
	log.SetOutput(os.Stderr)

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, string(cfg.StorageBackend), cfg.StorageFilePath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close storage: %v", err)
		}
	}()

	llmClient, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("❌ Failed to create llm client: %v", err)
	}

	svc, err := assistant.New(intent.NewLLMOracle(llmClient), store, assistant.Options{
		HistoryWindow: cfg.HistoryWindow,
		OracleTimeout: cfg.OracleTimeout,
		CacheSize:     cfg.ClassifyCacheSize,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create assistant: %v", err)
	}

	server := mcpserver.NewServer(mcpserver.NewPlannerServer(svc, loc), version)

	log.Printf("🚀 Starting planner MCP server on stdin/stdout (storage=%s, tz=%s)", cfg.StorageBackend, loc)
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		log.Fatalf("❌ Planner MCP server failed: %v", err)
	}
}
