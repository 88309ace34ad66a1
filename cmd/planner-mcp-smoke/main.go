package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ai-planner/internal/mcpclient"
)

func main() {
	_ = godotenv.Load(".env")

	fmt.Println("🧪 Planner MCP smoke test")
	fmt.Println("=========================")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := mcpclient.New()
	if err := client.Connect(ctx, mcpclient.ServerPath()); err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		fmt.Println("💡 Build the server first: go build -o planner-mcp-server ./cmd/planner-mcp-server")
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	session := "smoke:" + uuid.NewString()
	now := time.Now().Format(time.RFC3339)
	messages := []string{
		"Schedule a team meeting tomorrow at 3pm",
		"Remind me to buy milk by Friday",
		"Note: the wifi password is on the fridge",
		"What is the capital of France?",
	}

	failed := false
	for _, msg := range messages {
		fmt.Printf("\n💬 %s\n", msg)
		res, err := client.HandleTurn(ctx, session, msg, now)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("✅ [%s] %s\n", res.Intent, res.DisplayText)
		for _, w := range res.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
	}

	hist, err := client.History(ctx, session, 0)
	if err != nil {
		fmt.Printf("❌ History failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n📜 History has %d turns\n", len(hist))

	if tasks, err := client.Tasks(ctx, session); err == nil {
		fmt.Printf("\n%s\n", tasks)
	}

	if failed || len(hist) != 2*len(messages) {
		fmt.Println("\n❌ Smoke test failed")
		os.Exit(1)
	}
	fmt.Println("\n🎉 Smoke test passed")
}
