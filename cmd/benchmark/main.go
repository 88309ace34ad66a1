package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"ai-planner/internal/config"
	"ai-planner/internal/intent"
	"ai-planner/internal/llm"
)

// Case размеченный пример для проверки классификатора
type Case struct {
	Message string
	Intent  intent.Intent
	Date    string
	Time    string
}

// BenchmarkResult результат одного прогона
type BenchmarkResult struct {
	Model    string
	Case     Case
	Got      intent.Classification
	Duration time.Duration
	Err      error
}

// Опорная дата для всех примеров: среда, 10 января 2024.
var reference = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

var cases = []Case{
	{Message: "Schedule a team meeting tomorrow at 3pm", Intent: intent.Event, Date: "2024-01-11", Time: "15:00"},
	{Message: "Dentist appointment next Monday at 10am", Intent: intent.Event, Date: "2024-01-15", Time: "10:00"},
	{Message: "Dinner with Anna tonight", Intent: intent.Event, Date: "2024-01-10", Time: "20:00"},
	{Message: "Remind me to buy milk by Friday", Intent: intent.Task, Date: "2024-01-12"},
	{Message: "I need to file my taxes", Intent: intent.Task},
	{Message: "Submit the report on 2024-01-20", Intent: intent.Task, Date: "2024-01-20"},
	{Message: "Note: the wifi password is on the fridge", Intent: intent.Note},
	{Message: "Write down that Bob's birthday is in March", Intent: intent.Note},
	{Message: "What is the capital of France?", Intent: intent.Response},
	{Message: "Thanks, that's all for now", Intent: intent.Response},
}

func main() {
	log.Printf("🚀 Starting classification benchmark")

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg := config.New()

	models := []string{cfg.OpenAIModel}
	if raw := os.Getenv("BENCH_MODELS"); raw != "" {
		models = strings.Split(raw, ",")
	}

	factory := llm.NewFactory(cfg)
	ctx := context.Background()

	for _, model := range models {
		model = strings.TrimSpace(model)
		client, err := factory.CreateClient(string(cfg.LLMProvider), model)
		if err != nil {
			log.Printf("❌ Skipping %s: %v", model, err)
			continue
		}
		log.Printf("\n🎯 Testing model: %s (%s)", model, cfg.LLMProvider)
		classifier := intent.NewClassifier(intent.NewLLMOracle(client), cfg.HistoryWindow)
		results := run(ctx, model, classifier, cfg.OracleTimeout)
		printSummaryStats(model, results)
	}
}

// run classifies every case in parallel; results keep the order of cases.
func run(ctx context.Context, model string, c *intent.Classifier, timeout time.Duration) []BenchmarkResult {
	results := make([]BenchmarkResult, len(cases))
	var wg sync.WaitGroup
	for i, tc := range cases {
		wg.Add(1)
		go func(i int, tc Case) {
			defer wg.Done()
			// Разносим старты, чтобы не упереться в rate limit
			time.Sleep(time.Duration(i) * 300 * time.Millisecond)

			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			got, err := c.Classify(reqCtx, nil, tc.Message, reference)
			results[i] = BenchmarkResult{Model: model, Case: tc, Got: got, Duration: time.Since(start), Err: err}
			if err != nil {
				log.Printf("    ❌ %q: %v", tc.Message, err)
				return
			}
			log.Printf("    ✅ %q -> %s %s %s (%v)", tc.Message, got.Intent, got.Date, got.Time, results[i].Duration)
		}(i, tc)
	}
	wg.Wait()
	return results
}

// Score counts intent matches and full matches (intent, date and time).
type Score struct {
	Total, Errors, IntentHits, ExactHits int
	AvgDuration                          time.Duration
}

func score(results []BenchmarkResult) Score {
	var s Score
	var total time.Duration
	for _, r := range results {
		s.Total++
		total += r.Duration
		if r.Err != nil {
			s.Errors++
			continue
		}
		if r.Got.Intent != r.Case.Intent {
			continue
		}
		s.IntentHits++
		if r.Got.Date == r.Case.Date && r.Got.Time == r.Case.Time {
			s.ExactHits++
		}
	}
	if s.Total > 0 {
		s.AvgDuration = total / time.Duration(s.Total)
	}
	return s
}

func printSummaryStats(model string, results []BenchmarkResult) {
	s := score(results)
	if s.Total == 0 {
		log.Printf("  %s: No results", model)
		return
	}
	log.Printf("\n📊 %s Results:", model)
	log.Printf("  Cases: %d", s.Total)
	log.Printf("  Errors: %d", s.Errors)
	log.Printf("  Intent accuracy: %s", percent(s.IntentHits, s.Total))
	log.Printf("  Exact (intent+date+time): %s", percent(s.ExactHits, s.Total))
	log.Printf("  Avg Duration: %v", s.AvgDuration)

	for _, r := range results {
		if r.Err == nil && r.Got.Intent == r.Case.Intent && r.Got.Date == r.Case.Date && r.Got.Time == r.Case.Time {
			continue
		}
		if r.Err != nil {
			log.Printf("  ✗ %q: %v", r.Case.Message, r.Err)
			continue
		}
		log.Printf("  ✗ %q: want %s %s %s, got %s %s %s", r.Case.Message,
			r.Case.Intent, r.Case.Date, r.Case.Time, r.Got.Intent, r.Got.Date, r.Got.Time)
	}
}

func percent(n, total int) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", n, total, 100*float64(n)/float64(total))
}
