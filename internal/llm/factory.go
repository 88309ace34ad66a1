package llm

import (
	"fmt"
	"strings"

	"ai-planner/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenaiTemperature  float32
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenaiTemperature:  cfg.OpenAITemperature,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
	}
}

// CreateClient builds a client for the provider. Classification replies are
// strict JSON, so the OpenAI client always runs in JSON mode.
func (f *Factory) CreateClient(provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:      f.OpenaiAPIKey,
			BaseURL:     f.OpenaiBaseURL,
			Model:       model,
			Temperature: f.OpenaiTemperature,
			JSONMode:    true,
			Referrer:    f.OpenRouterReferrer,
			Title:       f.OpenRouterTitle,
		}), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
