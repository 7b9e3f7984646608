package platform

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	LLMClient *openai.Client
)

func InitLLMClient(cfg *Config) {
	client := openai.NewClient(
		option.WithBaseURL(cfg.LLMBaseURL),
		option.WithAPIKey(cfg.LLMAPIKey),
	)
	LLMClient = &client
}
