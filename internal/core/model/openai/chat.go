package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/core/model/provider"
	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 20 * time.Second

// ChatConfig configures the chat-completion client
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ChatClient calls the OpenAI chat-completions endpoint
type ChatClient struct {
	client openai.Client
	cfg    ChatConfig
}

// NewChatClient creates a chat client. Retries are disabled: the caller
// speaks a fallback line instead of keeping the phone caller waiting.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &ChatClient{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// GetProviderType returns the provider type
func (c *ChatClient) GetProviderType() provider.ProviderType {
	return provider.ProviderTypeOpenAI
}

// Complete sends system prompt, prior turns and the new utterance in order
func (c *ChatClient) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: buildMessages(req),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}
	params.Temperature = openai.Float(c.cfg.Temperature)

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", provider.ErrEmptyCompletion
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", provider.ErrEmptyCompletion
	}

	logger.Info(ctx, "openai reply received",
		zap.String("model", c.cfg.Model),
		zap.Int("history_turns", len(req.History)),
		zap.Duration("latency", time.Since(start)))
	return reply, nil
}

func buildMessages(req provider.ChatRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	for _, turn := range req.History {
		switch turn.Role {
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.UserInput))
	return messages
}
