package config

import (
	"fmt"
	"strings"
	"time"
)

// VoiceWebhookConfig represents configuration for the voice webhook gateway
type VoiceWebhookConfig struct {
	Port string

	// OpenAI configuration
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIMaxTokens   int
	OpenAITemperature float64

	// Spoken output and listen directives
	Voice            string
	Language         string
	SpeechTimeout    int // seconds the Gather waits for speech to start
	SpeechEndTimeout int // seconds of silence that end an utterance

	// TurnTimeout bounds the knowledge load plus the AI round trip of one speech turn
	TurnTimeout time.Duration

	// Static knowledge origin
	DomainName          string
	KnowledgeBaseOrigin string

	// Twilio call control
	TwilioAccountSID        string
	TwilioAuthToken         string
	PublicBaseURL           string
	ValidateTwilioSignature bool
	RecordOnAnswer          bool

	// Transfer
	TransferNumber        string
	TransferDisplayNumber string
	TransferTimeout       int

	// State
	StateBackend      StateBackend
	SessionTTL        time.Duration
	ResetOnCallSwitch bool
	Redis             RedisConfig

	// Admin API
	SecretKey string
}

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// DefaultVoiceWebhookConfig returns a configuration with every default applied
func DefaultVoiceWebhookConfig() *VoiceWebhookConfig {
	return &VoiceWebhookConfig{
		Port:                  DefaultPort,
		OpenAIBaseURL:         DefaultOpenAIBaseURL,
		OpenAIModel:           DefaultOpenAIModel,
		OpenAIMaxTokens:       DefaultOpenAIMaxTokens,
		OpenAITemperature:     DefaultOpenAITemperature,
		Voice:                 DefaultVoice,
		Language:              DefaultLanguage,
		SpeechTimeout:         DefaultSpeechTimeout,
		SpeechEndTimeout:      DefaultSpeechEndTimeout,
		TurnTimeout:           DefaultTurnTimeout,
		RecordOnAnswer:        true,
		TransferNumber:        DefaultTransferNumber,
		TransferDisplayNumber: DefaultTransferDisplayNumber,
		TransferTimeout:       DefaultTransferTimeout,
		StateBackend:          StateBackendMemory,
		SessionTTL:            DefaultSessionTTL,
		ResetOnCallSwitch:     true,
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
	}
}

// VoiceSettings returns the voice/language pair, falling back to defaults
func (c *VoiceWebhookConfig) VoiceSettings() VoiceSettings {
	vs := DefaultVoiceSettings()
	if c.Voice != "" {
		vs.Voice = c.Voice
	}
	if c.Language != "" {
		vs.Language = c.Language
	}
	return vs
}

// KnowledgeOrigin returns the base URL the static documents are fetched from.
// Empty when neither KNOWLEDGE_BASE_ORIGIN nor DOMAIN_NAME is set.
func (c *VoiceWebhookConfig) KnowledgeOrigin() string {
	if c.KnowledgeBaseOrigin != "" {
		return strings.TrimRight(c.KnowledgeBaseOrigin, "/")
	}
	if c.DomainName == "" {
		return ""
	}
	return fmt.Sprintf("https://%s", strings.TrimRight(c.DomainName, "/"))
}

// KnowledgeLoadTimeout is the share of TurnTimeout granted to the one-time knowledge load
func (c *VoiceWebhookConfig) KnowledgeLoadTimeout() time.Duration {
	if c.TurnTimeout <= 0 {
		return 0
	}
	return c.TurnTimeout / 2
}

// CallbackURL resolves a webhook path against PublicBaseURL.
// Relative paths are returned unchanged when no public base is configured.
func (c *VoiceWebhookConfig) CallbackURL(path string) string {
	if c.PublicBaseURL == "" {
		return path
	}
	return strings.TrimRight(c.PublicBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// HasTwilioCredentials reports whether call-control REST calls can be made
func (c *VoiceWebhookConfig) HasTwilioCredentials() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}
