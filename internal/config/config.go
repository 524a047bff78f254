package config

import "time"

// StateBackend selects where call sessions and recording attempts live
type StateBackend string

const (
	StateBackendMemory StateBackend = "memory"
	StateBackendRedis  StateBackend = "redis"
)

// Defaults for the voice webhook configuration
const (
	DefaultPort                  = "3000"
	DefaultOpenAIModel           = "gpt-3.5-turbo"
	DefaultOpenAIBaseURL         = "https://api.openai.com/v1"
	DefaultOpenAIMaxTokens       = 150
	DefaultOpenAITemperature     = 0.3
	DefaultVoice                 = "Google.en-AU-Neural2-C"
	DefaultLanguage              = "en-AU"
	DefaultSpeechTimeout         = 60
	DefaultSpeechEndTimeout      = 1
	DefaultTransferNumber        = "+18655516860"
	DefaultTransferDisplayNumber = "865-551-6860"
	DefaultTransferTimeout       = 30
	DefaultSessionTTL            = 1 * time.Hour

	// stays below Twilio's 15s webhook timeout
	DefaultTurnTimeout = 10 * time.Second
)

// VoiceSettings is the voice/language pair applied to every spoken line
type VoiceSettings struct {
	Voice    string
	Language string
}

// DefaultVoiceSettings returns the voice used when nothing is configured
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Voice: DefaultVoice, Language: DefaultLanguage}
}
