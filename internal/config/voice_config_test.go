package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoiceSettingsDefaults(t *testing.T) {
	cfg := &VoiceWebhookConfig{}
	assert.Equal(t, VoiceSettings{Voice: DefaultVoice, Language: DefaultLanguage}, cfg.VoiceSettings())

	cfg.Voice = "Polly.Joanna"
	assert.Equal(t, "Polly.Joanna", cfg.VoiceSettings().Voice)
	assert.Equal(t, DefaultLanguage, cfg.VoiceSettings().Language)
}

func TestKnowledgeOrigin(t *testing.T) {
	cfg := &VoiceWebhookConfig{}
	assert.Empty(t, cfg.KnowledgeOrigin())

	cfg.DomainName = "yello-1234.twil.io"
	assert.Equal(t, "https://yello-1234.twil.io", cfg.KnowledgeOrigin())

	cfg.KnowledgeBaseOrigin = "http://127.0.0.1:9000/"
	assert.Equal(t, "http://127.0.0.1:9000", cfg.KnowledgeOrigin())
}

func TestKnowledgeLoadTimeout(t *testing.T) {
	cfg := DefaultVoiceWebhookConfig()
	assert.Equal(t, DefaultTurnTimeout/2, cfg.KnowledgeLoadTimeout())

	cfg.TurnTimeout = 0
	assert.Zero(t, cfg.KnowledgeLoadTimeout())
}

func TestCallbackURL(t *testing.T) {
	cfg := &VoiceWebhookConfig{}
	assert.Equal(t, "/recording-handler", cfg.CallbackURL("/recording-handler"))

	cfg.PublicBaseURL = "https://voice.example.com/"
	assert.Equal(t, "https://voice.example.com/recording-handler", cfg.CallbackURL("/recording-handler"))
}
