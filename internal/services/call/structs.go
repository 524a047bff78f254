package call

import (
	"context"
	"errors"

	"github.com/ClareAI/astra-voice-webhook/internal/services/knowledge"
	"github.com/ClareAI/astra-voice-webhook/internal/services/recording"
)

// ErrNotConfigured is reported when no AI credential is configured
var ErrNotConfigured = errors.New("ai service not configured")

// TurnKind is the classification of a /voice-handler event
type TurnKind string

const (
	TurnSpeech       TurnKind = "speech"
	TurnInitial      TurnKind = "initial"
	TurnContinuation TurnKind = "continuation"
)

// KnowledgeSource provides the cached prompt material
type KnowledgeSource interface {
	EnsureLoaded(ctx context.Context) *knowledge.Knowledge
}

// RecordingStarter starts call recordings
type RecordingStarter interface {
	Start(ctx context.Context, callSID string) recording.Outcome
	StartAsync(ctx context.Context, callSID string)
}
