package call

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ClareAI/astra-voice-webhook/internal/config"
	"github.com/ClareAI/astra-voice-webhook/internal/core/model/provider"
	"github.com/ClareAI/astra-voice-webhook/internal/core/session"
	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/internal/prompts"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/ClareAI/astra-voice-webhook/pkg/twilio"
	"go.uber.org/zap"
)

// VoiceService decides the response to every voice webhook of a call
type VoiceService struct {
	config    *config.VoiceWebhookConfig
	store     session.Store
	knowledge KnowledgeSource
	completer provider.ChatCompleter
	recorder  RecordingStarter
	composer  *Composer

	mutex       sync.Mutex
	lastCallSID string
}

// NewVoiceService creates the turn controller. completer may be nil when no AI
// credential is configured; recorder may be nil to disable recording.
func NewVoiceService(cfg *config.VoiceWebhookConfig, store session.Store, knowledge KnowledgeSource, completer provider.ChatCompleter, recorder RecordingStarter) *VoiceService {
	return &VoiceService{
		config:    cfg,
		store:     store,
		knowledge: knowledge,
		completer: completer,
		recorder:  recorder,
		composer:  NewComposer(cfg),
	}
}

// HandleVoice answers a /voice-handler event. It always returns a TwiML document.
func (s *VoiceService) HandleVoice(ctx context.Context, event domain.VoiceEvent) (doc string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "panic while handling voice event",
				zap.String("call_sid", event.CallSID),
				zap.Any("panic", r))
			doc = Render(s.composer.Message(prompts.ErrorLine))
		}
	}()

	resp, err := s.handleVoice(ctx, event)
	if errors.Is(err, ErrNotConfigured) {
		logger.Error(ctx, "OpenAI API key not configured", zap.String("call_sid", event.CallSID))
		return Render(s.composer.Message(prompts.NotConfiguredLine))
	}
	if err != nil {
		logger.Error(ctx, "failed to handle voice event", zap.String("call_sid", event.CallSID), zap.Error(err))
		return Render(s.composer.Message(prompts.ErrorLine))
	}
	return Render(resp)
}

func (s *VoiceService) handleVoice(ctx context.Context, event domain.VoiceEvent) (*twilio.VoiceResponse, error) {
	if s.completer == nil {
		return nil, ErrNotConfigured
	}

	switched := s.observeCall(event.CallSID)

	kind, err := s.classify(ctx, event)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Processing call",
		zap.String("call_sid", event.CallSID),
		zap.String("call_status", event.CallStatus),
		zap.String("turn", string(kind)))

	switch kind {
	case TurnSpeech:
		return s.speechTurn(ctx, event, switched)
	case TurnInitial:
		return s.initialCall(ctx, event), nil
	default:
		return s.composer.Prompt(prompts.ReEngageLine), nil
	}
}

// classify applies speech > initial > continuation. An event without speech,
// digits or dial status is initial only the first time the call is seen.
func (s *VoiceService) classify(ctx context.Context, event domain.VoiceEvent) (TurnKind, error) {
	if event.HasSpeech() {
		return TurnSpeech, nil
	}
	if event.Digits != "" || event.DialCallStatus != "" {
		return TurnContinuation, nil
	}
	if event.CallSID == "" {
		return TurnInitial, nil
	}

	alreadyWelcomed, err := s.store.MarkWelcomed(ctx, event.CallSID)
	if err != nil {
		return "", fmt.Errorf("failed to mark call welcomed: %w", err)
	}
	if alreadyWelcomed {
		return TurnContinuation, nil
	}
	return TurnInitial, nil
}

// observeCall records callSID as the most recently processed call and reports
// whether it differs from the previous one.
func (s *VoiceService) observeCall(callSID string) bool {
	if callSID == "" {
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	switched := s.lastCallSID != "" && s.lastCallSID != callSID
	s.lastCallSID = callSID
	return switched
}

func (s *VoiceService) speechTurn(ctx context.Context, event domain.VoiceEvent, switched bool) (*twilio.VoiceResponse, error) {
	logger.Info(ctx, "User input received",
		zap.String("call_sid", event.CallSID),
		zap.String("confidence", event.Confidence))
	logger.Debug(ctx, "Recognized speech", zap.String("speech", event.SpeechResult))

	// one deadline covers the knowledge load and the AI round trip; store
	// writes use the request context so the exchange is kept on timeout
	turnCtx, cancel := s.turnContext(ctx)
	defer cancel()

	k := s.knowledge.EnsureLoaded(turnCtx)

	if switched && s.config.ResetOnCallSwitch {
		logger.Info(ctx, "New call observed, starting fresh conversation", zap.String("call_sid", event.CallSID))
		if err := s.store.ResetHistory(ctx, event.CallSID); err != nil {
			return nil, fmt.Errorf("failed to reset conversation: %w", err)
		}
	}

	history, err := s.store.History(ctx, event.CallSID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	reply, err := s.completer.Complete(turnCtx, provider.ChatRequest{
		SystemPrompt: k.SystemInstruction(),
		History:      history,
		UserInput:    event.SpeechResult,
	})
	if err != nil {
		logger.Warn(ctx, "AI backend failed, using fallback reply",
			zap.String("call_sid", event.CallSID),
			zap.String("provider", string(s.completer.GetProviderType())),
			zap.Error(err))
		reply = prompts.AIFallbackReply
	}

	count, err := s.store.AppendExchange(ctx, event.CallSID,
		domain.Turn{Role: domain.RoleUser, Content: event.SpeechResult},
		domain.Turn{Role: domain.RoleAssistant, Content: reply})
	if err != nil {
		return nil, fmt.Errorf("failed to store exchange: %w", err)
	}
	logger.Info(ctx, "AI response generated",
		zap.String("call_sid", event.CallSID),
		zap.Int("exchanges", count/2))

	if strings.Contains(reply, prompts.TransferTriggerPhrase) {
		logger.Info(ctx, "Transfer request detected", zap.String("call_sid", event.CallSID))
		return s.composer.Transfer(), nil
	}
	return s.composer.Reply(reply), nil
}

func (s *VoiceService) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.TurnTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.TurnTimeout)
}

func (s *VoiceService) initialCall(ctx context.Context, event domain.VoiceEvent) *twilio.VoiceResponse {
	logger.Info(ctx, "Initial call, starting welcome sequence", zap.String("call_sid", event.CallSID))

	if s.config.RecordOnAnswer && s.recorder != nil && event.CallSID != "" {
		s.recorder.StartAsync(ctx, event.CallSID)
	}
	return s.composer.Welcome()
}

// StartRecordingAndContinue waits for the first recording attempt, then opens
// the conversation with the initial prompt.
func (s *VoiceService) StartRecordingAndContinue(ctx context.Context, callSID string) (doc string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "panic in delayed recording handler", zap.String("call_sid", callSID), zap.Any("panic", r))
			doc = Render(s.composer.Message(prompts.ErrorLine))
		}
	}()

	if callSID != "" && s.recorder != nil {
		outcome := s.recorder.Start(ctx, callSID)
		logger.Info(ctx, "Recording start attempted",
			zap.String("call_sid", callSID),
			zap.String("outcome", string(outcome)))

		// the caller has heard the welcome on this path
		if _, err := s.store.MarkWelcomed(ctx, callSID); err != nil {
			logger.Warn(ctx, "failed to mark call welcomed", zap.String("call_sid", callSID), zap.Error(err))
		}
	}

	return Render(s.composer.Prompt(prompts.InitialPromptLine))
}
