package call

import (
	"context"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/ClareAI/astra-voice-webhook/pkg/twilio"
	"go.uber.org/zap"
)

// HandleRecordingStatus observes a recording callback and answers with an empty document
func (s *VoiceService) HandleRecordingStatus(ctx context.Context, event domain.RecordingEvent) string {
	logger.Info(ctx, "Recording status update",
		zap.String("call_sid", event.CallSID),
		zap.String("recording_sid", event.RecordingSID),
		zap.String("status", event.RecordingStatus))

	if event.RecordingStatus == domain.RecordingStatusCompleted {
		logger.Info(ctx, "Recording completed",
			zap.String("call_sid", event.CallSID),
			zap.String("recording_url", event.RecordingURL),
			zap.String("duration", event.RecordingDuration))
	}
	return twilio.EmptyResponse
}

// HandleTransferStatus answers the dial action callback with a terminal document
func (s *VoiceService) HandleTransferStatus(ctx context.Context, event domain.TransferEvent) string {
	fields := []zap.Field{
		zap.String("call_sid", event.CallSID),
		zap.String("dial_call_status", event.DialCallStatus),
		zap.String("dial_call_duration", event.DialCallDuration),
		zap.String("recording_url", event.RecordingURL),
	}

	switch event.DialCallStatus {
	case domain.DialStatusCompleted:
		logger.Info(ctx, "Transfer completed", fields...)
	case domain.DialStatusBusy, domain.DialStatusNoAnswer, domain.DialStatusFailed, domain.DialStatusCanceled:
		logger.Warn(ctx, "Transfer failed", fields...)
	default:
		logger.Warn(ctx, "Unexpected transfer status", fields...)
	}

	return Render(s.composer.TransferOutcome(event.DialCallStatus))
}
