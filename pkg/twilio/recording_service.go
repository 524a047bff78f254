package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Recording parameters for a two-party conversation
const (
	RecordingChannelsDual = "dual"
	RecordingTrackBoth    = "both"
)

// ErrRecordingDisabled is returned when no Twilio credentials are configured
var ErrRecordingDisabled = errors.New("twilio recording service is disabled")

// RecordingService starts call recordings through the Twilio REST API
type RecordingService struct {
	client         *twilio.RestClient
	enabled        bool
	statusCallback string
}

// NewRecordingService creates a recording service.
// If accountSID or authToken is empty, the service will be disabled.
func NewRecordingService(accountSID, authToken, statusCallback string) *RecordingService {
	if accountSID == "" || authToken == "" {
		logger.Base().Warn("Twilio credentials not provided, call recording disabled")
		return &RecordingService{enabled: false}
	}

	return &RecordingService{
		client:         twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		enabled:        true,
		statusCallback: statusCallback,
	}
}

// IsEnabled returns whether the service is enabled
func (s *RecordingService) IsEnabled() bool {
	return s.enabled
}

// StartRecording creates a dual-channel recording of both tracks of the call
// and returns the recording SID.
func (s *RecordingService) StartRecording(ctx context.Context, callSID string) (string, error) {
	if !s.enabled {
		return "", ErrRecordingDisabled
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateCallRecordingParams{}
	params.SetRecordingChannels(RecordingChannelsDual)
	params.SetRecordingTrack(RecordingTrackBoth)
	if s.statusCallback != "" {
		params.SetRecordingStatusCallback(s.statusCallback)
	}

	resp, err := s.client.Api.CreateCallRecording(callSID, params)
	if err != nil {
		return "", fmt.Errorf("create recording for %s: %w", callSID, err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Info(ctx, "Recording started", zap.String("call_sid", callSID), zap.String("recording_sid", sid))
	return sid, nil
}
