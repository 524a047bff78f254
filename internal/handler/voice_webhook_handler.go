package handler

import (
	"net/http"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/internal/services/call"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// VoiceWebhookHandler serves the Twilio voice webhooks. Every endpoint answers
// 200 with a TwiML document so the platform never retries or drops the call.
type VoiceWebhookHandler struct {
	service *call.VoiceService
}

// NewVoiceWebhookHandler creates a new voice webhook handler
func NewVoiceWebhookHandler(service *call.VoiceService) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{service: service}
}

// SetupVoiceRoutes registers the webhook endpoints on router
func (h *VoiceWebhookHandler) SetupVoiceRoutes(router *mux.Router) {
	router.HandleFunc("/voice-handler", h.HandleVoice).Methods(http.MethodPost)
	router.HandleFunc("/recording-handler", h.HandleRecording).Methods(http.MethodPost)
	router.HandleFunc("/transfer-status", h.HandleTransferStatus).Methods(http.MethodPost)
	router.HandleFunc("/start-recording-and-continue", h.HandleStartRecordingAndContinue).Methods(http.MethodPost)
}

// HandleVoice handles POST /voice-handler
func (h *VoiceWebhookHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	event := domain.VoiceEvent{
		CallSID:        r.PostFormValue("CallSid"),
		CallStatus:     r.PostFormValue("CallStatus"),
		SpeechResult:   r.PostFormValue("SpeechResult"),
		Confidence:     r.PostFormValue("Confidence"),
		Digits:         r.PostFormValue("Digits"),
		DialCallStatus: r.PostFormValue("DialCallStatus"),
	}
	writeTwiML(w, h.service.HandleVoice(r.Context(), event))
}

// HandleRecording handles POST /recording-handler
func (h *VoiceWebhookHandler) HandleRecording(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	event := domain.RecordingEvent{
		RecordingSID:      r.PostFormValue("RecordingSid"),
		RecordingStatus:   r.PostFormValue("RecordingStatus"),
		CallSID:           r.PostFormValue("CallSid"),
		RecordingDuration: r.PostFormValue("RecordingDuration"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
	}
	writeTwiML(w, h.service.HandleRecordingStatus(r.Context(), event))
}

// HandleTransferStatus handles POST /transfer-status
func (h *VoiceWebhookHandler) HandleTransferStatus(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	event := domain.TransferEvent{
		CallSID:          r.PostFormValue("CallSid"),
		DialCallStatus:   r.PostFormValue("DialCallStatus"),
		DialCallDuration: r.PostFormValue("DialCallDuration"),
		RecordingURL:     r.PostFormValue("RecordingUrl"),
	}
	writeTwiML(w, h.service.HandleTransferStatus(r.Context(), event))
}

// HandleStartRecordingAndContinue handles POST /start-recording-and-continue
func (h *VoiceWebhookHandler) HandleStartRecordingAndContinue(w http.ResponseWriter, r *http.Request) {
	parseForm(r)
	writeTwiML(w, h.service.StartRecordingAndContinue(r.Context(), r.PostFormValue("CallSid")))
}

// parseForm logs malformed bodies and lets the handler continue with empty fields
func parseForm(r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Warn(r.Context(), "failed to parse webhook form", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
