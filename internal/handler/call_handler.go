package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ClareAI/astra-voice-webhook/internal/core/session"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallHandler exposes stored call sessions for inspection
type CallHandler struct {
	store session.Store
}

// NewCallHandler creates a new call handler
func NewCallHandler(store session.Store) *CallHandler {
	return &CallHandler{store: store}
}

// SetupCallRoutes registers the admin call routes on an /api subrouter
func (h *CallHandler) SetupCallRoutes(router *mux.Router) {
	router.HandleFunc("/calls/{callSid}/conversation", h.GetConversation).Methods(http.MethodGet, http.MethodOptions)
}

// GetConversation returns the stored session snapshot of a call
func (h *CallHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	callSID := mux.Vars(r)["callSid"]

	snapshot, err := h.store.Session(r.Context(), callSID)
	if err != nil {
		logger.Error(r.Context(), "failed to load call session", zap.String("call_sid", callSID), zap.Error(err))
		http.Error(w, "failed to load call session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// HealthCheck handles GET /healthz
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
