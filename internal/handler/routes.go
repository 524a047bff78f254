package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/config"
	"github.com/ClareAI/astra-voice-webhook/internal/core/model/openai"
	"github.com/ClareAI/astra-voice-webhook/internal/core/model/provider"
	"github.com/ClareAI/astra-voice-webhook/internal/core/session"
	"github.com/ClareAI/astra-voice-webhook/internal/services/call"
	"github.com/ClareAI/astra-voice-webhook/internal/services/knowledge"
	"github.com/ClareAI/astra-voice-webhook/internal/services/recording"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/ClareAI/astra-voice-webhook/pkg/redis"
	"github.com/ClareAI/astra-voice-webhook/pkg/twilio"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 2 * time.Minute

	// recording attempts settle within seconds; the TTL only guards against crashed pods
	recordingAttemptTTL = 2 * time.Minute

	recordingRateLimit = 5
	recordingRateBurst = 10
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config       *config.VoiceWebhookConfig
	store        session.Store
	memoryStore  *session.MemoryStore
	redisSvc     *redis.RedisService
	service      *call.VoiceService
	orchestrator *recording.Orchestrator
	validator    *twilio.WebhookValidator
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.VoiceWebhookConfig) (*HandlerManager, error) {
	hm := &HandlerManager{config: cfg}

	var tracker recording.Tracker
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis state backend: %w", err)
		}
		hm.redisSvc = redisSvc
		hm.store = session.NewRedisStore(redisSvc, cfg.SessionTTL)
		tracker = recording.NewRedisTracker(redisSvc, recordingAttemptTTL)
		logger.Base().Info("redis state backend initialized",
			zap.String("host", cfg.Redis.Host),
			zap.String("port", cfg.Redis.Port))
	case config.StateBackendMemory, "":
		hm.memoryStore = session.NewMemoryStore()
		hm.store = hm.memoryStore
		tracker = recording.NewMemoryTracker()
		logger.Base().Info("in-memory state backend initialized")
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}

	var completer provider.ChatCompleter
	if cfg.OpenAIAPIKey != "" {
		completer = openai.NewChatClient(openai.ChatConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.OpenAIMaxTokens,
			Temperature: cfg.OpenAITemperature,
			Timeout:     cfg.TurnTimeout,
		})
	} else {
		logger.Base().Warn("OPENAI_API_KEY not set, voice turns will report the AI service as not configured")
	}

	origin := cfg.KnowledgeOrigin()
	if origin == "" {
		logger.Base().Warn("no knowledge origin configured, fallback prompt will be used")
	}
	loader := knowledge.NewLoader(knowledge.NewHTTPFetcher(origin), knowledge.WithLoadTimeout(cfg.KnowledgeLoadTimeout()))

	recordingService := twilio.NewRecordingService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.CallbackURL("/recording-handler"))
	if recordingService.IsEnabled() {
		hm.orchestrator = recording.NewOrchestrator(recordingService,
			recording.WithTracker(tracker),
			recording.WithStateSink(hm.store),
			recording.WithLimiter(rate.NewLimiter(rate.Limit(recordingRateLimit), recordingRateBurst)),
		)
	}

	var recorder call.RecordingStarter
	if hm.orchestrator != nil {
		recorder = hm.orchestrator
	}
	hm.service = call.NewVoiceService(cfg, hm.store, loader, completer, recorder)

	if cfg.ValidateTwilioSignature {
		if cfg.TwilioAuthToken == "" {
			return nil, fmt.Errorf("VALIDATE_TWILIO_SIGNATURE requires TWILIO_AUTH_TOKEN")
		}
		hm.validator = twilio.NewWebhookValidator(cfg.TwilioAuthToken)
	}

	return hm, nil
}

// StartBackgroundRoutines starts the idle-session eviction for the in-memory backend
func (hm *HandlerManager) StartBackgroundRoutines(ctx context.Context) {
	if hm.memoryStore != nil {
		go hm.memoryStore.StartCleanupRoutine(ctx, cleanupInterval, hm.config.SessionTTL)
	}
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(RequestIDMiddleware)
	router.Use(GlobalLoggingMiddleware)

	router.HandleFunc("/healthz", HealthCheck).Methods(http.MethodGet)

	hm.SetupVoiceRoutes(router)
	hm.SetupAPIRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupVoiceRoutes sets up the Twilio webhook routes
func (hm *HandlerManager) SetupVoiceRoutes(router *mux.Router) {
	webhooks := router.NewRoute().Subrouter()
	if hm.validator != nil {
		webhooks.Use(TwilioSignatureMiddleware(hm.validator, hm.config.PublicBaseURL))
		logger.Base().Info("twilio signature validation enabled")
	}

	NewVoiceWebhookHandler(hm.service).SetupVoiceRoutes(webhooks)
	logger.Base().Info("voice webhook routes registered")
}

// SetupAPIRoutes sets up the admin inspection routes
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(CORSMiddleware)
	apiRouter.Use(APIKeyMiddleware(hm.config.SecretKey))

	NewCallHandler(hm.store).SetupCallRoutes(apiRouter)

	if hm.config.SecretKey == "" {
		logger.Base().Info("api routes registered without api key (development mode)")
	} else {
		logger.Base().Info("api routes protected with api key middleware")
	}
}

// Shutdown waits for in-flight recording attempts and releases the Redis client
func (hm *HandlerManager) Shutdown(ctx context.Context) {
	if hm.orchestrator != nil {
		done := make(chan struct{})
		go func() {
			hm.orchestrator.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Base().Warn("shutdown before recording attempts finished")
		}
	}
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("failed to close redis client", zap.Error(err))
		}
	}
}
