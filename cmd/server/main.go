package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/config"
	"github.com/ClareAI/astra-voice-webhook/internal/handler"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server represents the voice webhook server
type Server struct {
	config         *config.VoiceWebhookConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
	httpServer     *http.Server
}

// NewServer creates a new voice webhook server
func NewServer(cfg *config.VoiceWebhookConfig) (*Server, error) {
	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		log.Printf("failed to initialize zap logger, falling back to std log: %v", err)
	}

	router := mux.NewRouter()

	// Initialize handler manager - it will create all services internally
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handler manager: %w", err)
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}, nil
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // covers the AI round trip
		IdleTimeout:  60 * time.Second,
	}

	s.handlerManager.StartBackgroundRoutines(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Base().Info("Shutting down server")
	err := s.httpServer.Shutdown(shutdownCtx)
	s.handlerManager.Shutdown(shutdownCtx)
	return err
}

// LoadConfigFromEnv loads the voice webhook configuration from environment
func LoadConfigFromEnv() *config.VoiceWebhookConfig {
	return &config.VoiceWebhookConfig{
		Port: getEnvOrDefault("PORT", config.DefaultPort),

		// OpenAI configuration
		OpenAIAPIKey:      getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnvOrDefault("OPENAI_BASE_URL", config.DefaultOpenAIBaseURL),
		OpenAIModel:       getEnvOrDefault("OPENAI_MODEL", config.DefaultOpenAIModel),
		OpenAIMaxTokens:   getEnvAsIntOrDefault("OPENAI_MAX_TOKENS", config.DefaultOpenAIMaxTokens),
		OpenAITemperature: getEnvAsFloatOrDefault("OPENAI_TEMPERATURE", config.DefaultOpenAITemperature),

		// Spoken output and listen directives
		Voice:            getEnvOrDefault("VOICE", config.DefaultVoice),
		Language:         getEnvOrDefault("LANGUAGE", config.DefaultLanguage),
		SpeechTimeout:    getEnvAsIntOrDefault("SPEECH_TIMEOUT", config.DefaultSpeechTimeout),
		SpeechEndTimeout: getEnvAsIntOrDefault("SPEECH_END_TIMEOUT", config.DefaultSpeechEndTimeout),
		TurnTimeout:      getEnvAsDurationOrDefault("TURN_TIMEOUT", config.DefaultTurnTimeout),

		// Static knowledge
		DomainName:          getEnvOrDefault("DOMAIN_NAME", ""),
		KnowledgeBaseOrigin: getEnvOrDefault("KNOWLEDGE_BASE_ORIGIN", ""),

		// Twilio
		TwilioAccountSID:        getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		PublicBaseURL:           getEnvOrDefault("PUBLIC_BASE_URL", ""),
		ValidateTwilioSignature: getEnvAsBoolOrDefault("VALIDATE_TWILIO_SIGNATURE", false),
		RecordOnAnswer:          getEnvAsBoolOrDefault("RECORD_ON_ANSWER", true),

		// Transfer
		TransferNumber:        getEnvOrDefault("TRANSFER_NUMBER", config.DefaultTransferNumber),
		TransferDisplayNumber: getEnvOrDefault("TRANSFER_DISPLAY_NUMBER", config.DefaultTransferDisplayNumber),
		TransferTimeout:       getEnvAsIntOrDefault("TRANSFER_TIMEOUT", config.DefaultTransferTimeout),

		// State
		StateBackend:      config.StateBackend(getEnvOrDefault("STATE_BACKEND", string(config.StateBackendMemory))),
		SessionTTL:        getEnvAsDurationOrDefault("SESSION_TTL", config.DefaultSessionTTL),
		ResetOnCallSwitch: getEnvAsBoolOrDefault("RESET_ON_CALL_SWITCH", true),
		Redis: config.RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
		},

		SecretKey: getEnvOrDefault("SECRET_KEY", ""),
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault gets environment variable as time.Duration or returns default
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables already set.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := LoadConfigFromEnv()

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer logger.Sync()

	logger.Base().Info("Server initialized successfully",
		zap.String("port", cfg.Port),
		zap.String("state_backend", string(cfg.StateBackend)),
		zap.Bool("ai_configured", cfg.OpenAIAPIKey != ""),
		zap.Bool("recording_enabled", cfg.HasTwilioCredentials()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Base().Fatal("Server failed", zap.Error(err))
	}
}
