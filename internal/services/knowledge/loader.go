package knowledge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/prompts"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"go.uber.org/zap"
)

const defaultLoadTimeout = 15 * time.Second

// Knowledge is the immutable prompt material shared by every call
type Knowledge struct {
	SystemPrompt      string
	Document          *Document
	PromptFallback    bool
	KnowledgeFallback bool

	instruction string
}

// SystemInstruction is the prompt plus the serialized knowledge base
func (k *Knowledge) SystemInstruction() string {
	return k.instruction
}

// Loader loads the static knowledge at most once per process, successful or not
type Loader struct {
	fetcher Fetcher
	timeout time.Duration

	once      sync.Once
	loaded    atomic.Bool
	knowledge *Knowledge
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLoadTimeout bounds the whole one-time load, both documents included
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLoader creates a loader around fetcher
func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher: fetcher,
		timeout: defaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureLoaded triggers the one and only load and returns the cached knowledge.
// Concurrent callers wait for the first load to finish.
func (l *Loader) EnsureLoaded(ctx context.Context) *Knowledge {
	l.once.Do(func() {
		l.knowledge = l.load(ctx)
		l.loaded.Store(true)
	})
	return l.knowledge
}

// Loaded reports whether the single load has completed
func (l *Loader) Loaded() bool {
	return l.loaded.Load()
}

func (l *Loader) load(ctx context.Context) *Knowledge {
	// Detach from the triggering request so its cancellation cannot poison the cache.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	k := &Knowledge{}

	prompt, err := l.fetcher.FetchSystemPrompt(loadCtx)
	if err != nil || prompt == "" {
		logger.Warn(ctx, "system prompt unavailable, using fallback", zap.Error(err))
		prompt = prompts.FallbackSystemPrompt
		k.PromptFallback = true
	} else {
		logger.Info(ctx, "system prompt loaded", zap.Int("bytes", len(prompt)))
	}
	k.SystemPrompt = prompt

	doc, err := l.fetcher.FetchKnowledgeBase(loadCtx)
	if err != nil || doc == nil {
		logger.Warn(ctx, "knowledge base unavailable, using fallback", zap.Error(err))
		doc = &Document{}
		k.KnowledgeFallback = true
	} else {
		logger.Info(ctx, "knowledge base loaded", zap.Int("items", doc.Items()))
	}
	k.Document = doc

	serialized, err := doc.Serialize()
	if err != nil {
		logger.Error(ctx, "failed to serialize knowledge base", zap.Error(err))
		serialized = "{}"
	}
	k.instruction = prompts.BuildSystemInstruction(k.SystemPrompt, serialized)

	return k
}
