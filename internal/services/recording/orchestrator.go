package recording

import (
	"context"
	"sync"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/pkg/logger"
	"github.com/ClareAI/astra-voice-webhook/pkg/twilio"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second

	// bounds the whole background retry sequence of one call
	retryBudget = 30 * time.Second
)

// Outcome is the result of the attempt a caller waited for
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"   // another start is in progress for the call
	OutcomeStarted   Outcome = "started"   // recording created
	OutcomeRetrying  Outcome = "retrying"  // transient failure, retries continue in background
	OutcomeFailed    Outcome = "failed"    // permanent failure, no retries
	OutcomeExhausted Outcome = "exhausted" // attempt budget used up
)

// Starter creates a recording for a call
type Starter interface {
	StartRecording(ctx context.Context, callSID string) (string, error)
}

// StateSink receives the recording state of a call
type StateSink interface {
	SetRecordingState(ctx context.Context, callSID string, state domain.RecordingState) error
}

// Orchestrator starts recordings with bounded retries and per-call deduplication
type Orchestrator struct {
	starter     Starter
	tracker     Tracker
	sink        StateSink
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	isPermanent func(err error) bool

	wg sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTracker replaces the in-memory tracker
func WithTracker(tracker Tracker) Option {
	return func(o *Orchestrator) { o.tracker = tracker }
}

// WithStateSink reports recording state changes, usually to the session store
func WithStateSink(sink StateSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithLimiter throttles calls to the recording API
func WithLimiter(limiter *rate.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = limiter }
}

// WithMaxAttempts sets the attempt budget
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay before the second attempt; it doubles afterwards
func WithBaseDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.baseDelay = d }
}

// WithSleep replaces the backoff sleep
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClassifier replaces the permanent-failure classifier
func WithClassifier(isPermanent func(err error) bool) Option {
	return func(o *Orchestrator) { o.isPermanent = isPermanent }
}

// NewOrchestrator creates an orchestrator around starter
func NewOrchestrator(starter Starter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		starter:     starter,
		tracker:     NewMemoryTracker(),
		limiter:     rate.NewLimiter(rate.Limit(10), 10),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		isPermanent: twilio.IsPermanentRecordingError,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the first attempt synchronously and continues any retries in the
// background. It never returns an error: failures are logged and tracked.
func (o *Orchestrator) Start(ctx context.Context, callSID string) Outcome {
	if callSID == "" {
		return OutcomeSkipped
	}

	acquired, err := o.tracker.Acquire(ctx, callSID)
	if err != nil {
		logger.Warn(ctx, "recording tracker unavailable, skipping recording", zap.String("call_sid", callSID), zap.Error(err))
		return OutcomeSkipped
	}
	if !acquired {
		logger.Debug(ctx, "recording start already in progress", zap.String("call_sid", callSID))
		return OutcomeSkipped
	}

	o.setState(ctx, callSID, domain.RecordingInProgress)

	outcome := o.attempt(ctx, callSID, 1)
	if outcome == OutcomeRetrying {
		bgCtx := context.WithoutCancel(ctx)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.retry(bgCtx, callSID)
		}()
	}
	return outcome
}

// StartAsync runs Start entirely in the background
func (o *Orchestrator) StartAsync(ctx context.Context, callSID string) {
	bgCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Start(bgCtx, callSID)
	}()
}

// Wait blocks until every background attempt has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) retry(ctx context.Context, callSID string) {
	ctx, cancel := context.WithTimeout(ctx, retryBudget)
	defer cancel()

	for n := 2; n <= o.maxAttempts; n++ {
		delay := o.baseDelay << (n - 2)
		if err := o.sleep(ctx, delay); err != nil {
			logger.Warn(ctx, "recording retry aborted", zap.String("call_sid", callSID), zap.Error(err))
			o.finish(ctx, callSID, domain.RecordingNotStarted)
			return
		}
		if outcome := o.attempt(ctx, callSID, n); outcome != OutcomeRetrying {
			return
		}
	}
}

// attempt performs attempt n and settles the tracking record unless a retry follows
func (o *Orchestrator) attempt(ctx context.Context, callSID string, n int) Outcome {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			logger.Warn(ctx, "recording rate limiter aborted", zap.String("call_sid", callSID), zap.Error(err))
			o.finish(ctx, callSID, domain.RecordingNotStarted)
			return OutcomeExhausted
		}
	}

	recordingSID, err := o.starter.StartRecording(ctx, callSID)
	if err == nil {
		logger.Info(ctx, "recording started",
			zap.String("call_sid", callSID),
			zap.String("recording_sid", recordingSID),
			zap.Int("attempt", n))
		o.finish(ctx, callSID, domain.RecordingSucceeded)
		return OutcomeStarted
	}

	if o.isPermanent(err) {
		logger.Info(ctx, "recording not available for call, giving up",
			zap.String("call_sid", callSID),
			zap.Int("attempt", n),
			zap.Error(err))
		o.finish(ctx, callSID, domain.RecordingPermanentlyFailed)
		return OutcomeFailed
	}

	if n >= o.maxAttempts {
		logger.Warn(ctx, "recording attempts exhausted, continuing without recording",
			zap.String("call_sid", callSID),
			zap.Int("attempts", n),
			zap.Error(err))
		o.finish(ctx, callSID, domain.RecordingPermanentlyFailed)
		return OutcomeExhausted
	}

	logger.Warn(ctx, "recording attempt failed, will retry",
		zap.String("call_sid", callSID),
		zap.Int("attempt", n),
		zap.Error(err))
	if uerr := o.tracker.Update(ctx, Attempt{CallSID: callSID, Count: n, LastError: ErrorClassTransient}); uerr != nil {
		logger.Warn(ctx, "failed to update recording attempt", zap.String("call_sid", callSID), zap.Error(uerr))
	}
	return OutcomeRetrying
}

func (o *Orchestrator) finish(ctx context.Context, callSID string, state domain.RecordingState) {
	if err := o.tracker.Release(context.WithoutCancel(ctx), callSID); err != nil {
		logger.Warn(ctx, "failed to release recording attempt", zap.String("call_sid", callSID), zap.Error(err))
	}
	o.setState(ctx, callSID, state)
}

func (o *Orchestrator) setState(ctx context.Context, callSID string, state domain.RecordingState) {
	if o.sink == nil {
		return
	}
	if err := o.sink.SetRecordingState(context.WithoutCancel(ctx), callSID, state); err != nil {
		logger.Warn(ctx, "failed to store recording state", zap.String("call_sid", callSID), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
