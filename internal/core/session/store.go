// Package session owns per-call conversation state: the ordered turn history,
// the welcome flag, and the recording state of every call the service has seen.
package session

import (
	"context"
	"errors"

	"github.com/ClareAI/astra-voice-webhook/internal/domain"
)

// ErrEmptyCallSID is returned for operations without a call identifier
var ErrEmptyCallSID = errors.New("call sid is required")

// Store is the conversation store keyed by call SID.
// Every mutating method is atomic per call SID.
type Store interface {
	// Session returns a snapshot of the call's session; unknown calls yield a fresh session.
	Session(ctx context.Context, callSID string) (*domain.Session, error)
	// History returns the stored turns in order.
	History(ctx context.Context, callSID string) ([]domain.Turn, error)
	// AppendExchange appends a user/assistant pair, evicting the oldest pairs beyond
	// domain.MaxStoredTurns, and returns the resulting turn count.
	AppendExchange(ctx context.Context, callSID string, user, assistant domain.Turn) (int, error)
	// ResetHistory discards the call's turns; the welcome flag and recording state survive.
	ResetHistory(ctx context.Context, callSID string) error
	// MarkWelcomed sets the welcome flag and reports whether it was already set.
	MarkWelcomed(ctx context.Context, callSID string) (bool, error)
	// SetRecordingState records the latest recording outcome for the call.
	SetRecordingState(ctx context.Context, callSID string, state domain.RecordingState) error
}
