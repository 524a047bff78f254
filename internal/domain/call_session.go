package domain

import "time"

// Role identifies who produced a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxStoredTurns caps a call's history at the latest 10 exchanges
const MaxStoredTurns = 20

// Turn is one utterance in a call's conversation
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RecordingState tracks whether dual-channel recording is running for a call
type RecordingState string

const (
	RecordingNotStarted        RecordingState = "not-started"
	RecordingInProgress        RecordingState = "in-progress"
	RecordingSucceeded         RecordingState = "succeeded"
	RecordingPermanentlyFailed RecordingState = "permanently-failed"
)

// Session is the conversation state of a single call
type Session struct {
	CallSID   string         `json:"callSid"`
	Turns     []Turn         `json:"turns"`
	Recording RecordingState `json:"recording"`
	Welcomed  bool           `json:"welcomed"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewSession returns an empty session for callSID
func NewSession(callSID string) *Session {
	return &Session{
		CallSID:   callSID,
		Turns:     []Turn{},
		Recording: RecordingNotStarted,
	}
}

// TrimTurns drops the oldest pairs until at most MaxStoredTurns remain
func TrimTurns(turns []Turn) []Turn {
	if len(turns) <= MaxStoredTurns {
		return turns
	}
	excess := len(turns) - MaxStoredTurns
	if excess%2 != 0 {
		excess++
	}
	return append([]Turn(nil), turns[excess:]...)
}
