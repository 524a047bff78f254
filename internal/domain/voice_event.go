package domain

import "strings"

// VoiceEvent is the subset of a /voice-handler webhook the turn controller consumes
type VoiceEvent struct {
	CallSID        string
	CallStatus     string
	SpeechResult   string
	Confidence     string
	Digits         string
	DialCallStatus string
}

// HasSpeech reports whether recognized speech was delivered with this event
func (e VoiceEvent) HasSpeech() bool {
	return strings.TrimSpace(e.SpeechResult) != ""
}

// RecordingEvent is a recording status callback
type RecordingEvent struct {
	RecordingSID      string
	RecordingStatus   string
	CallSID           string
	RecordingDuration string
	RecordingURL      string
}

// TransferEvent is the Dial action callback fired once a bridge attempt ends
type TransferEvent struct {
	CallSID          string
	DialCallStatus   string
	DialCallDuration string
	RecordingURL     string
}

// Dial outcome statuses reported in DialCallStatus
const (
	DialStatusCompleted = "completed"
	DialStatusBusy      = "busy"
	DialStatusNoAnswer  = "no-answer"
	DialStatusFailed    = "failed"
	DialStatusCanceled  = "canceled"
)

// RecordingStatusCompleted is the terminal recording callback status
const RecordingStatusCompleted = "completed"
