package twilio

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// EmptyResponse is a well-formed document with no verbs
const EmptyResponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// SayOptions carries the voice attributes applied to a <Say>
type SayOptions struct {
	Voice    string
	Language string
}

// GatherOptions configures a speech <Gather>
type GatherOptions struct {
	Input         string
	Timeout       int
	SpeechTimeout int
	Action        string
	Method        string
}

// DialOptions configures a <Dial> bridge
type DialOptions struct {
	Timeout int
	Record  string
	Action  string
	Method  string
}

// VoiceResponse accumulates TwiML verbs in order
type VoiceResponse struct {
	verbs []twiml.Element
}

// NewVoiceResponse creates an empty response document
func NewVoiceResponse() *VoiceResponse {
	return &VoiceResponse{verbs: make([]twiml.Element, 0, 4)}
}

// NewSay builds a <Say> verb, usable standalone or nested in a <Gather>
func NewSay(text string, opts SayOptions) *twiml.VoiceSay {
	return &twiml.VoiceSay{
		Message:  text,
		Voice:    opts.Voice,
		Language: opts.Language,
	}
}

// Say appends a spoken line
func (r *VoiceResponse) Say(text string, opts SayOptions) *VoiceResponse {
	r.verbs = append(r.verbs, NewSay(text, opts))
	return r
}

// Pause appends a silence of the given seconds
func (r *VoiceResponse) Pause(seconds int) *VoiceResponse {
	r.verbs = append(r.verbs, &twiml.VoicePause{Length: strconv.Itoa(seconds)})
	return r
}

// Gather appends a listen directive with optional nested prompts
func (r *VoiceResponse) Gather(opts GatherOptions, nested ...twiml.Element) *VoiceResponse {
	gather := &twiml.VoiceGather{
		Input:         opts.Input,
		Action:        opts.Action,
		Method:        opts.Method,
		InnerElements: nested,
	}
	if opts.Timeout > 0 {
		gather.Timeout = strconv.Itoa(opts.Timeout)
	}
	if opts.SpeechTimeout > 0 {
		gather.SpeechTimeout = strconv.Itoa(opts.SpeechTimeout)
	}
	r.verbs = append(r.verbs, gather)
	return r
}

// Dial appends a bridge to number
func (r *VoiceResponse) Dial(number string, opts DialOptions) *VoiceResponse {
	dial := &twiml.VoiceDial{
		Number: number,
		Record: opts.Record,
		Action: opts.Action,
		Method: opts.Method,
	}
	if opts.Timeout > 0 {
		dial.Timeout = strconv.Itoa(opts.Timeout)
	}
	r.verbs = append(r.verbs, dial)
	return r
}

// Len returns the number of top-level verbs
func (r *VoiceResponse) Len() int {
	return len(r.verbs)
}

// Render serializes the document to TwiML XML
func (r *VoiceResponse) Render() (string, error) {
	return twiml.Voice(r.verbs)
}
