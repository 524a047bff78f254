package call

import (
	"github.com/ClareAI/astra-voice-webhook/internal/config"
	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/internal/prompts"
	"github.com/ClareAI/astra-voice-webhook/pkg/twilio"
)

const (
	welcomePauseSeconds = 1

	gatherInputSpeech = "speech"
	methodPost        = "POST"
	dialRecordMode    = "record-from-ringing-dual"

	voiceHandlerPath   = "/voice-handler"
	transferStatusPath = "/transfer-status"
)

// fallbackDocument is written when rendering itself fails
const fallbackDocument = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + prompts.ErrorLine + `</Say></Response>`

// Composer turns a decided action into a TwiML document
type Composer struct {
	say             twilio.SayOptions
	speechTimeout   int
	speechEnd       int
	transferNumber  string
	transferDisplay string
	transferTimeout int
}

// NewComposer creates a composer with voice and timing taken from cfg
func NewComposer(cfg *config.VoiceWebhookConfig) *Composer {
	vs := cfg.VoiceSettings()
	return &Composer{
		say:             twilio.SayOptions{Voice: vs.Voice, Language: vs.Language},
		speechTimeout:   cfg.SpeechTimeout,
		speechEnd:       cfg.SpeechEndTimeout,
		transferNumber:  cfg.TransferNumber,
		transferDisplay: cfg.TransferDisplayNumber,
		transferTimeout: cfg.TransferTimeout,
	}
}

func (c *Composer) listen() twilio.GatherOptions {
	return twilio.GatherOptions{
		Input:         gatherInputSpeech,
		Timeout:       c.speechTimeout,
		SpeechTimeout: c.speechEnd,
		Action:        voiceHandlerPath,
		Method:        methodPost,
	}
}

// Message is a single spoken line
func (c *Composer) Message(text string) *twilio.VoiceResponse {
	return twilio.NewVoiceResponse().Say(text, c.say)
}

// Welcome greets a new caller and listens with a nested prompt
func (c *Composer) Welcome() *twilio.VoiceResponse {
	return twilio.NewVoiceResponse().
		Say(prompts.WelcomeLine, c.say).
		Pause(welcomePauseSeconds).
		Gather(c.listen(), twilio.NewSay(prompts.InitialPromptLine, c.say)).
		Say(prompts.NoInputLine, c.say)
}

// Prompt listens with a nested prompt line, without the welcome
func (c *Composer) Prompt(line string) *twilio.VoiceResponse {
	return twilio.NewVoiceResponse().
		Gather(c.listen(), twilio.NewSay(line, c.say)).
		Say(prompts.NoInputLine, c.say)
}

// Reply speaks the assistant reply and listens again
func (c *Composer) Reply(text string) *twilio.VoiceResponse {
	return twilio.NewVoiceResponse().
		Say(text, c.say).
		Gather(c.listen()).
		Say(prompts.GoodbyeLine, c.say)
}

// Transfer bridges the caller to the forwarding number
func (c *Composer) Transfer() *twilio.VoiceResponse {
	return twilio.NewVoiceResponse().
		Say(prompts.TransferNoticeLine, c.say).
		Dial(c.transferNumber, twilio.DialOptions{
			Timeout: c.transferTimeout,
			Record:  dialRecordMode,
			Action:  transferStatusPath,
			Method:  methodPost,
		}).
		Say(prompts.TransferFailedLine(c.transferDisplay), c.say)
}

// TransferOutcome maps a dial status to its terminal document. Completed bridges
// produce an empty document.
func (c *Composer) TransferOutcome(dialStatus string) *twilio.VoiceResponse {
	switch dialStatus {
	case domain.DialStatusCompleted:
		return twilio.NewVoiceResponse()
	case domain.DialStatusBusy:
		return c.Message(prompts.TransferBusyLine(c.transferDisplay))
	case domain.DialStatusNoAnswer:
		return c.Message(prompts.TransferNoAnswerLine(c.transferDisplay))
	case domain.DialStatusFailed, domain.DialStatusCanceled:
		return c.Message(prompts.TransferUnavailableLine(c.transferDisplay))
	default:
		return c.Message(prompts.TransferUnexpectedLine(c.transferDisplay))
	}
}

// Render serializes resp, falling back to a static error document
func Render(resp *twilio.VoiceResponse) string {
	if resp == nil {
		return twilio.EmptyResponse
	}
	doc, err := resp.Render()
	if err != nil || doc == "" {
		return fallbackDocument
	}
	return doc
}
