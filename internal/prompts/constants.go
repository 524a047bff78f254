package prompts

import "fmt"

// Spoken lines of the voice flow
const (
	WelcomeLine        = "Welcome To Yello Rewards"
	InitialPromptLine  = "How may I help you today?"
	ReEngageLine       = "I would be happy to assist you today. How may I help you?"
	NoInputLine        = "I did not hear anything for a while. Thank you for calling. Goodbye!"
	GoodbyeLine        = "Thank you for calling. Goodbye!"
	ErrorLine          = "An error occurred"
	NotConfiguredLine  = "AI service not configured"
	AIFallbackReply    = "I am having trouble right now"
	TransferNoticeLine = "I'll transfer you to our customer service team now. Please hold."
)

// TransferTriggerPhrase in a model reply switches the turn to a bridge
const TransferTriggerPhrase = "Transferring to Yello customer service team"

// System prompt assembly
const (
	FallbackSystemPrompt = "You are a helpful phone assistant. Keep responses brief and conversational."
	KnowledgeBaseHeader  = "Knowledge Base for reference:"
	VoiceBrevitySuffix   = "Important: Keep responses to 1-2 sentences maximum for voice conversation."
)

// TransferFailedLine is spoken when the bridge attempt itself fails to connect
func TransferFailedLine(displayNumber string) string {
	return fmt.Sprintf("Sorry, I was unable to connect you. Please try calling our customer service directly at %s.", displayNumber)
}

// TransferBusyLine is spoken when the forwarding number is busy
func TransferBusyLine(displayNumber string) string {
	return fmt.Sprintf("Our customer service line is currently busy. Please try calling back in a few minutes, or call us directly at %s.", displayNumber)
}

// TransferNoAnswerLine is spoken when nobody picks up
func TransferNoAnswerLine(displayNumber string) string {
	return fmt.Sprintf("Our customer service team is not available right now. Please call us directly at %s or try again later.", displayNumber)
}

// TransferUnavailableLine is spoken on failed or canceled bridges
func TransferUnavailableLine(displayNumber string) string {
	return fmt.Sprintf("I was unable to transfer your call. Please call our customer service directly at %s.", displayNumber)
}

// TransferUnexpectedLine covers unknown dial outcomes
func TransferUnexpectedLine(displayNumber string) string {
	return fmt.Sprintf("Thank you for calling. If you need further assistance, please call %s.", displayNumber)
}

// BuildSystemInstruction combines the cached prompt with the serialized knowledge base
func BuildSystemInstruction(systemPrompt, knowledgeJSON string) string {
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", systemPrompt, KnowledgeBaseHeader, knowledgeJSON, VoiceBrevitySuffix)
}
