package twilio

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the HMAC signature of a webhook request
const SignatureHeader = "X-Twilio-Signature"

// WebhookValidator checks that webhook requests were signed with the account auth token
type WebhookValidator struct {
	validator client.RequestValidator
}

// NewWebhookValidator creates a validator for authToken
func NewWebhookValidator(authToken string) *WebhookValidator {
	return &WebhookValidator{validator: client.NewRequestValidator(authToken)}
}

// Validate checks signature against the full request URL and form parameters
func (v *WebhookValidator) Validate(fullURL string, form url.Values, signature string) bool {
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return v.validator.Validate(fullURL, params, signature)
}
