package twilio

import (
	"errors"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// Twilio REST error codes that mean a call can never be recorded
const (
	ErrorCodeResourceNotFound = 20404
	ErrorCodeInvalidCallState = 21220
)

// recordingIneligibleMarker appears in messages for calls that cannot be recorded
const recordingIneligibleMarker = "not eligible for recording"

var permanentRecordingCodes = map[int]struct{}{
	ErrorCodeResourceNotFound: {},
	ErrorCodeInvalidCallState: {},
}

// RestErrorCode extracts the Twilio error code, or 0 when err is not a REST error
func RestErrorCode(err error) int {
	var restErr *client.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Code
	}
	return 0
}

// IsPermanentRecordingError reports whether retrying a recording start is pointless
func IsPermanentRecordingError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRecordingDisabled) {
		return true
	}
	if _, ok := permanentRecordingCodes[RestErrorCode(err)]; ok {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), recordingIneligibleMarker)
}
