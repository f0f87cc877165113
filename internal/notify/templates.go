package notify

import (
	"fmt"

	"veribridge/internal/verification/models"
)

// reasonTexts maps provider numeric decline codes to the human-readable
// explanation rendered into the declined message. Users see this text, never
// the raw code.
var reasonTexts = map[string]string{
	"101": "the document appears to be altered",
	"102": "the session was flagged as suspicious",
	"103": "the document photo was missing or unreadable",
	"104": "your face was not clearly visible",
	"105": "the document has expired",
}

// cameraFailureReason is the free-text reason the provider sends when the
// user's device blocked media capture; it gets a specific hint appended.
const cameraFailureReason = "Microphone or camera not working"

// Render produces the user-facing message for an outcome.
func Render(outcome models.Outcome, reason, reasonCode string) string {
	switch outcome {
	case models.OutcomeApproved:
		return "✅ Identity confirmed! Your registration has been approved."
	case models.OutcomeDeclined:
		msg := "❌ We could not verify your identity"
		if text, ok := reasonTexts[reasonCode]; ok {
			msg += ": " + text + "."
		} else if reason != "" {
			msg += ": " + reason + "."
		} else {
			msg += "."
		}
		if reason == cameraFailureReason {
			msg += " There was a problem with your camera. Please check its permissions before retrying."
		}
		return msg
	case models.OutcomeResubmission:
		return "⚠️ The image was not clear enough. Please open the verification link again and retake the photo."
	case models.OutcomeExpired:
		return "Your verification session expired. Please start the verification again to get a new link."
	default:
		return fmt.Sprintf("Your identity verification finished with status %q. We will follow up if anything else is needed.", string(outcome))
	}
}
