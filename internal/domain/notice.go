package domain

// Notice severity levels, mirroring the platform's toast variants.
const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Notice is a user-facing notification produced by an editor operation.
// Sticky notices stay on screen until dismissed; others auto-dismiss.
type Notice struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Sticky   bool   `json:"sticky"`
}

// ValidationNotice reports a failed pre-save validation. It is dismissible:
// the user keeps editing and retries.
func ValidationNotice(message string) Notice {
	return Notice{
		Title:    "Cannot save order products",
		Message:  message,
		Severity: SeverityWarning,
		Sticky:   false,
	}
}

// SaveFailedNotice reports a platform save failure. It is sticky so the
// message survives until the user acknowledges it.
func SaveFailedNotice(message string) Notice {
	return Notice{
		Title:    "Saving order products failed",
		Message:  message,
		Severity: SeverityError,
		Sticky:   true,
	}
}

// SavedNotice reports a successful save.
func SavedNotice() Notice {
	return Notice{
		Title:    "Order products saved",
		Message:  "All changes were saved successfully",
		Severity: SeveritySuccess,
		Sticky:   false,
	}
}
