package at

import (
	"strings"
)

// Classify identifies the nature of a line received from the modem.
//
// Important: this assumes "No Echo" mode (ATE0). With echo enabled the
// command echo is reported as TypeData.
func Classify(line string) ResponseType {
	if line == Download {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR:
		return TypeFinal
	case Ready, SimReady, CallReady, SmsReady, NormalPowerDown:
		return TypeURC
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcHttpAction):
		return TypeURC
	default:
		return TypeData
	}
}

// IsFailure reports whether line is a final result other than OK.
func IsFailure(line string) bool {
	return line != OK && Classify(line) == TypeFinal
}
