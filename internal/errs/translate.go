package errs

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

// Translator converts internal failures into safe, user-facing messages.
// The raw error and a stack trace are always written to the internal log;
// only the canned sentence reaches the caller.
type Translator struct {
	log zerolog.Logger
}

// NewTranslator returns a Translator writing internal detail to log.
func NewTranslator(log zerolog.Logger) *Translator {
	return &Translator{log: log}
}

// Translate records err with full detail and returns a user-safe message.
// context describes the operation in progress, e.g. "processing message".
func (t *Translator) Translate(err error, context, user string) string {
	if err == nil {
		return ""
	}

	t.log.Error().
		Err(err).
		Str("context", context).
		Str("user", user).
		Bytes("stack", debug.Stack()).
		Msg("pilot error")

	return SafeMessage(err, context)
}

// SafeMessage maps an error onto a canned user-facing sentence by matching
// the lower-cased error text against known categories.
func SafeMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "duplicate entry"), strings.Contains(msg, "duplicate key"):
		return "This record already exists. Please check your input and try again."
	case strings.Contains(msg, "foreign key constraint"):
		return "This action cannot be completed because it would affect related records."
	case strings.Contains(msg, "table doesn't exist"), strings.Contains(msg, "column doesn't exist"),
		strings.Contains(msg, "does not exist") && strings.Contains(msg, "relation"):
		return "There seems to be a system configuration issue. Please contact your administrator."
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not allowed"):
		return "You don't have permission to perform this action. Please contact your administrator if you believe this is an error."
	case strings.Contains(msg, "required"), strings.Contains(msg, "mandatory"):
		return "Some required information is missing. Please provide all necessary details and try again."
	case strings.Contains(msg, "model not found"), strings.Contains(msg, "model is not available"):
		return "The AI model is not available. Please contact your administrator to configure the AI models."
	case strings.Contains(msg, "service unavailable"), strings.Contains(msg, "connection refused"):
		return "The AI service is currently unavailable. Please try again later or contact your administrator."
	case strings.Contains(msg, "connection"), strings.Contains(msg, "timeout"), strings.Contains(msg, "network"):
		return "There was a connection issue. Please check your network and try again."
	case strings.Contains(msg, "file not found"), strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return "A required file or resource could not be found. Please contact your administrator."
	}

	if context != "" {
		return fmt.Sprintf("An error occurred while %s. Please try again or contact support if the problem persists.", context)
	}
	return "An unexpected error occurred. Please try again or contact support if the problem persists."
}
