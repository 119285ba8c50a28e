package captionkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies every failure surfaced by the client. The set is closed.
type ErrorKind string

const (
	KindValidation   ErrorKind = "Validation"
	KindUnauthorized ErrorKind = "Unauthorized"
	KindNotFound     ErrorKind = "NotFound"
	KindServerError  ErrorKind = "ServerError"
	KindTimeout      ErrorKind = "Timeout"
	KindNetworkError ErrorKind = "NetworkError"
	KindUnknown      ErrorKind = "Unknown"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrServerError  = &Error{Kind: KindServerError}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrNetwork      = &Error{Kind: KindNetworkError}
	ErrUnknown      = &Error{Kind: KindUnknown}
)

var (
	// ErrInvalidConfiguration is wrapped by every configuration validation failure.
	ErrInvalidConfiguration = errors.New("captionkit: invalid configuration")

	// ErrFileTooLarge is returned when a media file exceeds MaxMediaSize.
	ErrFileTooLarge = errors.New("captionkit: file too large")

	// ErrUnsupportedMedia is returned for media types the service does not accept.
	ErrUnsupportedMedia = errors.New("captionkit: unsupported media type")

	// ErrResponseTooLarge is the cause of an Unknown error when a response body
	// exceeds the read limit. It is never retried.
	ErrResponseTooLarge = errors.New("captionkit: response too large")
)

// Error is the single failure type returned by request operations.
type Error struct {
	Kind       ErrorKind
	Message    string
	Detail     string
	StatusCode int
	Method     string
	URL        string
	Endpoint   string
	RequestID  string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Cause      error
}

// Error implements error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*Error); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *Error) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Kind: %s\n", e.Kind)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.Detail != "" {
		fmt.Fprintf(&b, "Detail: %s\n", e.Detail)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", e.Method)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, "Attempt: %d/%d\n", e.Attempt, e.MaxRetries+1)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}

// KindOf reports the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusInternalServerError:
		return KindServerError
	default:
		return KindUnknown
	}
}

// extractDetail pulls the human-readable "detail" out of an error body.
// FastAPI validation errors carry a list of objects with "msg" fields.
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return ""
	}

	var text string
	if json.Unmarshal(payload.Detail, &text) == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(payload.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// Messages holds the fallback text used when a response carries no detail.
type Messages struct {
	Validation   string
	Unauthorized string
	NotFound     string
	ServerError  string
	Timeout      string
	Network      string
	Unknown      string
}

// DefaultMessages are the English fallback messages.
var DefaultMessages = Messages{
	Validation:   "Invalid data. Check your input.",
	Unauthorized: "You must be signed in to perform this action.",
	NotFound:     "Resource not found.",
	ServerError:  "Server error. Please try again later.",
	Timeout:      "The request took too long. Please try again.",
	Network:      "Connection error. Check your internet connection.",
	Unknown:      "An unexpected error occurred.",
}

// FrenchMessages are the French fallback messages.
var FrenchMessages = Messages{
	Validation:   "Données invalides. Vérifiez vos entrées.",
	Unauthorized: "Vous devez être connecté pour effectuer cette action.",
	NotFound:     "Ressource non trouvée.",
	ServerError:  "Erreur serveur. Veuillez réessayer plus tard.",
	Timeout:      "La requête a pris trop de temps. Veuillez réessayer.",
	Network:      "Erreur de connexion. Vérifiez votre connexion internet.",
	Unknown:      "Une erreur inattendue est survenue.",
}

// MessagesFor returns the fallback messages for a language tag ("fr", "en").
func MessagesFor(lang string) Messages {
	if strings.HasPrefix(strings.ToLower(lang), "fr") {
		return FrenchMessages
	}
	return DefaultMessages
}

// For returns the message for kind, falling back to DefaultMessages for empty fields.
func (m Messages) For(kind ErrorKind) string {
	pick := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}
	switch kind {
	case KindValidation:
		return pick(m.Validation, DefaultMessages.Validation)
	case KindUnauthorized:
		return pick(m.Unauthorized, DefaultMessages.Unauthorized)
	case KindNotFound:
		return pick(m.NotFound, DefaultMessages.NotFound)
	case KindServerError:
		return pick(m.ServerError, DefaultMessages.ServerError)
	case KindTimeout:
		return pick(m.Timeout, DefaultMessages.Timeout)
	case KindNetworkError:
		return pick(m.Network, DefaultMessages.Network)
	default:
		return pick(m.Unknown, DefaultMessages.Unknown)
	}
}
