package model

import "net/http"

// ErrorKind classifies an audit failure so the UI can pick matching
// guidance. Unknown kinds are carried through unchanged; suggestion lookup
// falls back to the generic bucket rather than failing.
type ErrorKind string

const (
	KindURLNotFound       ErrorKind = "URL_NOT_FOUND"
	KindDNSNotResolved    ErrorKind = "DNS_NOT_RESOLVED"
	KindConnectionError   ErrorKind = "CONNECTION_ERROR"
	KindConnectionRefused ErrorKind = "CONNECTION_REFUSED"
	KindTimeout           ErrorKind = "TIMEOUT_ERROR"
	KindNavigationTimeout ErrorKind = "NAVIGATION_TIMEOUT"
	KindPageNotFound      ErrorKind = "PAGE_NOT_FOUND"
	KindAccessDenied      ErrorKind = "ACCESS_DENIED"
	KindAccessForbidden   ErrorKind = "ACCESS_FORBIDDEN"
	KindServerError       ErrorKind = "SERVER_ERROR"
	KindNetworkError      ErrorKind = "NETWORK_ERROR"
	KindInvalidURL        ErrorKind = "INVALID_URL"
	KindAnalysisFailed    ErrorKind = "ANALYSIS_FAILED"
	KindGeneralError      ErrorKind = "GENERAL_ERROR"
)

// AuditError is a classified audit failure with user guidance attached.
type AuditError struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Suggestions []string  `json:"suggestions"`
}

func (e *AuditError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewAuditError builds an AuditError, filling in the default message and
// the static suggestion set for the kind. message may be empty.
func NewAuditError(kind ErrorKind, message string) *AuditError {
	if kind == "" {
		kind = KindGeneralError
	}
	if message == "" {
		message = defaultMessageFor(kind)
	}
	return &AuditError{
		Kind:        kind,
		Message:     message,
		Suggestions: SuggestionsFor(kind),
	}
}

var suggestionTable = map[ErrorKind][]string{
	KindURLNotFound: {
		"Double-check the address for typos.",
		"Make sure the domain is registered and publicly reachable.",
	},
	KindDNSNotResolved: {
		"Verify the domain name resolves (try opening it in a browser).",
		"If the site was just registered, DNS may still be propagating.",
	},
	KindConnectionError: {
		"The site may be temporarily down; try again in a few minutes.",
		"Check whether the site loads in your browser.",
	},
	KindConnectionRefused: {
		"The server refused the connection; it may be down or firewalled.",
		"Confirm the site is served on a standard http/https port.",
	},
	KindTimeout: {
		"The site took too long to respond; try again later.",
		"Very slow pages can exceed the analysis time limit.",
	},
	KindNavigationTimeout: {
		"The page did not finish loading in time.",
		"Heavy scripts or redirects can prevent the page from settling.",
	},
	KindPageNotFound: {
		"The page returned 404; check the path portion of the URL.",
		"Try auditing the site root instead of a deep link.",
	},
	KindAccessDenied: {
		"The page requires authentication; audit a public page instead.",
	},
	KindAccessForbidden: {
		"The site is blocking automated access (403).",
		"A WAF or bot protection may be rejecting the audit crawler.",
	},
	KindServerError: {
		"The site returned a server error; try again once it recovers.",
	},
	KindNetworkError: {
		"Check your connection and try again.",
		"If the problem persists, the analysis service may be unreachable.",
	},
	KindInvalidURL: {
		"Enter a full address including http:// or https://.",
	},
	KindAnalysisFailed: {
		"The page was reached but could not be analyzed; try again.",
	},
	KindGeneralError: {
		"Something went wrong; try again.",
		"If the problem persists, audit a different page to narrow it down.",
	},
}

// SuggestionsFor returns the static guidance for a kind, falling back to
// the generic bucket for anything unrecognized.
func SuggestionsFor(kind ErrorKind) []string {
	if s, ok := suggestionTable[kind]; ok {
		out := make([]string, len(s))
		copy(out, s)
		return out
	}
	s := suggestionTable[KindGeneralError]
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func defaultMessageFor(kind ErrorKind) string {
	switch kind {
	case KindURLNotFound, KindDNSNotResolved:
		return "The address could not be found."
	case KindConnectionError, KindConnectionRefused:
		return "The site could not be reached."
	case KindTimeout, KindNavigationTimeout:
		return "The site took too long to respond."
	case KindPageNotFound:
		return "The page does not exist."
	case KindAccessDenied, KindAccessForbidden:
		return "Access to the page was denied."
	case KindServerError:
		return "The site returned a server error."
	case KindNetworkError:
		return "A network error interrupted the audit."
	case KindInvalidURL:
		return "The address is not a valid URL."
	case KindAnalysisFailed:
		return "The page could not be analyzed."
	default:
		return "The audit failed unexpectedly."
	}
}

// KindFromStatus maps an HTTP status from the analysis service onto the
// taxonomy when the response carries no explicit errorType.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return KindInvalidURL
	case status == http.StatusNotFound:
		return KindPageNotFound
	case status == http.StatusUnauthorized:
		return KindAccessDenied
	case status == http.StatusForbidden:
		return KindAccessForbidden
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerError
	default:
		return KindGeneralError
	}
}
