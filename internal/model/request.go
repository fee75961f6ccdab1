package model

import (
	"net/url"
	"regexp"
	"strings"
)

// AuditRequest is a submission for one audit. Email is collected for the
// dashboard (history, notifications) and is not forwarded to the external
// analysis service.
type AuditRequest struct {
	URL               string `json:"url"`
	Email             string `json:"email"`
	IncludeScreenshot bool   `json:"includeScreenshot,omitempty"`
}

// FieldError is a field-level validation failure surfaced to the form.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RFC-shaped, intentionally loose: one @, no whitespace, dotted domain.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate performs the client-side checks that must pass before any
// network request is issued. An empty slice means the request is valid.
func (r AuditRequest) Validate() []FieldError {
	var errs []FieldError

	rawURL := strings.TrimSpace(r.URL)
	if rawURL == "" {
		errs = append(errs, FieldError{Field: "url", Message: "url is required"})
	} else {
		u, err := url.Parse(rawURL)
		switch {
		case err != nil:
			errs = append(errs, FieldError{Field: "url", Message: "url is not parseable"})
		case !u.IsAbs():
			errs = append(errs, FieldError{Field: "url", Message: "url must be absolute"})
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, FieldError{Field: "url", Message: "url scheme must be http or https"})
		case u.Host == "":
			errs = append(errs, FieldError{Field: "url", Message: "url is missing a host"})
		}
	}

	email := strings.TrimSpace(r.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if !emailRe.MatchString(email) {
		errs = append(errs, FieldError{Field: "email", Message: "email is not valid"})
	}

	return errs
}
