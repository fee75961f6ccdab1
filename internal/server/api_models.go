package server

import "github.com/amine-CS96/seo-expert/internal/model"

// StartAuditRequest is the payload for starting an audit run.
type StartAuditRequest struct {
	URL               string `json:"url" example:"https://example.com"`
	Email             string `json:"email" example:"owner@example.com"`
	IncludeScreenshot bool   `json:"includeScreenshot" example:"false"`
}

// FieldErrorsResponse reports per-field validation failures.
type FieldErrorsResponse struct {
	Errors []model.FieldError `json:"errors"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Name            string `json:"name" example:"Amine"`
	Email           string `json:"email" example:"amine@example.com"`
	Password        string `json:"password" example:"correct-horse"`
	ConfirmPassword string `json:"confirmPassword" example:"correct-horse"`
}

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email" example:"amine@example.com"`
	Password string `json:"password" example:"correct-horse"`
}

// AuthResponse carries the bearer token the client stores plus the user it
// belongs to.
type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
