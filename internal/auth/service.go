// Package auth is the demo credential service: an in-memory user directory
// with bcrypt password hashes and HS256 bearer tokens. The core only relies
// on the Login/Register/Verify surface, so a durable directory can replace
// this wholesale.
package auth

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

var (
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	// Deliberately indistinguishable between the two.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned when a verified token points at a user
	// that no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError is a field-level registration/login input failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLen = 8

// Config holds auth settings.
type Config struct {
	// JWTSecret signs bearer tokens. The dev default exists so the demo
	// runs out of the box; deployments must set SEO_EXPERT_JWT_SECRET.
	JWTSecret string

	// TokenTTL bounds token lifetime.
	TokenTTL time.Duration

	// BcryptCost for password hashing; 0 means bcrypt.DefaultCost.
	BcryptCost int
}

// DefaultConfig reads the secret from the environment with a development
// fallback.
func DefaultConfig() Config {
	secret := os.Getenv("SEO_EXPERT_JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}
	return Config{
		JWTSecret: secret,
		TokenTTL:  7 * 24 * time.Hour,
	}
}

// Service is the credential service the API layer talks to.
type Service struct {
	cfg    Config
	dir    *Directory
	issuer *TokenIssuer
	logger interfaces.Logger
}

// NewService creates a Service with an empty directory.
func NewService(cfg Config, logger interfaces.Logger) *Service {
	if cfg.JWTSecret == "" {
		cfg = DefaultConfig()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		cfg:    cfg,
		dir:    NewDirectory(),
		issuer: NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL),
		logger: logger.With(interfaces.Field{Key: "component", Value: "auth"}),
	}
}

// Register creates an account and returns the user plus a fresh token.
// Returns *ValidationError for bad input and ErrDuplicateEmail when the
// email is taken.
func (s *Service) Register(name, email, password, confirmPassword string) (*User, string, error) {
	switch {
	case name == "":
		return nil, "", &ValidationError{Field: "name", Message: "name is required"}
	case email == "":
		return nil, "", &ValidationError{Field: "email", Message: "email is required"}
	case !emailRe.MatchString(email):
		return nil, "", &ValidationError{Field: "email", Message: "email is not valid"}
	case len(password) < minPasswordLen:
		return nil, "", &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen)}
	case password != confirmPassword:
		return nil, "", &ValidationError{Field: "confirmPassword", Message: "passwords do not match"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.dir.Create(name, email, hash)
	if err != nil {
		return nil, "", err
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", interfaces.Field{Key: "email", Value: user.Email})
	return user, token, nil
}

// Login verifies credentials and returns the user plus a fresh token.
func (s *Service) Login(email, password string) (*User, string, error) {
	if email == "" || password == "" {
		return nil, "", &ValidationError{Field: "email", Message: "email and password are required"}
	}

	user, hash, ok := s.dir.Lookup(email)
	if !ok {
		// Burn comparable time so missing users aren't distinguishable
		// from wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user logged in", interfaces.Field{Key: "email", Value: user.Email})
	return user, token, nil
}

// Verify resolves a bearer token to its user. Returns ErrInvalidToken or
// ErrUserNotFound.
func (s *Service) Verify(token string) (*User, error) {
	userID, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	user, ok := s.dir.GetByID(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// dummyHash is a valid bcrypt hash of an unguessable string, used to
// equalize login timing for unknown emails.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("seo-expert-dummy-password"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()
