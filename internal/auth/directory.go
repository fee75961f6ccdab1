package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateEmail is returned when registering an email that already has
// an account.
var ErrDuplicateEmail = errors.New("email already registered")

// User is the public account shape. Password material never leaves the
// directory.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type record struct {
	user User
	hash []byte
}

// Directory is the demo in-memory user table. It is process-local and
// non-durable; a real deployment swaps in a persistent credential store
// behind the same Service surface.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]*record
	byID    map[string]*record
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byEmail: make(map[string]*record),
		byID:    make(map[string]*record),
	}
}

// Create inserts a user with the given password hash. Emails are unique,
// case-insensitively.
func (d *Directory) Create(name, email string, hash []byte) (*User, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byEmail[key]; exists {
		return nil, ErrDuplicateEmail
	}

	rec := &record{
		user: User{
			ID:        uuid.New().String(),
			Name:      strings.TrimSpace(name),
			Email:     key,
			CreatedAt: time.Now().UTC(),
		},
		hash: hash,
	}
	d.byEmail[key] = rec
	d.byID[rec.user.ID] = rec

	u := rec.user
	return &u, nil
}

// Lookup returns the user and password hash for an email.
func (d *Directory) Lookup(email string) (*User, []byte, bool) {
	key := strings.ToLower(strings.TrimSpace(email))

	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byEmail[key]
	if !ok {
		return nil, nil, false
	}
	u := rec.user
	return &u, rec.hash, true
}

// GetByID returns the user for an ID.
func (d *Directory) GetByID(id string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	u := rec.user
	return &u, true
}
