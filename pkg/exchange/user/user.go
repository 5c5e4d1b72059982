// Package user is the user directory: registration, API keys and roles.
// Role checks happen entirely at the API layer; the matching core only ever
// sees an authenticated user id.
package user

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrInvalidName = errors.New("user name must be at least 3 characters")
)

// Role is the capability level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is a registered exchange participant.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	APIKey string `json:"api_key"`
}

// Directory is a thread-safe user store with API-key lookup.
type Directory struct {
	mu    sync.RWMutex
	users map[string]User // id -> user
	byKey map[string]string
}

func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]User),
		byKey: make(map[string]string),
	}
}

// Register creates a new USER-role user with a fresh API key.
func (d *Directory) Register(name string) (User, error) {
	if len(name) < 3 {
		return User{}, ErrInvalidName
	}

	u := User{
		ID:     uuid.NewString(),
		Name:   name,
		Role:   RoleUser,
		APIKey: "key-" + uuid.NewString(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
	d.byKey[u.APIKey] = u.ID
	return u, nil
}

// Seed inserts a pre-built user, keeping its id, key and role. Used for the
// bootstrap admin and for restoring persisted users at startup.
func (d *Directory) Seed(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
	d.byKey[u.APIKey] = u.ID
}

// Get returns a user by id.
func (d *Directory) Get(id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return u, nil
}

// GetByKey resolves an API key to its user. This is the whole of
// authentication: there is no credential special-casing anywhere else.
func (d *Directory) GetByKey(apiKey string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byKey[apiKey]
	if !ok {
		return User{}, fmt.Errorf("%w: bad api key", ErrNotFound)
	}
	return d.users[id], nil
}

// Delete removes a user. Their balances and order history remain.
func (d *Directory) Delete(id string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(d.users, id)
	delete(d.byKey, u.APIKey)
	return u, nil
}

// List returns all users.
func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	return out
}
