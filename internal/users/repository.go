// Package users guarda los perfiles normalizados de quienes iniciaron sesión.
package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dropDatabas3/socialauth/internal/oauth"
)

var ErrNotFound = errors.New("user not found")

// User es el registro guardado por cada login exitoso.
type User struct {
	ID         string         `json:"id"`
	ExternalID string         `json:"external_id"`
	Provider   string         `json:"provider"`
	Username   string         `json:"username"`
	Email      *string        `json:"email"`
	AvatarURL  *string        `json:"avatar"`
	RawProfile map[string]any `json:"raw"`
	CreatedAt  time.Time      `json:"created_at"`
}

// FromNormalized arma el registro. id es el id interno.
func FromNormalized(id string, u oauth.NormalizedUser, now time.Time) *User {
	return &User{
		ID:         id,
		ExternalID: u.ID,
		Provider:   u.Provider,
		Username:   u.Username,
		Email:      u.Email,
		AvatarURL:  u.AvatarURL,
		RawProfile: u.RawProfile,
		CreatedAt:  now.UTC(),
	}
}

// Repository define el acceso a usuarios.
type Repository interface {
	Save(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// MemoryRepository es un Repository en memoria, seguro para uso concurrente.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*User)}
}

func (r *MemoryRepository) Save(_ context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return errors.New("users: empty id")
	}
	cp := *u
	r.mu.Lock()
	r.users[u.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	u, ok := r.users[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Delete devuelve true si el usuario existía.
func (r *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[id]
	delete(r.users, id)
	return ok, nil
}

// Count devuelve la cantidad de usuarios guardados.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
