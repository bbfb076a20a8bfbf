package auth

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	users    map[string]User
	pending  map[string]PendingVerification
	sessions map[string]AuthSession
}

// NewMemoryRepository builds an in-memory auth store for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:    make(map[string]User),
		pending:  make(map[string]PendingVerification),
		sessions: make(map[string]AuthSession),
	}
}

func (r *memoryRepository) FindUser(_ context.Context, identity string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[identity]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindUserByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) FindUserByUsername(_ context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) UpdateUser(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Identity]; !ok {
		return ErrUserNotFound
	}
	r.users[user.Identity] = user
	return nil
}

func (r *memoryRepository) ListUsersByRole(_ context.Context, role Role) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryRepository) CompleteRegistration(_ context.Context, user User, session AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.Identity] = user
	r.sessions[session.Identity] = session
	delete(r.pending, user.Identity)
	return nil
}

func (r *memoryRepository) CompleteLogin(_ context.Context, session AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Identity] = session
	delete(r.pending, session.Identity)
	return nil
}

func (r *memoryRepository) FindPending(_ context.Context, identity string) (PendingVerification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pending[identity]
	if !ok {
		return PendingVerification{}, ErrPendingNotFound
	}
	return p, nil
}

func (r *memoryRepository) ReplacePending(_ context.Context, pending PendingVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[pending.Identity] = pending
	return nil
}

func (r *memoryRepository) DeletePending(_ context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, identity)
	return nil
}

func (r *memoryRepository) FindSession(_ context.Context, identity string) (AuthSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[identity]
	if !ok {
		return AuthSession{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *memoryRepository) UpsertSession(_ context.Context, session AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Identity] = session
	return nil
}

func (r *memoryRepository) TouchSession(_ context.Context, identity string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[identity]; ok {
		s.LastActiveTime = at
		r.sessions[identity] = s
	}
	return nil
}
