package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/store"
)

// Account is a bootstrap login from configuration.
type Account struct {
	Username string
	Password string
	Role     string
}

// Users is an in-memory account registry. Passwords are held as bcrypt
// hashes; accounts with an empty password are skipped.
type Users struct {
	mu    sync.RWMutex
	users map[string]domain.UserAccount
}

func NewUsers(accounts ...Account) (*Users, error) {
	u := &Users{users: make(map[string]domain.UserAccount)}
	now := time.Now().UTC()
	for _, a := range accounts {
		name := strings.ToLower(strings.TrimSpace(a.Username))
		if name == "" || a.Password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		u.users[name] = domain.UserAccount{
			Username:  name,
			Password:  string(hash),
			Role:      a.Role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return u, nil
}

func (u *Users) CreateUser(_ context.Context, user domain.UserAccount) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := u.users[name]; exists {
		return fmt.Errorf("user %s already exists", name)
	}
	user.Username = name
	u.users[name] = user
	return nil
}

func (u *Users) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(u.users))
	for _, user := range u.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (u *Users) UpdateUserPassword(_ context.Context, username string, password string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(username))
	user, ok := u.users[name]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	u.users[name] = user
	return nil
}
