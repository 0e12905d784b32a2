package userstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryReferral struct {
	ownerID int64
	usedBy  int64
}

// Memory is a mutex-guarded in-process Store.
type Memory struct {
	mu         sync.Mutex
	nextID     int64
	users      map[int64]*User
	byUsername map[string]int64
	byEmail    map[string]int64
	referrals  map[string]*memoryReferral
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[int64]*User),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
		referrals:  make(map[string]*memoryReferral),
	}
}

func (m *Memory) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[u.Username]; ok {
		return ErrDuplicate
	}
	if _, ok := m.byEmail[strings.ToLower(u.Email)]; ok {
		return ErrDuplicate
	}

	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()

	stored := *u
	m.users[u.ID] = &stored
	m.byUsername[u.Username] = u.ID
	m.byEmail[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (m *Memory) ByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return m.copyLocked(id)
}

func (m *Memory) ByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.copyLocked(id)
}

func (m *Memory) ByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked(id)
}

func (m *Memory) copyLocked(id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *Memory) AddCoins(_ context.Context, id int64, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Coins += delta
	return nil
}

func (m *Memory) Coins(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	return u.Coins, nil
}

// List returns all users ordered by id.
func (m *Memory) List(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateReferral(_ context.Context, ownerID int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[ownerID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.referrals[code]; ok {
		return ErrDuplicate
	}
	m.referrals[code] = &memoryReferral{ownerID: ownerID}
	return nil
}

func (m *Memory) RedeemReferral(_ context.Context, code string, newUserID int64, reward Reward) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.referrals[code]
	if !ok || ref.usedBy != 0 || ref.ownerID == newUserID {
		return 0, ErrReferralUnavailable
	}
	owner, ok := m.users[ref.ownerID]
	if !ok {
		return 0, ErrReferralUnavailable
	}
	newUser, ok := m.users[newUserID]
	if !ok {
		return 0, ErrNotFound
	}

	ref.usedBy = newUserID
	owner.Coins += reward.Referrer
	newUser.Coins += reward.NewUser
	referrer := ref.ownerID
	newUser.ReferredBy = &referrer
	return ref.ownerID, nil
}
