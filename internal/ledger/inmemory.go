package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tujenge/tujenge/internal/account"
)

type inMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]account.Account
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and development mode.
func NewInMemory() Store {
	return &inMemoryStore{accounts: make(map[string]account.Account)}
}

func (s *inMemoryStore) Create(_ context.Context, acc account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acc.Phone]; exists {
		return fmt.Errorf("%s: %w", acc.Phone, account.ErrAccountExists)
	}
	acc = acc.Clone()
	acc.Version = 1
	s.accounts[acc.Phone] = acc
	return nil
}

func (s *inMemoryStore) Get(_ context.Context, phone string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[phone]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", phone, account.ErrNotFound)
	}
	return acc.Clone(), nil
}

func (s *inMemoryStore) Update(ctx context.Context, phone string, fn UpdateFunc) (account.Account, error) {
	for attempt := 0; attempt < MaxUpdateAttempts; attempt++ {
		if err := waitRetry(ctx, attempt); err != nil {
			return account.Account{}, err
		}
		current, err := s.Get(ctx, phone)
		if err != nil {
			return account.Account{}, err
		}
		next := current.Clone()
		if err := fn(&next); err != nil {
			return current, err
		}
		if s.swap(phone, current.Version, next) {
			next.Version = current.Version + 1
			return next, nil
		}
	}
	return account.Account{}, fmt.Errorf("account %s: %w", phone, ErrConflict)
}

// swap writes next only when the stored version still equals expected.
func (s *inMemoryStore) swap(phone string, expected int64, next account.Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[phone]
	if !ok || stored.Version != expected {
		return false
	}
	next = next.Clone()
	next.Phone = phone
	next.Version = expected + 1
	s.accounts[phone] = next
	return true
}

func (s *inMemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[phone]; !ok {
		return fmt.Errorf("account %s: %w", phone, account.ErrNotFound)
	}
	delete(s.accounts, phone)
	return nil
}

func (s *inMemoryStore) List(_ context.Context) ([]account.Account, error) {
	return s.filter(func(account.Account) bool { return true }), nil
}

func (s *inMemoryStore) ListWithMiners(_ context.Context) ([]account.Account, error) {
	return s.filter(func(a account.Account) bool { return len(a.Miners) > 0 }), nil
}

func (s *inMemoryStore) ListWithInvestments(_ context.Context) ([]account.Account, error) {
	return s.filter(func(a account.Account) bool { return len(a.Investments) > 0 }), nil
}

func (s *inMemoryStore) AppendNotificationAll(_ context.Context, n account.Notification) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for phone, acc := range s.accounts {
		acc = acc.Clone()
		acc.Notify(n)
		acc.Version++
		s.accounts[phone] = acc
	}
	return len(s.accounts), nil
}

func (s *inMemoryStore) filter(keep func(account.Account) bool) []account.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]account.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		if keep(acc) {
			out = append(out, acc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Phone < out[j].Phone
	})
	return out
}
