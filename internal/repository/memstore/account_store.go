// Package memstore provides in-memory implementations of the repository
// contracts. It is the default storage driver for local runs and the
// implementation the concurrency invariants are exercised against in tests:
// per-account critical sections with bounded acquisition, ascending-id lock
// order for two-account transfers, and compare-and-swap status transitions.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"banking-service/internal/domain"
	"banking-service/internal/repository"
	"banking-service/pkg/xerrors"
)

// DefaultLockWait bounds how long a caller blocks on an account's critical
// section before receiving a retryable failure.
const DefaultLockWait = 2 * time.Second

type account struct {
	domain.Account
	deleted bool

	// lock is a 1-buffered channel; holding the token is being inside the
	// account's critical section.
	lock chan struct{}
}

type AccountStore struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]*account
	emails   map[string]int64
	lockWait time.Duration
}

var _ repository.AccountStore = (*AccountStore)(nil)

func NewAccountStore() *AccountStore {
	return NewAccountStoreWithLockWait(DefaultLockWait)
}

func NewAccountStoreWithLockWait(lockWait time.Duration) *AccountStore {
	return &AccountStore{
		accounts: make(map[int64]*account),
		emails:   make(map[string]int64),
		lockWait: lockWait,
	}
}

// acquire enters the account's critical section, waiting at most lockWait.
func (s *AccountStore) acquire(ctx context.Context, a *account) error {
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()

	select {
	case a.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return xerrors.ErrLockTimeout
	}
}

func (s *AccountStore) release(a *account) {
	<-a.lock
}

func (s *AccountStore) find(id int64) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || a.deleted {
		return nil, xerrors.ErrNotFound
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountStore) Create(_ context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(in.HolderEmail)
	if _, taken := s.emails[email]; taken {
		return nil, xerrors.ErrConflict
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	s.nextID++
	now := time.Now()
	a := &account{
		Account: domain.Account{
			ID:            s.nextID,
			AccountNumber: in.AccountNumber,
			HolderName:    in.HolderName,
			HolderAddress: in.HolderAddress,
			HolderEmail:   in.HolderEmail,
			PasswordHash:  in.PasswordHash,
			Balance:       in.InitialBalance,
			Role:          role,
			EmailVerified: false,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		lock: make(chan struct{}, 1),
	}

	s.accounts[a.ID] = a
	s.emails[email] = a.ID

	cp := a.Account
	return &cp, nil
}

func (s *AccountStore) Get(_ context.Context, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || a.deleted {
		return nil, xerrors.ErrNotFound
	}
	cp := a.Account
	return &cp, nil
}

func (s *AccountStore) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	a, ok := s.accounts[id]
	if !ok || a.deleted {
		return nil, xerrors.ErrNotFound
	}
	cp := a.Account
	return &cp, nil
}

func (s *AccountStore) List(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.deleted {
			continue
		}
		cp := a.Account
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AdjustBalance performs check-and-mutate as one step inside the account's
// critical section. Two concurrent debits can never both pass the
// insufficiency check against a stale balance.
func (s *AccountStore) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	a, err := s.find(id)
	if err != nil {
		return 0, err
	}
	if err := s.acquire(ctx, a); err != nil {
		return 0, err
	}
	defer s.release(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	if a.deleted {
		return 0, xerrors.ErrNotFound
	}
	if delta < 0 && a.Balance+delta < 0 {
		return 0, xerrors.ErrInsufficientFunds
	}
	a.Balance += delta
	a.UpdatedAt = time.Now()
	return a.Balance, nil
}

// TransferBalance moves amount between two accounts all-or-nothing. Both
// critical sections are entered in ascending account id order so that two
// opposite-direction transfers cannot deadlock.
func (s *AccountStore) TransferBalance(ctx context.Context, fromID, toID, amount int64) error {
	if amount <= 0 {
		return domain.NewValidationError("transfer amount must be positive")
	}
	if fromID == toID {
		return domain.NewValidationError("transfer requires two distinct accounts")
	}

	from, err := s.find(fromID)
	if err != nil {
		return err
	}
	to, err := s.find(toID)
	if err != nil {
		return err
	}

	first, second := from, to
	if first.ID > second.ID {
		first, second = second, first
	}

	if err := s.acquire(ctx, first); err != nil {
		return err
	}
	defer s.release(first)
	if err := s.acquire(ctx, second); err != nil {
		return err
	}
	defer s.release(second)

	s.mu.Lock()
	defer s.mu.Unlock()
	if from.deleted || to.deleted {
		return xerrors.ErrNotFound
	}
	if from.Balance < amount {
		return xerrors.ErrInsufficientFunds
	}

	now := time.Now()
	from.Balance -= amount
	from.UpdatedAt = now
	to.Balance += amount
	to.UpdatedAt = now
	return nil
}

func (s *AccountStore) UpdateProfile(_ context.Context, id int64, field domain.ProfileField, value string) error {
	if !field.Valid() {
		return domain.NewValidationError("unknown profile field")
	}
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError("profile value is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.deleted {
		return xerrors.ErrNotFound
	}

	switch field {
	case domain.FieldHolderName:
		a.HolderName = value
	case domain.FieldHolderAddress:
		a.HolderAddress = value
	case domain.FieldHolderEmail:
		email := normalizeEmail(value)
		if owner, taken := s.emails[email]; taken && owner != id {
			return xerrors.ErrConflict
		}
		delete(s.emails, normalizeEmail(a.HolderEmail))
		s.emails[email] = id
		a.HolderEmail = value
		// A changed address needs verification again.
		a.EmailVerified = false
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (s *AccountStore) UpdatePassword(_ context.Context, id int64, currentHash, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.deleted {
		return xerrors.ErrNotFound
	}
	if a.PasswordHash != currentHash {
		return xerrors.ErrUnauthorized
	}
	a.PasswordHash = newHash
	a.UpdatedAt = time.Now()
	return nil
}

func (s *AccountStore) MarkEmailVerified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.deleted {
		return xerrors.ErrNotFound
	}
	a.EmailVerified = true
	a.UpdatedAt = time.Now()
	return nil
}

// Delete enters the account's critical section first so an in-flight balance
// mutation and the removal cannot interleave.
func (s *AccountStore) Delete(ctx context.Context, id int64) error {
	a, err := s.find(id)
	if err != nil {
		return err
	}
	if err := s.acquire(ctx, a); err != nil {
		return err
	}
	defer s.release(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	if a.deleted {
		return xerrors.ErrNotFound
	}
	a.deleted = true
	delete(s.accounts, id)
	delete(s.emails, normalizeEmail(a.HolderEmail))
	return nil
}
