package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/goAccount/model"
)

// Accounts implements goAccount.AccountStore.
type Accounts struct {
	mu      sync.RWMutex
	byID    map[string]*model.Account
	byEmail map[string]string
}

func NewAccounts() *Accounts {
	return &Accounts{
		byID:    make(map[string]*model.Account),
		byEmail: make(map[string]string),
	}
}

func (s *Accounts) FindByID(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *Accounts) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Accounts) Create(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[account.Email]; ok {
		return model.ErrDuplicate
	}
	if _, ok := s.byID[account.ID]; ok {
		return model.ErrDuplicate
	}
	s.byID[account.ID] = account.Clone()
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *Accounts) Save(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[account.ID]
	if !ok {
		return model.ErrNotFound
	}
	if current.Email != account.Email {
		if owner, taken := s.byEmail[account.Email]; taken && owner != account.ID {
			return model.ErrDuplicate
		}
		delete(s.byEmail, current.Email)
		s.byEmail[account.Email] = account.ID
	}
	s.byID[account.ID] = account.Clone()
	return nil
}

func (s *Accounts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(s.byEmail, acct.Email)
	delete(s.byID, id)
	return nil
}

func (s *Accounts) ExistsByRole(_ context.Context, role model.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.byID {
		if acct.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// List orders by creation time, then ID.
func (s *Accounts) List(_ context.Context, offset, limit int) ([]*model.Account, error) {
	s.mu.RLock()
	all := make([]*model.Account, 0, len(s.byID))
	for _, acct := range s.byID {
		all = append(all, acct.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*model.Account{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
