package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goAccount/model"
)

// RefreshTokens implements goAccount.RefreshTokenStore.
type RefreshTokens struct {
	mu     sync.Mutex
	byHash map[string]*model.RefreshToken
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{byHash: make(map[string]*model.RefreshToken)}
}

func (s *RefreshTokens) ReplaceForAccount(_ context.Context, token *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, t := range s.byHash {
		if t.AccountID == token.AccountID {
			delete(s.byHash, hash)
		}
	}
	cp := *token
	cp.Token = ""
	s.byHash[token.TokenHash] = &cp
	return nil
}

func (s *RefreshTokens) FindByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *RefreshTokens) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return model.ErrNotFound
	}
	t.Revoke()
	return nil
}

func (s *RefreshTokens) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, t := range s.byHash {
		if t.ID == id {
			delete(s.byHash, hash)
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *RefreshTokens) DeleteByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, t := range s.byHash {
		if t.AccountID == accountID {
			delete(s.byHash, hash)
		}
	}
	return nil
}

// Len is the number of stored tokens, revoked ones included.
func (s *RefreshTokens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// BackupCodes implements goAccount.BackupCodeStore.
type BackupCodes struct {
	mu        sync.Mutex
	byAccount map[string][]*model.BackupCode
}

func NewBackupCodes() *BackupCodes {
	return &BackupCodes{byAccount: make(map[string][]*model.BackupCode)}
}

func (s *BackupCodes) ReplaceForAccount(_ context.Context, accountID string, codes []*model.BackupCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]*model.BackupCode, 0, len(codes))
	for _, c := range codes {
		cp := *c
		fresh = append(fresh, &cp)
	}
	s.byAccount[accountID] = fresh
	return nil
}

func (s *BackupCodes) ListUnused(_ context.Context, accountID string) ([]*model.BackupCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.BackupCode
	for _, c := range s.byAccount[accountID] {
		if c.State() == model.BackupCodeUnused {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *BackupCodes) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, codes := range s.byAccount {
		for _, c := range codes {
			if c.ID == id {
				return c.MarkUsed(at), nil
			}
		}
	}
	return false, model.ErrNotFound
}

func (s *BackupCodes) CountUnused(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.byAccount[accountID] {
		if !c.Used {
			n++
		}
	}
	return n, nil
}

func (s *BackupCodes) DeleteByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAccount, accountID)
	return nil
}

// VerificationTokens implements goAccount.VerificationTokenStore.
type VerificationTokens struct {
	mu     sync.Mutex
	byHash map[string]*model.VerificationToken
}

func NewVerificationTokens() *VerificationTokens {
	return &VerificationTokens{byHash: make(map[string]*model.VerificationToken)}
}

func (s *VerificationTokens) Save(_ context.Context, token *model.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.byHash[token.Token] = &cp
	return nil
}

func (s *VerificationTokens) Find(_ context.Context, tokenHash string) (*model.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *VerificationTokens) Consume(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return false, model.ErrNotFound
	}
	if t.Used {
		return false, nil
	}
	t.Consume(at)
	return true, nil
}

func (s *VerificationTokens) RecordFailure(_ context.Context, tokenHash string, maxAttempts int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return 0, model.ErrNotFound
	}
	t.Attempts++
	if maxAttempts > 0 && t.Attempts >= maxAttempts {
		delete(s.byHash, tokenHash)
	}
	return t.Attempts, nil
}

func (s *VerificationTokens) DeleteByAccount(_ context.Context, accountID string, typ model.TokenType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, t := range s.byHash {
		if t.AccountID == accountID && (typ == "" || t.Type == typ) {
			delete(s.byHash, hash)
		}
	}
	return nil
}

func (s *VerificationTokens) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for hash, t := range s.byHash {
		if !now.Before(t.ExpiresAt) {
			delete(s.byHash, hash)
			n++
		}
	}
	return n, nil
}
