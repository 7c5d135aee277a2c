package goAccount

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// createRefreshToken replaces every refresh token of accountID with a new
// one. Concurrent calls for one account leave exactly one active token: the
// last writer's.
func (e *Engine) createRefreshToken(ctx context.Context, accountID string) (*model.RefreshToken, error) {
	unlock := e.locks.Lock(accountID)
	defer unlock()
	return e.replaceRefreshToken(ctx, accountID)
}

// replaceRefreshToken requires the caller to hold the account lock.
func (e *Engine) replaceRefreshToken(ctx context.Context, accountID string) (*model.RefreshToken, error) {
	plaintext, hash, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	now := e.now()
	token := &model.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: hash,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		CreatedAt: now,
	}

	if err := e.refresh.ReplaceForAccount(ctx, token); err != nil {
		return nil, internalError("store refresh token", err)
	}

	token.Token = plaintext
	return token, nil
}

// verifyRefreshToken resolves a presented token to its account. An expired
// token is deleted as a side effect.
func (e *Engine) verifyRefreshToken(ctx context.Context, plaintext string) (*model.RefreshToken, *model.Account, error) {
	if plaintext == "" {
		return nil, nil, ErrTokenNotFound
	}

	token, err := e.refresh.FindByHash(ctx, internal.HashToken(plaintext))
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, nil, internalError("find refresh token", err)
	}

	if err := e.checkRefreshState(ctx, token); err != nil {
		return nil, nil, err
	}

	acct, err := e.loadAccount(ctx, token.AccountID, ErrTokenNotFound)
	if err != nil {
		return nil, nil, err
	}
	return token, acct, nil
}

func (e *Engine) checkRefreshState(ctx context.Context, token *model.RefreshToken) error {
	switch token.State(e.now()) {
	case model.RefreshExpired:
		if err := e.refresh.Delete(ctx, token.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
			e.logger.Error("delete expired refresh token failed",
				zap.String("account_id", token.AccountID),
				zap.Error(err),
			)
		}
		return ErrTokenExpired
	case model.RefreshRevoked:
		return ErrTokenRevoked
	}
	return nil
}

// revokeRefreshToken is idempotent: unknown tokens are not an error.
func (e *Engine) revokeRefreshToken(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	hash := internal.HashToken(plaintext)

	token, err := e.refresh.FindByHash(ctx, hash)
	if errors.Is(err, model.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", internalError("find refresh token", err)
	}

	if err := e.refresh.Revoke(ctx, hash); err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", internalError("revoke refresh token", err)
	}
	return token.AccountID, nil
}

func (e *Engine) revokeAllRefreshTokens(ctx context.Context, accountID string) error {
	if err := e.refresh.DeleteByAccount(ctx, accountID); err != nil {
		return internalError("delete refresh tokens", err)
	}
	return nil
}
