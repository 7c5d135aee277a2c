package goAccount

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/model"
	"go.uber.org/zap"
)

// RequestEmailVerification issues an email verification token and hands it
// to the Notifier. Earlier unused verification tokens of the account are
// discarded. Unknown and already verified emails are a silent no-op.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.verification == nil || e.notifier == nil {
		return ErrEngineNotReady
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		e.logger.Debug("verification requested for unknown email", zap.String("email", maskEmail(email)))
		return nil
	}
	if err != nil {
		return internalError("find account", err)
	}
	if acct.EmailVerified {
		return nil
	}

	plaintext, err := e.issueVerificationToken(ctx, acct.ID, model.TokenEmailVerification, e.config.Verification.EmailTTL)
	if err != nil {
		return err
	}
	if err := e.notifier.SendEmailVerification(ctx, acct.Email, plaintext); err != nil {
		return internalError("send verification email", err)
	}

	e.metricInc(MetricEmailVerificationSent)
	e.emitAudit(ctx, auditEventEmailVerificationSent, true, acct.ID, nil, nil)
	return nil
}

// VerifyEmail redeems an email verification token.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.verification == nil {
		return ErrEngineNotReady
	}

	vt, err := e.redeemVerificationToken(ctx, token, model.TokenEmailVerification)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(vt.AccountID)
	defer unlock()

	acct, err := e.loadAccount(ctx, vt.AccountID, ErrVerificationTokenInvalid)
	if err != nil {
		return err
	}
	acct.MarkEmailVerified(e.now())
	if err := e.saveAccount(ctx, acct); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerified, true, acct.ID, nil, nil)
	return nil
}

// issueVerificationToken replaces the account's tokens of typ with a new one
// and returns its plaintext.
func (e *Engine) issueVerificationToken(ctx context.Context, accountID string, typ model.TokenType, ttl time.Duration) (string, error) {
	if err := e.verification.DeleteByAccount(ctx, accountID, typ); err != nil {
		return "", internalError("delete verification tokens", err)
	}

	plaintext, hash, err := newTokenValue()
	if err != nil {
		return "", err
	}

	now := e.now()
	if err := e.verification.Save(ctx, &model.VerificationToken{
		Token:     hash,
		AccountID: accountID,
		Type:      typ,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return "", internalError("store verification token", err)
	}
	return plaintext, nil
}

// peekVerificationToken loads a usable token of typ without consuming it.
// Every rejection is ErrVerificationTokenInvalid.
func (e *Engine) peekVerificationToken(ctx context.Context, token string, typ model.TokenType) (*model.VerificationToken, error) {
	if token == "" {
		return nil, ErrVerificationTokenInvalid
	}

	vt, err := e.verification.Find(ctx, internal.HashToken(token))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrVerificationTokenInvalid
	}
	if err != nil {
		return nil, internalError("find verification token", err)
	}
	if !vt.Usable(typ, e.now()) {
		return nil, ErrVerificationTokenInvalid
	}
	return vt, nil
}

// redeemVerificationToken is peekVerificationToken followed by a consume;
// of two concurrent redemptions only one succeeds.
func (e *Engine) redeemVerificationToken(ctx context.Context, token string, typ model.TokenType) (*model.VerificationToken, error) {
	vt, err := e.peekVerificationToken(ctx, token, typ)
	if err != nil {
		return nil, err
	}

	consumed, err := e.verification.Consume(ctx, vt.Token, e.now())
	if errors.Is(err, model.ErrNotFound) || (err == nil && !consumed) {
		return nil, ErrVerificationTokenInvalid
	}
	if err != nil {
		return nil, internalError("consume verification token", err)
	}
	return vt, nil
}
