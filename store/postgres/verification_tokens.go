package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goAccount/model"
)

const verificationTable = "verification_tokens"

var verificationColumns = []string{
	"token_hash",
	"account_id",
	"type",
	"expires_at",
	"used",
	"used_at",
	"attempts",
	"created_at",
}

// VerificationTokens implements goAccount.VerificationTokenStore.
type VerificationTokens struct {
	db      DB
	builder squirrel.StatementBuilderType
}

func NewVerificationTokens(db DB) *VerificationTokens {
	return &VerificationTokens{db: db, builder: statementBuilder()}
}

// Save upserts on token_hash.
func (r *VerificationTokens) Save(ctx context.Context, token *model.VerificationToken) error {
	stmt, args, err := r.builder.Insert(verificationTable).
		Columns(verificationColumns...).
		Values(
			token.Token,
			token.AccountID,
			string(token.Type),
			token.ExpiresAt,
			token.Used,
			nullTime(token.UsedAt),
			token.Attempts,
			token.CreatedAt,
		).
		Suffix("ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at, used = EXCLUDED.used, used_at = EXCLUDED.used_at, attempts = EXCLUDED.attempts").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert verification sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return mapError("insert verification token", err)
	}
	return nil
}

func (r *VerificationTokens) Find(ctx context.Context, tokenHash string) (*model.VerificationToken, error) {
	stmt, args, err := r.builder.Select(verificationColumns...).
		From(verificationTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification sql: %w", err)
	}

	var (
		t      model.VerificationToken
		typ    string
		usedAt sql.NullTime
	)
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(
		&t.Token,
		&t.AccountID,
		&typ,
		&t.ExpiresAt,
		&t.Used,
		&usedAt,
		&t.Attempts,
		&t.CreatedAt,
	); err != nil {
		return nil, mapError("select verification token", err)
	}
	t.Type = model.TokenType(typ)
	t.UsedAt = timePtr(usedAt)
	return &t, nil
}

func (r *VerificationTokens) Consume(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update(verificationTable).
		Set("used", true).
		Set("used_at", at).
		Where(squirrel.Eq{"token_hash": tokenHash, "used": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build consume verification sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return false, mapError("consume verification token", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	if _, err := r.Find(ctx, tokenHash); err != nil {
		return false, err
	}
	return false, nil
}

// RecordFailure increments and, at maxAttempts, deletes in the same transaction.
func (r *VerificationTokens) RecordFailure(ctx context.Context, tokenHash string, maxAttempts int) (int, error) {
	inc, incArgs, err := r.builder.Update(verificationTable).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Suffix("RETURNING attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build record failure sql: %w", err)
	}
	del, delArgs, err := r.builder.Delete(verificationTable).Where(squirrel.Eq{"token_hash": tokenHash}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete verification sql: %w", err)
	}

	var attempts int
	err = inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, inc, incArgs...).Scan(&attempts); err != nil {
			return mapError("record verification failure", err)
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			if _, err := tx.Exec(ctx, del, delArgs...); err != nil {
				return mapError("delete verification token", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *VerificationTokens) DeleteByAccount(ctx context.Context, accountID string, typ model.TokenType) error {
	where := squirrel.Eq{"account_id": accountID}
	if typ != "" {
		where["type"] = string(typ)
	}
	stmt, args, err := r.builder.Delete(verificationTable).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build delete verification sql: %w", err)
	}
	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return mapError("delete verification tokens", err)
	}
	return nil
}

func (r *VerificationTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(verificationTable).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge verification sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, mapError("purge verification tokens", err)
	}
	return int(tag.RowsAffected()), nil
}
