package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goAccount/model"
)

const refreshTable = "refresh_tokens"

var refreshColumns = []string{"id", "account_id", "token_hash", "expires_at", "revoked", "created_at"}

// RefreshTokens implements goAccount.RefreshTokenStore.
type RefreshTokens struct {
	db      DB
	builder squirrel.StatementBuilderType
}

func NewRefreshTokens(db DB) *RefreshTokens {
	return &RefreshTokens{db: db, builder: statementBuilder()}
}

// ReplaceForAccount deletes the account's tokens and inserts token in one
// transaction.
func (r *RefreshTokens) ReplaceForAccount(ctx context.Context, token *model.RefreshToken) error {
	del, delArgs, err := r.builder.Delete(refreshTable).Where(squirrel.Eq{"account_id": token.AccountID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete refresh sql: %w", err)
	}
	ins, insArgs, err := r.builder.Insert(refreshTable).
		Columns(refreshColumns...).
		Values(token.ID, token.AccountID, token.TokenHash, token.ExpiresAt, token.Revoked, token.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh sql: %w", err)
	}

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, del, delArgs...); err != nil {
			return mapError("delete refresh tokens", err)
		}
		if _, err := tx.Exec(ctx, ins, insArgs...); err != nil {
			return mapError("insert refresh token", err)
		}
		return nil
	})
}

func (r *RefreshTokens) FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshColumns...).
		From(refreshTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh sql: %w", err)
	}

	var t model.RefreshToken
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(
		&t.ID,
		&t.AccountID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.Revoked,
		&t.CreatedAt,
	); err != nil {
		return nil, mapError("select refresh token", err)
	}
	return &t, nil
}

func (r *RefreshTokens) Revoke(ctx context.Context, tokenHash string) error {
	stmt, args, err := r.builder.Update(refreshTable).
		Set("revoked", true).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke refresh sql: %w", err)
	}
	return r.execAffecting(ctx, "revoke refresh token", stmt, args)
}

func (r *RefreshTokens) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(refreshTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete refresh sql: %w", err)
	}
	return r.execAffecting(ctx, "delete refresh token", stmt, args)
}

func (r *RefreshTokens) DeleteByAccount(ctx context.Context, accountID string) error {
	stmt, args, err := r.builder.Delete(refreshTable).Where(squirrel.Eq{"account_id": accountID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete refresh sql: %w", err)
	}
	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return mapError("delete refresh tokens", err)
	}
	return nil
}

func (r *RefreshTokens) execAffecting(ctx context.Context, op, stmt string, args []any) error {
	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
