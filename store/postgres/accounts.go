package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goAccount/model"
)

const accountsTable = "accounts"

var accountColumns = []string{
	"id",
	"email",
	"password_hash",
	"role",
	"failed_attempts",
	"locked_until",
	"two_factor_enabled",
	"two_factor_secret",
	"email_verified",
	"email_verified_at",
	"created_at",
	"updated_at",
}

// Accounts implements goAccount.AccountStore.
type Accounts struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewAccounts(exec pgExecutor) *Accounts {
	return &Accounts{exec: exec, builder: statementBuilder()}
}

func (r *Accounts) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

func (r *Accounts) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"email": email})
}

func (r *Accounts) findOne(ctx context.Context, where squirrel.Sqlizer) (*model.Account, error) {
	stmt, args, err := r.builder.Select(accountColumns...).From(accountsTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	acct, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, mapError("select account", err)
	}
	return acct, nil
}

func (r *Accounts) Create(ctx context.Context, account *model.Account) error {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.PasswordHash,
			string(account.Role),
			account.FailedAttempts,
			nullTime(account.LockedUntil),
			account.TwoFactorEnabled,
			account.TwoFactorSecret,
			account.EmailVerified,
			nullTime(account.EmailVerifiedAt),
			account.CreatedAt,
			account.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapError("insert account", err)
	}
	return nil
}

func (r *Accounts) Save(ctx context.Context, account *model.Account) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("email", account.Email).
		Set("password_hash", account.PasswordHash).
		Set("role", string(account.Role)).
		Set("failed_attempts", account.FailedAttempts).
		Set("locked_until", nullTime(account.LockedUntil)).
		Set("two_factor_enabled", account.TwoFactorEnabled).
		Set("two_factor_secret", account.TwoFactorSecret).
		Set("email_verified", account.EmailVerified).
		Set("email_verified_at", nullTime(account.EmailVerifiedAt)).
		Set("updated_at", account.UpdatedAt).
		Where(squirrel.Eq{"id": account.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapError("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Accounts) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(accountsTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapError("delete account", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Accounts) ExistsByRole(ctx context.Context, role model.Role) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From(accountsTable).
		Where(squirrel.Eq{"role": string(role)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build role exists sql: %w", err)
	}

	var one int
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError("select role exists", err)
	}
	return true, nil
}

// List orders by creation time, then ID.
func (r *Accounts) List(ctx context.Context, offset, limit int) ([]*model.Account, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []*model.Account{}, nil
	}

	stmt, args, err := r.builder.Select(accountColumns...).
		From(accountsTable).
		OrderBy("created_at", "id").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, mapError("list accounts", err)
	}
	defer rows.Close()

	out := make([]*model.Account, 0, limit)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		acct            model.Account
		role            string
		lockedUntil     sql.NullTime
		emailVerifiedAt sql.NullTime
	)
	if err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.PasswordHash,
		&role,
		&acct.FailedAttempts,
		&lockedUntil,
		&acct.TwoFactorEnabled,
		&acct.TwoFactorSecret,
		&acct.EmailVerified,
		&emailVerifiedAt,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	); err != nil {
		return nil, err
	}
	acct.Role = model.Role(role)
	acct.LockedUntil = timePtr(lockedUntil)
	acct.EmailVerifiedAt = timePtr(emailVerifiedAt)
	return &acct, nil
}
