package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goAccount/model"
)

const backupTable = "backup_codes"

// BackupCodes implements goAccount.BackupCodeStore.
type BackupCodes struct {
	db      DB
	builder squirrel.StatementBuilderType
}

func NewBackupCodes(db DB) *BackupCodes {
	return &BackupCodes{db: db, builder: statementBuilder()}
}

func (r *BackupCodes) ReplaceForAccount(ctx context.Context, accountID string, codes []*model.BackupCode) error {
	del, delArgs, err := r.builder.Delete(backupTable).Where(squirrel.Eq{"account_id": accountID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete backup codes sql: %w", err)
	}

	var (
		ins     string
		insArgs []any
	)
	if len(codes) > 0 {
		q := r.builder.Insert(backupTable).Columns("id", "account_id", "code_hash", "used", "used_at")
		for _, c := range codes {
			q = q.Values(c.ID, accountID, c.CodeHash, c.Used, nullTime(c.UsedAt))
		}
		ins, insArgs, err = q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert backup codes sql: %w", err)
		}
	}

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, del, delArgs...); err != nil {
			return mapError("delete backup codes", err)
		}
		if ins == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, ins, insArgs...); err != nil {
			return mapError("insert backup codes", err)
		}
		return nil
	})
}

func (r *BackupCodes) ListUnused(ctx context.Context, accountID string) ([]*model.BackupCode, error) {
	stmt, args, err := r.builder.Select("id", "account_id", "code_hash", "used", "used_at").
		From(backupTable).
		Where(squirrel.Eq{"account_id": accountID, "used": false}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list backup codes sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, mapError("list backup codes", err)
	}
	defer rows.Close()

	var out []*model.BackupCode
	for rows.Next() {
		var (
			c      model.BackupCode
			usedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CodeHash, &c.Used, &usedAt); err != nil {
			return nil, fmt.Errorf("scan backup code: %w", err)
		}
		c.UsedAt = timePtr(usedAt)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup codes: %w", err)
	}
	return out, nil
}

// MarkUsed is a conditional update; the row count tells whether this caller
// won the code.
func (r *BackupCodes) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update(backupTable).
		Set("used", true).
		Set("used_at", at).
		Where(squirrel.Eq{"id": id, "used": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build mark backup code sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return false, mapError("mark backup code", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, model.ErrNotFound
	}
	return false, nil
}

func (r *BackupCodes) exists(ctx context.Context, id string) (bool, error) {
	stmt, args, err := r.builder.Select("1").From(backupTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build backup code exists sql: %w", err)
	}
	var one int
	err = r.db.QueryRow(ctx, stmt, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError("select backup code", err)
	}
	return true, nil
}

func (r *BackupCodes) CountUnused(ctx context.Context, accountID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From(backupTable).
		Where(squirrel.Eq{"account_id": accountID, "used": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count backup codes sql: %w", err)
	}

	var n int
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, mapError("count backup codes", err)
	}
	return n, nil
}

func (r *BackupCodes) DeleteByAccount(ctx context.Context, accountID string) error {
	stmt, args, err := r.builder.Delete(backupTable).Where(squirrel.Eq{"account_id": accountID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete backup codes sql: %w", err)
	}
	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return mapError("delete backup codes", err)
	}
	return nil
}
