package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/model"
)

var (
	_ goAccount.AccountStore           = (*Accounts)(nil)
	_ goAccount.RefreshTokenStore      = (*RefreshTokens)(nil)
	_ goAccount.BackupCodeStore        = (*BackupCodes)(nil)
	_ goAccount.VerificationTokenStore = (*VerificationTokens)(nil)
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSchemaAppliesEmbeddedDDL(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	if err := Schema(context.Background(), mock); err != nil {
		t.Fatalf("Schema: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAccountsCreateMapsUniqueViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewAccounts(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs("acct-1", "a@x.com", "", "ROLE_USER", 0, sql.NullTime{}, false, "", false, sql.NullTime{}, now, now).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := repo.Create(context.Background(), &model.Account{
		ID:        "acct-1",
		Email:     "a@x.com",
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAccountsFindByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewAccounts(mock)
	now := time.Now().UTC()
	locked := now.Add(time.Minute)

	rows := pgxmock.NewRows(accountColumns).AddRow(
		"acct-1", "a@x.com", "$argon2id$...", "ROLE_ADMIN", 2, locked, true, "SECRET", false, nil, now, now,
	)
	mock.ExpectQuery(`SELECT .* FROM accounts WHERE email = \$1`).WithArgs("a@x.com").WillReturnRows(rows)

	acct, err := repo.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if acct.ID != "acct-1" || acct.Role != model.RoleAdmin || acct.FailedAttempts != 2 {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.LockedUntil == nil || !acct.LockedUntil.Equal(locked) {
		t.Fatalf("expected locked_until populated, got %v", acct.LockedUntil)
	}
	if acct.EmailVerifiedAt != nil {
		t.Fatalf("expected nil email_verified_at, got %v", acct.EmailVerifiedAt)
	}
	expectationsMet(t, mock)
}

func TestAccountsFindByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewAccounts(mock)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAccountsSaveUnknownIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewAccounts(mock)

	mock.ExpectExec(`UPDATE accounts SET .* WHERE id = \$11`).
		WithArgs("a@x.com", "", "ROLE_USER", 0, sql.NullTime{}, false, "", false, sql.NullTime{}, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Save(context.Background(), &model.Account{ID: "missing", Email: "a@x.com", Role: model.RoleUser})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAccountsExistsByRole(t *testing.T) {
	mock := newMock(t)
	repo := NewAccounts(mock)

	mock.ExpectQuery(`SELECT 1 FROM accounts WHERE role = \$1 LIMIT 1`).
		WithArgs("ROLE_ADMIN").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT 1 FROM accounts WHERE role = \$1 LIMIT 1`).
		WithArgs("ROLE_USER").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.ExistsByRole(context.Background(), model.RoleAdmin)
	if err != nil || ok {
		t.Fatalf("admin: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ExistsByRole(context.Background(), model.RoleUser)
	if err != nil || !ok {
		t.Fatalf("user: ok=%v err=%v", ok, err)
	}
	expectationsMet(t, mock)
}

func TestAccountsListOrdersAndPages(t *testing.T) {
	mock := newMock(t)
	repo := NewAccounts(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(accountColumns).
		AddRow("acct-2", "b@x.com", "h", "ROLE_USER", 0, nil, false, "", true, now, now, now).
		AddRow("acct-3", "c@x.com", "h", "ROLE_USER", 0, nil, false, "", false, nil, now, now)
	mock.ExpectQuery(`SELECT .* FROM accounts ORDER BY created_at, id LIMIT 2 OFFSET 1`).WillReturnRows(rows)

	out, err := repo.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 || out[0].ID != "acct-2" || out[1].ID != "acct-3" {
		t.Fatalf("unexpected page: %+v", out)
	}
	if out[0].EmailVerifiedAt == nil {
		t.Fatal("expected email_verified_at on first row")
	}
	expectationsMet(t, mock)
}

func TestRefreshReplaceForAccountIsTransactional(t *testing.T) {
	mock := newMock(t)
	repo := NewRefreshTokens(mock)
	now := time.Now().UTC()
	token := &model.RefreshToken{
		ID:        "rt-1",
		AccountID: "acct-1",
		TokenHash: "hash",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE account_id = \$1`).
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs("rt-1", "acct-1", "hash", token.ExpiresAt, false, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.ReplaceForAccount(context.Background(), token); err != nil {
		t.Fatalf("ReplaceForAccount: %v", err)
	}
	expectationsMet(t, mock)
}

func TestRefreshReplaceForAccountRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewRefreshTokens(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM refresh_tokens`).
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs("rt-1", "acct-1", pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.ReplaceForAccount(context.Background(), &model.RefreshToken{ID: "rt-1", AccountID: "acct-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	expectationsMet(t, mock)
}

func TestRefreshRevokeUnknownIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewRefreshTokens(mock)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = \$1 WHERE token_hash = \$2`).
		WithArgs(true, "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Revoke(context.Background(), "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestBackupCodesMarkUsed(t *testing.T) {
	mock := newMock(t)
	repo := NewBackupCodes(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE backup_codes SET used = \$1, used_at = \$2 WHERE id = \$3 AND used = \$4`).
		WithArgs(true, at, "bc-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE backup_codes`).
		WithArgs(true, at, "bc-1", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM backup_codes WHERE id = \$1`).
		WithArgs("bc-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(`UPDATE backup_codes`).
		WithArgs(true, at, "missing", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM backup_codes WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	ctx := context.Background()
	if ok, err := repo.MarkUsed(ctx, "bc-1", at); err != nil || !ok {
		t.Fatalf("first mark: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.MarkUsed(ctx, "bc-1", at); err != nil || ok {
		t.Fatalf("second mark: ok=%v err=%v", ok, err)
	}
	if _, err := repo.MarkUsed(ctx, "missing", at); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestBackupCodesReplaceInsertsBatch(t *testing.T) {
	mock := newMock(t)
	repo := NewBackupCodes(mock)

	codes := []*model.BackupCode{
		{ID: "bc-1", CodeHash: "h1"},
		{ID: "bc-2", CodeHash: "h2"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM backup_codes WHERE account_id = \$1`).
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 10))
	mock.ExpectExec(`INSERT INTO backup_codes \(id,account_id,code_hash,used,used_at\) VALUES \(\$1,\$2,\$3,\$4,\$5\),\(\$6,\$7,\$8,\$9,\$10\)`).
		WithArgs(
			"bc-1", "acct-1", "h1", false, sql.NullTime{},
			"bc-2", "acct-1", "h2", false, sql.NullTime{},
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	if err := repo.ReplaceForAccount(context.Background(), "acct-1", codes); err != nil {
		t.Fatalf("ReplaceForAccount: %v", err)
	}
	expectationsMet(t, mock)
}

func TestBackupCodesCountUnused(t *testing.T) {
	mock := newMock(t)
	repo := NewBackupCodes(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM backup_codes WHERE account_id = \$1 AND used = \$2`).
		WithArgs("acct-1", false).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountUnused(context.Background(), "acct-1")
	if err != nil || n != 7 {
		t.Fatalf("CountUnused: n=%d err=%v", n, err)
	}
	expectationsMet(t, mock)
}

func TestVerificationConsumeAlreadyUsed(t *testing.T) {
	mock := newMock(t)
	repo := NewVerificationTokens(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE verification_tokens SET used = \$1, used_at = \$2 WHERE token_hash = \$3 AND used = \$4`).
		WithArgs(true, at, "hash", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .* FROM verification_tokens WHERE token_hash = \$1`).
		WithArgs("hash").
		WillReturnRows(pgxmock.NewRows(verificationColumns).
			AddRow("hash", "acct-1", "PASSWORD_RESET", at.Add(time.Hour), true, at, 0, at))

	ok, err := repo.Consume(context.Background(), "hash", at)
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
	expectationsMet(t, mock)
}

func TestVerificationRecordFailureDeletesAtMax(t *testing.T) {
	mock := newMock(t)
	repo := NewVerificationTokens(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE verification_tokens SET attempts = attempts \+ 1 WHERE token_hash = \$1 RETURNING attempts`).
		WithArgs("hash").
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(5))
	mock.ExpectExec(`DELETE FROM verification_tokens WHERE token_hash = \$1`).
		WithArgs("hash").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	n, err := repo.RecordFailure(context.Background(), "hash", 5)
	if err != nil || n != 5 {
		t.Fatalf("RecordFailure: n=%d err=%v", n, err)
	}
	expectationsMet(t, mock)
}

func TestVerificationRecordFailureUnknown(t *testing.T) {
	mock := newMock(t)
	repo := NewVerificationTokens(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE verification_tokens SET attempts`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if _, err := repo.RecordFailure(context.Background(), "nope", 5); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestVerificationDeleteByAccountFiltersType(t *testing.T) {
	mock := newMock(t)
	repo := NewVerificationTokens(mock)

	mock.ExpectExec(`DELETE FROM verification_tokens WHERE account_id = \$1 AND type = \$2`).
		WithArgs("acct-1", "PASSWORD_RESET").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM verification_tokens WHERE account_id = \$1$`).
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	ctx := context.Background()
	if err := repo.DeleteByAccount(ctx, "acct-1", model.TokenPasswordReset); err != nil {
		t.Fatalf("typed delete: %v", err)
	}
	if err := repo.DeleteByAccount(ctx, "acct-1", ""); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	expectationsMet(t, mock)
}

func TestVerificationDeleteExpiredReturnsCount(t *testing.T) {
	mock := newMock(t)
	repo := NewVerificationTokens(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM verification_tokens WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil || n != 4 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}
	expectationsMet(t, mock)
}
