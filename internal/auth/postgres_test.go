package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newPGStoreWithMock(t *testing.T) (*PGStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPGStore(db), mock, db
}

func userRow(u *User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "full_name", "email", "phone_number", "hashed_password",
		"role", "status", "email_verified", "phone_verified", "created_at", "updated_at",
	}).AddRow(u.ID, u.FullName, u.Email, u.PhoneNumber, u.HashedPassword,
		u.Role, u.Status, u.EmailVerified, u.PhoneVerified, u.CreatedAt, u.UpdatedAt)
}

func TestUserCreateUniqueViolation(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`insert into users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Users(context.Background()).Create(context.Background(), &User{
		FullName:       "Alice",
		Email:          "alice@example.com",
		HashedPassword: "digest",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserCreateDefaultsRoleAndStatus(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`insert into users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &User{FullName: "Alice", Email: "Alice@Example.com", HashedPassword: "digest"}
	if err := store.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if u.Role != RoleUser || u.Status != StatusActive {
		t.Fatalf("expected defaults applied, got role=%q status=%q", u.Role, u.Status)
	}
}

func TestUserFindByEmailLowercases(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`select .* from users where email=\$1`).
		WithArgs("alice@example.com").
		WillReturnRows(userRow(&User{
			ID: "u-1", FullName: "Alice", Email: "alice@example.com",
			HashedPassword: "digest", Role: RoleUser, Status: StatusActive,
			CreatedAt: now, UpdatedAt: now,
		}))

	got, err := store.Users(context.Background()).FindByEmail(context.Background(), "Alice@Example.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != "u-1" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUserFindNotFound(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`select .* from users where id=\$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Users(context.Background()).Find(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserDeleteNotFound(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`delete from users where id=\$1`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Users(context.Background()).Delete(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialInvalidate(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`update credentials set is_active=false where id=\$1`).
		WithArgs("cred-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Credentials(context.Background()).Invalidate(context.Background(), "cred-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
}

func TestCredentialInvalidateAllScopes(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`update credentials set is_active=false where owner_id=\$1 and kind=\$2`).
		WithArgs("owner-1", KindRefresh).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`update credentials set is_active=false where owner_id=\$1`).
		WithArgs("owner-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	creds := store.Credentials(context.Background())
	if err := creds.InvalidateAll(context.Background(), "owner-1", KindRefresh); err != nil {
		t.Fatalf("InvalidateAll(kind): %v", err)
	}
	if err := creds.InvalidateAll(context.Background(), "owner-1", ""); err != nil {
		t.Fatalf("InvalidateAll(all): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCredentialDeleteExpired(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	cutoff := time.Now().UTC()
	mock.ExpectExec(`delete from credentials where expires_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.Credentials(context.Background()).DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 rows removed, got %d", n)
	}
}

func TestReplacePasswordCommitsBothUpdates(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`update users set hashed_password=\$2`).
		WithArgs("u-1", "new-digest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update credentials set is_active=false where owner_id=\$1 and kind=\$2`).
		WithArgs("u-1", KindReset).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := store.ReplacePassword(context.Background(), "u-1", "new-digest"); err != nil {
		t.Fatalf("ReplacePassword: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplacePasswordUnknownUserRollsBack(t *testing.T) {
	store, mock, db := newPGStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`update users set hashed_password=\$2`).
		WithArgs("ghost", "new-digest").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := store.ReplacePassword(context.Background(), "ghost", "new-digest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
