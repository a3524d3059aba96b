package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &userStore{db: s.db} }

func (s *PGStore) Credentials(context.Context) CredentialStore {
	return &credentialStore{db: s.db}
}

// ReplacePassword updates the password hash and revokes all outstanding reset
// credentials in one transaction, so a half-applied reset can never survive.
func (s *PGStore) ReplacePassword(ctx context.Context, userID, passwordHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update users set hashed_password=$2, updated_at=now() where id=$1`,
		userID, passwordHash,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`update credentials set is_active=false where owner_id=$1 and kind=$2`,
		userID, KindReset,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, full_name, email, phone_number, hashed_password, role, status,
	email_verified, phone_verified, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, full_name, email, phone_number, hashed_password, role, status)
		 values($1,$2,$3,nullif($4,''),$5,$6,$7)`,
		u.ID, u.FullName, strings.ToLower(u.Email), u.PhoneNumber, u.HashedPassword, u.Role, u.Status,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, strings.ToLower(email))
	return scanUser(row)
}

func (s *userStore) Update(ctx context.Context, id string, patch UserUpdate) (*User, error) {
	if patch.Empty() {
		return s.Find(ctx, id)
	}
	row := s.db.QueryRowContext(ctx,
		`update users set
			full_name      = coalesce($2, full_name),
			phone_number   = coalesce($3, phone_number),
			role           = coalesce($4, role),
			status         = coalesce($5, status),
			email_verified = coalesce($6, email_verified),
			phone_verified = coalesce($7, phone_verified),
			updated_at     = now()
		 where id=$1
		 returning `+userColumns,
		id, patch.FullName, patch.PhoneNumber, patch.Role, patch.Status,
		patch.EmailVerified, patch.PhoneVerified,
	)
	return scanUser(row)
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u     User
		phone sql.NullString
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &phone, &u.HashedPassword,
		&u.Role, &u.Status, &u.EmailVerified, &u.PhoneVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.PhoneNumber = phone.String
	return &u, nil
}

// Credential store -----------------------------------------------------------
type credentialStore struct{ db *sql.DB }

const credentialColumns = `id, owner_id, kind, issued_at, expires_at, is_active, user_agent, ip_address`

func (s *credentialStore) Create(ctx context.Context, c *Credential) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = time.Now().UTC()
	}
	c.IsActive = true
	_, err := s.db.ExecContext(ctx,
		`insert into credentials(id, owner_id, kind, issued_at, expires_at, is_active, user_agent, ip_address)
		 values($1,$2,$3,$4,$5,true,nullif($6,''),nullif($7,''))`,
		c.ID, c.OwnerID, c.Kind, c.IssuedAt, c.ExpiresAt, c.UserAgent, c.IPAddress,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *credentialStore) Get(ctx context.Context, id string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+credentialColumns+` from credentials where id=$1`, id)
	return scanCredential(row)
}

func (s *credentialStore) GetAllForOwner(ctx context.Context, ownerID string, kind Kind) ([]*Credential, error) {
	query := `select ` + credentialColumns + ` from credentials where owner_id=$1`
	args := []any{ownerID}
	if kind != "" {
		query += ` and kind=$2`
		args = append(args, kind)
	}
	query += ` order by issued_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *credentialStore) Invalidate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update credentials set is_active=false where id=$1`, id)
	return err
}

func (s *credentialStore) InvalidateAll(ctx context.Context, ownerID string, kind Kind) error {
	if kind == "" {
		_, err := s.db.ExecContext(ctx,
			`update credentials set is_active=false where owner_id=$1`, ownerID)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`update credentials set is_active=false where owner_id=$1 and kind=$2`, ownerID, kind)
	return err
}

func (s *credentialStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from credentials where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		c         Credential
		userAgent sql.NullString
		ipAddress sql.NullString
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Kind, &c.IssuedAt, &c.ExpiresAt,
		&c.IsActive, &userAgent, &ipAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.UserAgent = userAgent.String
	c.IPAddress = ipAddress.String
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
