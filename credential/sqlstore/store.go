package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/marketAuth/credential"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrations embed.FS

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	// Postgres uses the pgx stdlib driver.
	Postgres Dialect = "postgres"
	// MySQL uses go-sql-driver/mysql. The DSN must carry parseTime=true.
	MySQL Dialect = "mysql"
)

func (d Dialect) driverName() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", string(d))
	}
}

// Store implements credential.Store over database/sql.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

var _ credential.Store = (*Store)(nil)

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return New(db, dialect), nil
}

// New wraps an existing handle. db's driver name decides the placeholder style.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(string(s.dialect)); err != nil {
		return fmt.Errorf("sqlstore: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations/"+string(s.dialect)); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const accountColumns = `id, email, nickname, phone, password_hash, verified,
	verification_token, verification_expires_at, reset_token_hash, reset_expires_at,
	terms_accepted_at, created_at, updated_at, deleted_at`

type accountRow struct {
	ID                    string         `db:"id"`
	Email                 string         `db:"email"`
	Nickname              string         `db:"nickname"`
	Phone                 string         `db:"phone"`
	PasswordHash          string         `db:"password_hash"`
	Verified              bool           `db:"verified"`
	VerificationToken     sql.NullString `db:"verification_token"`
	VerificationExpiresAt sql.NullTime   `db:"verification_expires_at"`
	ResetTokenHash        sql.NullString `db:"reset_token_hash"`
	ResetExpiresAt        sql.NullTime   `db:"reset_expires_at"`
	TermsAcceptedAt       time.Time      `db:"terms_accepted_at"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
	DeletedAt             sql.NullTime   `db:"deleted_at"`
}

func (r accountRow) account() *credential.Account {
	return &credential.Account{
		ID:                    r.ID,
		Email:                 r.Email,
		Nickname:              r.Nickname,
		Phone:                 r.Phone,
		PasswordHash:          r.PasswordHash,
		Verified:              r.Verified,
		VerificationToken:     r.VerificationToken.String,
		VerificationExpiresAt: timePtr(r.VerificationExpiresAt),
		ResetTokenHash:        r.ResetTokenHash.String,
		ResetExpiresAt:        timePtr(r.ResetExpiresAt),
		TermsAcceptedAt:       r.TermsAcceptedAt.UTC(),
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
		DeletedAt:             timePtr(r.DeletedAt),
	}
}

func (s *Store) CreateAccount(ctx context.Context, acct *credential.Account) error {
	acct.Email = credential.NormalizeEmail(acct.Email)
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	query := s.db.Rebind(`INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		acct.ID, acct.Email, acct.Nickname, acct.Phone, acct.PasswordHash, acct.Verified,
		nullString(acct.VerificationToken), nullTime(acct.VerificationExpiresAt),
		nullString(acct.ResetTokenHash), nullTime(acct.ResetExpiresAt),
		acct.TermsAcceptedAt.UTC(), acct.CreatedAt.UTC(), acct.UpdatedAt, nullTime(acct.DeletedAt),
	)
	if err != nil {
		return translateInsert(err)
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (*credential.Account, error) {
	return s.accountWhere(ctx, "id = ?", id)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*credential.Account, error) {
	return s.accountWhere(ctx, "email = ?", credential.NormalizeEmail(email))
}

func (s *Store) AccountByNickname(ctx context.Context, nickname string) (*credential.Account, error) {
	return s.accountWhere(ctx, "nickname = ?", nickname)
}

func (s *Store) AccountByVerificationToken(ctx context.Context, token string) (*credential.Account, error) {
	if token == "" {
		return nil, credential.ErrNotFound
	}
	return s.accountWhere(ctx, "verification_token = ?", token)
}

func (s *Store) AccountByResetTokenHash(ctx context.Context, hash string) (*credential.Account, error) {
	if hash == "" {
		return nil, credential.ErrNotFound
	}
	return s.accountWhere(ctx, "reset_token_hash = ?", hash)
}

func (s *Store) accountWhere(ctx context.Context, cond string, arg any) (*credential.Account, error) {
	query := s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE ` + cond + ` AND deleted_at IS NULL`)
	var row accountRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: load account: %w", err)
	}
	return row.account(), nil
}

func (s *Store) DeleteUnverifiedAccount(ctx context.Context, id string) error {
	query := s.db.Rebind(`DELETE FROM accounts WHERE id = ? AND verified = FALSE AND deleted_at IS NULL`)
	return s.execOne(ctx, "delete unverified account", query, id)
}

func (s *Store) SetVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	query := s.db.Rebind(`UPDATE accounts SET verification_token = ?, verification_expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`)
	return s.execOne(ctx, "set verification token", query, token, expiresAt.UTC(), s.now().UTC(), id)
}

func (s *Store) MarkVerified(ctx context.Context, id, token string, now time.Time) error {
	if token == "" {
		return credential.ErrNotFound
	}
	query := s.db.Rebind(`UPDATE accounts SET verified = TRUE, verification_token = NULL, verification_expires_at = NULL, updated_at = ?
		WHERE id = ? AND verification_token = ? AND verification_expires_at > ? AND verified = FALSE AND deleted_at IS NULL`)
	return s.execOne(ctx, "mark verified", query, s.now().UTC(), id, token, now.UTC())
}

func (s *Store) SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := s.db.Rebind(`UPDATE accounts SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`)
	return s.execOne(ctx, "set password reset", query, tokenHash, expiresAt.UTC(), s.now().UTC(), id)
}

func (s *Store) ConsumePasswordReset(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	if tokenHash == "" {
		return credential.ErrNotFound
	}
	query := s.db.Rebind(`UPDATE accounts SET password_hash = ?, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = ?
		WHERE id = ? AND reset_token_hash = ? AND reset_expires_at > ? AND deleted_at IS NULL`)
	return s.execOne(ctx, "consume password reset", query, passwordHash, s.now().UTC(), id, tokenHash, now.UTC())
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := s.db.Rebind(`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`)
	return s.execOne(ctx, "update password hash", query, passwordHash, s.now().UTC(), id)
}

const refreshColumns = `id, account_id, token_hash, issued_at, expires_at, revoked_at`

type refreshRow struct {
	ID        string       `db:"id"`
	AccountID string       `db:"account_id"`
	TokenHash string       `db:"token_hash"`
	IssuedAt  time.Time    `db:"issued_at"`
	ExpiresAt time.Time    `db:"expires_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
}

func (s *Store) CreateRefreshCredential(ctx context.Context, cred *credential.RefreshCredential) error {
	return s.insertRefresh(ctx, s.db, cred)
}

func (s *Store) insertRefresh(ctx context.Context, ext sqlx.ExtContext, cred *credential.RefreshCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	query := s.db.Rebind(`INSERT INTO refresh_credentials (` + refreshColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := ext.ExecContext(ctx, query,
		cred.ID, cred.AccountID, cred.TokenHash, cred.IssuedAt.UTC(), cred.ExpiresAt.UTC(), nullTime(cred.RevokedAt))
	if err != nil {
		return translateInsert(err)
	}
	return nil
}

func (s *Store) RefreshCredentialByHash(ctx context.Context, tokenHash string) (*credential.RefreshCredential, error) {
	query := s.db.Rebind(`SELECT ` + refreshColumns + ` FROM refresh_credentials WHERE token_hash = ?`)
	var row refreshRow
	if err := s.db.GetContext(ctx, &row, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: load refresh credential: %w", err)
	}
	return &credential.RefreshCredential{
		ID:        row.ID,
		AccountID: row.AccountID,
		TokenHash: row.TokenHash,
		IssuedAt:  row.IssuedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
		RevokedAt: timePtr(row.RevokedAt),
	}, nil
}

func (s *Store) RotateRefreshCredential(ctx context.Context, oldHash string, now time.Time, next *credential.RefreshCredential) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin rotate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := s.db.Rebind(`UPDATE refresh_credentials SET revoked_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?`)
	res, err := tx.ExecContext(ctx, query, now.UTC(), oldHash, now.UTC())
	if err != nil {
		return fmt.Errorf("sqlstore: revoke for rotate: %w", err)
	}
	if err = oneRow(res); err != nil {
		return err
	}
	if err = s.insertRefresh(ctx, tx, next); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit rotate: %w", err)
	}
	return nil
}

func (s *Store) RevokeRefreshCredential(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query := s.db.Rebind(`UPDATE refresh_credentials SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now.UTC(), tokenHash)
	if err != nil {
		return false, fmt.Errorf("sqlstore: revoke refresh credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteRefreshCredentials(ctx context.Context, accountID string) (int64, error) {
	query := s.db.Rebind(`DELETE FROM refresh_credentials WHERE account_id = ?`)
	res, err := s.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: delete refresh credentials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	return n, nil
}

type blockRow struct {
	ID        string       `db:"id"`
	AccountID string       `db:"account_id"`
	Reason    string       `db:"reason"`
	BlockedAt time.Time    `db:"blocked_at"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

func (s *Store) BlockRecords(ctx context.Context, accountID string) ([]credential.BlockRecord, error) {
	query := s.db.Rebind(`SELECT id, account_id, reason, blocked_at, expires_at FROM block_records WHERE account_id = ?`)
	var rows []blockRow
	if err := s.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("sqlstore: load block records: %w", err)
	}
	out := make([]credential.BlockRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, credential.BlockRecord{
			ID:        r.ID,
			AccountID: r.AccountID,
			Reason:    r.Reason,
			BlockedAt: r.BlockedAt.UTC(),
			ExpiresAt: timePtr(r.ExpiresAt),
		})
	}
	return out, nil
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: %s: %w", op, err)
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if n == 0 {
		return credential.ErrNotFound
	}
	return nil
}

// translateInsert maps unique-constraint violations from either driver onto
// the credential sentinels.
func translateInsert(err error) error {
	var constraint string

	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		constraint = pgErr.ConstraintName
	case errors.As(err, &myErr) && myErr.Number == 1062:
		constraint = myErr.Message
		if i := strings.LastIndex(constraint, "for key "); i >= 0 {
			constraint = constraint[i:]
		}
	default:
		return fmt.Errorf("sqlstore: insert: %w", err)
	}

	switch {
	case strings.Contains(constraint, "email"):
		return credential.ErrDuplicateEmail
	case strings.Contains(constraint, "nickname"):
		return credential.ErrDuplicateNickname
	case strings.Contains(constraint, "token_hash"):
		return credential.ErrDuplicateToken
	default:
		return fmt.Errorf("sqlstore: unique violation on %s: %w", constraint, err)
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
