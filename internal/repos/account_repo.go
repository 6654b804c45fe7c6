package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrEmailTaken = errors.New("email already registered")

// Account is an identity provider credential. Its id is the uid shared by
// the domain profile record.
type Account struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	Hash      string `db:"password_hash"`
	Role      string `db:"role"`
	CreatedAt string `db:"created_at"`
}

type AccountRepo struct{ DB *sqlx.DB }

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{DB: db} }

func (r *AccountRepo) Create(ctx context.Context, a Account) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO accounts(id,email,password_hash,role) VALUES(?,?,?,?)`,
		a.ID, a.Email, a.Hash, a.Role)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrEmailTaken
	}
	return err
}

func (r *AccountRepo) ByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := r.DB.GetContext(ctx, &a, `SELECT id,email,password_hash,role,COALESCE(created_at,'') AS created_at FROM accounts WHERE LOWER(email)=LOWER(?)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) ByID(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := r.DB.GetContext(ctx, &a, `SELECT id,email,password_hash,role,COALESCE(created_at,'') AS created_at FROM accounts WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM accounts WHERE id=?`, id)
	return err
}

func (r *AccountRepo) BindSession(ctx context.Context, sid, userID string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sessions(id,user_id,last_seen)
                          VALUES(?,?,CURRENT_TIMESTAMP)
                          ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=CURRENT_TIMESTAMP`, sid, userID)
	return err
}

// SessionAccount returns the account bound to sid, or ErrNotFound.
func (r *AccountRepo) SessionAccount(ctx context.Context, sid string) (*Account, error) {
	var a Account
	err := r.DB.GetContext(ctx, &a, `
      SELECT a.id,a.email,a.password_hash,a.role,COALESCE(a.created_at,'') AS created_at
      FROM sessions s
      JOIN accounts a ON a.id=s.user_id
      WHERE s.id=?`, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE sessions SET user_id=NULL,last_seen=CURRENT_TIMESTAMP WHERE id=?`, sid)
	return err
}

// UnbindUser signs a user out of every live session.
func (r *AccountRepo) UnbindUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE sessions SET user_id=NULL,last_seen=CURRENT_TIMESTAMP WHERE user_id=?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
