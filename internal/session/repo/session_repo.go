package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepo persists issued session ids so logout can revoke a token
// before it expires. Table `sessions` is created by migration 000001.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Save(ctx context.Context, id string, userID int64, expiresAt time.Time) error {
	const q = `INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, q, id, userID, expiresAt)
	return err
}

// Active reports whether id exists and has not expired.
func (r *SessionRepo) Active(ctx context.Context, id string, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1 AND expires_at > $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, id, now); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteExpired removes sessions that expired before cutoff.
func (r *SessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
