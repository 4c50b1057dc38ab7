package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-election/pkg/database"
)

// UserRepo provides data access for the users and voters tables using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, cnie, name, role, email, password_hash, created_at`

// GetByCNIE returns sql.ErrNoRows when no account carries cnie.
func (r *UserRepo) GetByCNIE(ctx context.Context, cnie string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE cnie = $1`, cnie); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

const voterColumns = `id, user_id, region_id, is_eligible, region_confirmed, registered_at`

func (r *UserRepo) GetVoterByUserID(ctx context.Context, userID int64) (*entity.Voter, error) {
	var v entity.Voter
	if err := r.db.GetContext(ctx, &v, `SELECT `+voterColumns+` FROM voters WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &v, nil
}

// EnsureVoter creates the voter extension of userID in the placeholder region
// unless one exists, and returns the stored row either way. Concurrent first
// logins converge on the single row guarded by voters_user_id_key.
func (r *UserRepo) EnsureVoter(ctx context.Context, userID, regionID int64) (*entity.Voter, bool, error) {
	const q = `INSERT INTO voters (user_id, region_id, is_eligible, region_confirmed)
	           VALUES ($1, $2, true, false)
	           ON CONFLICT (user_id) DO NOTHING
	           RETURNING ` + voterColumns
	var v entity.Voter
	rows, err := r.db.QueryxContext(ctx, q, userID, regionID)
	if err != nil {
		return nil, false, err
	}
	created := false
	if rows.Next() {
		if err := rows.StructScan(&v); err != nil {
			rows.Close()
			return nil, false, err
		}
		created = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if created {
		return &v, true, nil
	}
	existing, err := r.GetVoterByUserID(ctx, userID)
	return existing, false, err
}

// Create inserts a user and, for voters, its voter row in one transaction.
func (r *UserRepo) Create(ctx context.Context, u *entity.User, regionID int64) (int64, error) {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const q = `INSERT INTO users (cnie, name, role, email, password_hash)
		           VALUES (:cnie, :name, :role, :email, :password_hash) RETURNING id`
		stmt, err := tx.PrepareNamedContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close()
		if err := stmt.GetContext(ctx, &u.ID, u); err != nil {
			return err
		}
		if u.Role != entity.RoleVoter {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO voters (user_id, region_id, is_eligible, region_confirmed) VALUES ($1, $2, true, true)`,
			u.ID, regionID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// List returns all users, newest first, with their voter details if any.
func (r *UserRepo) List(ctx context.Context) ([]entity.UserListItem, error) {
	const q = `
SELECT u.id, u.cnie, u.name, u.role, u.created_at,
       v.id AS voter_id, rg.name AS region_name, v.is_eligible, v.region_confirmed
  FROM users u
  LEFT JOIN voters v ON v.user_id = u.id
  LEFT JOIN regions rg ON rg.id = v.region_id
 ORDER BY u.created_at DESC, u.id DESC`
	var out []entity.UserListItem
	err := r.db.SelectContext(ctx, &out, q)
	return out, err
}

func (r *UserRepo) VoterProfile(ctx context.Context, userID int64) (*entity.VoterProfile, error) {
	const q = `
SELECT v.id AS voter_id, v.region_id, rg.name AS region_name, v.registered_at,
       v.is_eligible, v.region_confirmed
  FROM voters v
  JOIN regions rg ON rg.id = v.region_id
 WHERE v.user_id = $1`
	var p entity.VoterProfile
	if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
		return nil, err
	}
	return &p, nil
}

// AssignRegion moves a voter and marks its region as confirmed.
// It reports whether a row was updated.
func (r *UserRepo) AssignRegion(ctx context.Context, voterID, regionID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE voters SET region_id = $2, region_confirmed = true WHERE id = $1`, voterID, regionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *UserRepo) SetEligibility(ctx context.Context, voterID int64, eligible bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE voters SET is_eligible = $2 WHERE id = $1`, voterID, eligible)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
