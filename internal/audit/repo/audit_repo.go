package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit/entity"
)

// AuditRepo appends to and reads audit_log. Rows are never updated or
// deleted; the table's trigger rejects both.
type AuditRepo struct {
	db *sqlx.DB
}

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

const (
	insertEntrySQL = `INSERT INTO audit_log (user_id, action, table_name, record_id, ip_address, details)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	countEntriesSQL = `SELECT COUNT(*) FROM audit_log`

	pageEntriesSQL = `
SELECT a.id, u.name AS actor_name, u.role AS actor_role, a.action, a.table_name,
       a.record_id, a.ip_address, a.details, a.created_at
  FROM audit_log a
  LEFT JOIN users u ON u.id = a.user_id
 ORDER BY a.created_at DESC, a.id DESC
 LIMIT $1 OFFSET $2`
)

// Insert appends one entry and returns its id.
func (r *AuditRepo) Insert(ctx context.Context, e entity.Entry) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, insertEntrySQL, e.UserID, e.Action, e.TableName, e.RecordID, e.IPAddress, e.Details).Scan(&id)
	return id, err
}

func (r *AuditRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, countEntriesSQL)
	return n, err
}

// Page returns entries newest first.
func (r *AuditRepo) Page(ctx context.Context, limit, offset int) ([]entity.LogView, error) {
	var out []entity.LogView
	err := r.db.SelectContext(ctx, &out, pageEntriesSQL, limit, offset)
	return out, err
}
