package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
)

type RegionRepo struct {
	db *sqlx.DB
}

func NewRegionRepo(db *sqlx.DB) *RegionRepo { return &RegionRepo{db: db} }

// List returns all regions ordered by name.
func (r *RegionRepo) List(ctx context.Context) ([]entity.Region, error) {
	var out []entity.Region
	err := r.db.SelectContext(ctx, &out, `SELECT id, name FROM regions ORDER BY name`)
	return out, err
}

func (r *RegionRepo) GetByID(ctx context.Context, id int64) (*entity.Region, error) {
	var out entity.Region
	if err := r.db.GetContext(ctx, &out, `SELECT id, name FROM regions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summaries counts voters and candidates per region.
func (r *RegionRepo) Summaries(ctx context.Context) ([]entity.Summary, error) {
	const q = `
SELECT r.id, r.name,
       COUNT(DISTINCT v.id) AS voter_count,
       COUNT(DISTINCT c.id) AS candidate_count,
       COUNT(DISTINCT v.id) FILTER (WHERE NOT v.region_confirmed) AS pending_voters
  FROM regions r
  LEFT JOIN voters v ON v.region_id = r.id
  LEFT JOIN candidates c ON c.region_id = r.id
 GROUP BY r.id, r.name
 ORDER BY r.name`
	var out []entity.Summary
	err := r.db.SelectContext(ctx, &out, q)
	return out, err
}
