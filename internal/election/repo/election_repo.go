package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
	regionentity "github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
	userentity "github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-election/pkg/database"
)

// ElectionRepo provides data access for elections, candidates and votes.
type ElectionRepo struct {
	db *sqlx.DB
}

func NewElectionRepo(db *sqlx.DB) *ElectionRepo { return &ElectionRepo{db: db} }

const voterColumns = `id, user_id, region_id, is_eligible, region_confirmed, registered_at`

func (r *ElectionRepo) GetVoter(ctx context.Context, voterID int64) (*userentity.Voter, error) {
	var v userentity.Voter
	if err := r.db.GetContext(ctx, &v, `SELECT `+voterColumns+` FROM voters WHERE id = $1`, voterID); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ElectionRepo) GetVoterByUserID(ctx context.Context, userID int64) (*userentity.Voter, error) {
	var v userentity.Voter
	if err := r.db.GetContext(ctx, &v, `SELECT `+voterColumns+` FROM voters WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ElectionRepo) HasVoted(ctx context.Context, voterID, electionID int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE voter_id = $1 AND election_id = $2)`, voterID, electionID)
	return ok, err
}

func (r *ElectionRepo) ElectionHasRegion(ctx context.Context, electionID, regionID int64) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM election_regions WHERE election_id = $1 AND region_id = $2)`, electionID, regionID)
	return ok, err
}

func (r *ElectionRepo) RegionName(ctx context.Context, regionID int64) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM regions WHERE id = $1`, regionID)
	return name, err
}

const electionColumns = `id, name, type, start_date, end_date, status, admin_id, created_at`

func (r *ElectionRepo) GetElection(ctx context.Context, id int64) (*entity.Election, error) {
	var e entity.Election
	if err := r.db.GetContext(ctx, &e, `SELECT `+electionColumns+` FROM elections WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ElectionRepo) GetCandidate(ctx context.Context, id int64) (*entity.Candidate, error) {
	var c entity.Candidate
	const q = `SELECT id, user_id, election_id, region_id, party_name, manifesto, is_approved, registered_at
	             FROM candidates WHERE id = $1`
	if err := r.db.GetContext(ctx, &c, q, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertVote writes the vote only while its candidate is approved for the
// vote's election, so a rejection racing the submission cannot slip through.
// votes_voter_election_key surfaces as a unique violation.
func (r *ElectionRepo) InsertVote(ctx context.Context, v *entity.Vote) (bool, error) {
	const q = `
INSERT INTO votes (voter_id, election_id, candidate_id, receipt)
SELECT $1, c.election_id, c.id, $4
  FROM candidates c
 WHERE c.id = $3 AND c.election_id = $2 AND c.is_approved
RETURNING id, cast_at`
	err := r.db.QueryRowxContext(ctx, q, v.VoterID, v.ElectionID, v.CandidateID, v.Receipt).Scan(&v.ID, &v.CastAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ElectionRepo) VoterElections(ctx context.Context, voterID, regionID int64) ([]entity.VoterElection, error) {
	const q = `
SELECT e.id, e.name, e.type, e.start_date, e.end_date, e.status, e.admin_id, e.created_at,
       EXISTS (SELECT 1 FROM votes v WHERE v.voter_id = $1 AND v.election_id = e.id) AS has_voted
  FROM elections e
  JOIN election_regions er ON er.election_id = e.id
 WHERE er.region_id = $2
   AND e.status IN ('Planned', 'Active')
 ORDER BY e.start_date`
	var out []entity.VoterElection
	err := r.db.SelectContext(ctx, &out, q, voterID, regionID)
	return out, err
}

func (r *ElectionRepo) ApprovedCandidates(ctx context.Context, electionID, regionID int64) ([]entity.CandidateView, error) {
	const q = `
SELECT c.id, u.name, c.party_name, c.manifesto, rg.name AS region_name
  FROM candidates c
  JOIN users u ON u.id = c.user_id
  JOIN regions rg ON rg.id = c.region_id
 WHERE c.election_id = $1 AND c.region_id = $2 AND c.is_approved
 ORDER BY u.name`
	var out []entity.CandidateView
	err := r.db.SelectContext(ctx, &out, q, electionID, regionID)
	return out, err
}

// VotedCandidate returns the candidate the voter chose in electionID, or nil.
func (r *ElectionRepo) VotedCandidate(ctx context.Context, voterID, electionID int64) (*int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT candidate_id FROM votes WHERE voter_id = $1 AND election_id = $2`, voterID, electionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

const historySelect = `
SELECT e.id AS election_id, e.name AS election_name, e.type AS election_type,
       u.name AS candidate_name, c.party_name, v.receipt, v.cast_at
  FROM votes v
  JOIN elections e ON e.id = v.election_id
  JOIN candidates c ON c.id = v.candidate_id
  JOIN users u ON u.id = c.user_id`

func (r *ElectionRepo) VoteFor(ctx context.Context, voterID, electionID int64) (*entity.HistoryItem, error) {
	var h entity.HistoryItem
	if err := r.db.GetContext(ctx, &h, historySelect+` WHERE v.voter_id = $1 AND v.election_id = $2`, voterID, electionID); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *ElectionRepo) History(ctx context.Context, voterID int64) ([]entity.HistoryItem, error) {
	var out []entity.HistoryItem
	err := r.db.SelectContext(ctx, &out, historySelect+` WHERE v.voter_id = $1 ORDER BY v.cast_at DESC`, voterID)
	return out, err
}

func (r *ElectionRepo) DashboardStats(ctx context.Context) (entity.DashboardStats, error) {
	const q = `
SELECT (SELECT COUNT(*) FROM users WHERE role = 'Voter') AS voters,
       (SELECT COUNT(*) FROM elections) AS elections,
       (SELECT COUNT(*) FROM candidates) AS candidates,
       (SELECT COUNT(*) FROM votes) AS votes`
	var s entity.DashboardStats
	err := r.db.GetContext(ctx, &s, q)
	return s, err
}

func (r *ElectionRepo) ListElections(ctx context.Context, limit int) ([]entity.ElectionListItem, error) {
	q := `
SELECT e.id, e.name, e.type, e.start_date, e.end_date, e.status, e.admin_id, e.created_at,
       u.name AS admin_name,
       (SELECT COUNT(*) FROM election_regions er WHERE er.election_id = e.id) AS region_count
  FROM elections e
  LEFT JOIN users u ON u.id = e.admin_id
 ORDER BY e.created_at DESC, e.id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	var out []entity.ElectionListItem
	err := r.db.SelectContext(ctx, &out, q, args...)
	return out, err
}

// CreateElection inserts the election and its region rows in one transaction.
func (r *ElectionRepo) CreateElection(ctx context.Context, e *entity.Election, regionIDs []int64) (int64, error) {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const q = `INSERT INTO elections (name, type, start_date, end_date, status, admin_id)
		           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
		if err := tx.QueryRowxContext(ctx, q, e.Name, e.Type, e.StartDate, e.EndDate, e.Status, e.AdminID).
			Scan(&e.ID, &e.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO election_regions (election_id, region_id) SELECT $1, unnest($2::int[])`,
			e.ID, pq.Array(regionIDs))
		return err
	})
	if err != nil {
		return 0, err
	}
	return e.ID, nil
}

func (r *ElectionRepo) UpdateElection(ctx context.Context, e *entity.Election) (bool, error) {
	const q = `UPDATE elections
	              SET name = :name, type = :type, start_date = :start_date, end_date = :end_date, status = :status
	            WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, e)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ElectionRepo) ElectionRegions(ctx context.Context, electionID int64) ([]regionentity.Region, error) {
	const q = `SELECT rg.id, rg.name FROM election_regions er JOIN regions rg ON rg.id = er.region_id
	            WHERE er.election_id = $1 ORDER BY rg.name`
	var out []regionentity.Region
	err := r.db.SelectContext(ctx, &out, q, electionID)
	return out, err
}

func (r *ElectionRepo) ListCandidates(ctx context.Context) ([]entity.CandidateListItem, error) {
	const q = `
SELECT c.id, u.name, u.cnie, c.party_name, rg.name AS region_name, e.name AS election_name,
       c.is_approved, c.registered_at
  FROM candidates c
  JOIN users u ON u.id = c.user_id
  JOIN regions rg ON rg.id = c.region_id
  JOIN elections e ON e.id = c.election_id
 ORDER BY c.registered_at DESC, c.id DESC`
	var out []entity.CandidateListItem
	err := r.db.SelectContext(ctx, &out, q)
	return out, err
}

func (r *ElectionRepo) UserIDByCNIE(ctx context.Context, cnie string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM users WHERE cnie = $1`, cnie)
	return id, err
}

func (r *ElectionRepo) CreateCandidate(ctx context.Context, c *entity.Candidate) (int64, error) {
	const q = `INSERT INTO candidates (user_id, election_id, region_id, party_name, manifesto)
	           VALUES (:user_id, :election_id, :region_id, :party_name, :manifesto) RETURNING id`
	stmt, err := r.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	err = stmt.GetContext(ctx, &c.ID, c)
	return c.ID, err
}

func (r *ElectionRepo) SetCandidateApproval(ctx context.Context, id int64, approved bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE candidates SET is_approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ElectionRepo) Results(ctx context.Context, electionID int64) ([]entity.ResultRow, error) {
	const q = `SELECT candidate_id, candidate_name, party_name, region_name, vote_count, vote_percentage
	             FROM vw_election_results WHERE election_id = $1
	            ORDER BY vote_count DESC, candidate_name`
	var out []entity.ResultRow
	err := r.db.SelectContext(ctx, &out, q, electionID)
	return out, err
}

func (r *ElectionRepo) Turnout(ctx context.Context, electionID int64) ([]entity.TurnoutRow, error) {
	const q = `SELECT region_id, region_name, voted, registered
	             FROM vw_voter_turnout WHERE election_id = $1 ORDER BY region_name`
	var out []entity.TurnoutRow
	err := r.db.SelectContext(ctx, &out, q, electionID)
	return out, err
}

// Statistics counts votes, eligible voters of the election's regions and
// approved candidates.
func (r *ElectionRepo) Statistics(ctx context.Context, electionID int64) (entity.Statistics, error) {
	const q = `
SELECT (SELECT COUNT(*) FROM votes WHERE election_id = $1) AS total_votes,
       (SELECT COUNT(*) FROM voters vo
          JOIN election_regions er ON er.region_id = vo.region_id
         WHERE er.election_id = $1 AND vo.is_eligible) AS eligible_voters,
       (SELECT COUNT(*) FROM candidates WHERE election_id = $1 AND is_approved) AS approved_candidates`
	var s entity.Statistics
	err := r.db.GetContext(ctx, &s, q, electionID)
	return s, err
}
