package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
	electionrepo "github.com/ovaphlow/pitchfork/service-election/internal/election/repo"
	"github.com/ovaphlow/pitchfork/service-election/internal/metrics"
	userentity "github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-election/pkg/database"
	"github.com/ovaphlow/pitchfork/service-election/pkg/utilities"
)

var (
	ErrInvalidCandidate  = errors.New("invalid candidate")
	ErrCandidateRegion   = errors.New("cannot vote for candidate from different region")
	ErrCandidateElection = errors.New("candidate not in this election")
	ErrElectionNotFound  = errors.New("election not found")
	ErrElectionNotActive = errors.New("election is not active")
)

// NotActiveError carries the effective status of an election that refused a vote.
type NotActiveError struct {
	Status entity.Status
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("election is not active (status: %s)", e.Status)
}

func (e *NotActiveError) Is(target error) bool { return target == ErrElectionNotActive }

// VoterStore is the persistence used by the voter side.
type VoterStore interface {
	EligibilityStore
	GetVoterByUserID(ctx context.Context, userID int64) (*userentity.Voter, error)
	GetElection(ctx context.Context, id int64) (*entity.Election, error)
	GetCandidate(ctx context.Context, id int64) (*entity.Candidate, error)
	// InsertVote stores v if its candidate is still approved for v's election,
	// filling ID and CastAt. It reports false when no row was written.
	InsertVote(ctx context.Context, v *entity.Vote) (bool, error)
	VoterElections(ctx context.Context, voterID, regionID int64) ([]entity.VoterElection, error)
	ApprovedCandidates(ctx context.Context, electionID, regionID int64) ([]entity.CandidateView, error)
	VotedCandidate(ctx context.Context, voterID, electionID int64) (*int64, error)
	VoteFor(ctx context.Context, voterID, electionID int64) (*entity.HistoryItem, error)
	History(ctx context.Context, voterID int64) ([]entity.HistoryItem, error)
	RegionName(ctx context.Context, regionID int64) (string, error)
}

// Auditor records significant actions; failures stay inside it.
type Auditor interface {
	Record(ctx context.Context, ip string, ev audit.Event)
}

// VoteService runs the voter side: dashboard, ballot, casting and history.
type VoteService struct {
	store   VoterStore
	audit   Auditor
	logger  *zap.SugaredLogger
	now     func() time.Time
	receipt func() string
}

func NewVoteService(db *sqlx.DB, s VoterStore, a Auditor, logger *zap.SugaredLogger) *VoteService {
	if s == nil {
		s = electionrepo.NewElectionRepo(db)
	}
	return &VoteService{store: s, audit: a, logger: logger, now: time.Now, receipt: utilities.NewSnowflakeID}
}

// Ballot is a cast request. UserID comes from the session, never the form.
type Ballot struct {
	UserID      int64
	ElectionID  int64
	CandidateID int64
	IP          string
}

// Cast records one vote. Any returned error leaves the store unchanged;
// errors matching IsRejection are business refusals.
func (s *VoteService) Cast(ctx context.Context, b Ballot) (*entity.Vote, error) {
	vote, err := s.cast(ctx, b)
	if err != nil {
		if IsRejection(err) {
			metrics.VoteRejections.WithLabelValues(rejectionLabel(err)).Inc()
		}
		return nil, err
	}
	metrics.VotesCast.Inc()
	s.audit.Record(ctx, b.IP, audit.Event{
		Action:   "cast vote",
		Table:    "votes",
		RecordID: vote.ID,
		Details:  fmt.Sprintf("Election: %d, Candidate: %d", b.ElectionID, b.CandidateID),
	})
	return vote, nil
}

func (s *VoteService) cast(ctx context.Context, b Ballot) (*entity.Vote, error) {
	voter, err := s.store.GetVoterByUserID(ctx, b.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVoterNotFound
		}
		return nil, err
	}

	verdict, err := CheckEligibility(ctx, s.store, voter.ID, b.ElectionID)
	if err != nil {
		return nil, err
	}
	if !verdict.Eligible {
		return nil, verdict.Reason
	}
	voter = verdict.Voter

	c, err := s.store.GetCandidate(ctx, b.CandidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCandidate
		}
		return nil, err
	}
	if !c.IsApproved {
		return nil, ErrInvalidCandidate
	}
	if c.RegionID != voter.RegionID {
		return nil, ErrCandidateRegion
	}
	if c.ElectionID != b.ElectionID {
		return nil, ErrCandidateElection
	}

	e, err := s.store.GetElection(ctx, b.ElectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrElectionNotFound
		}
		return nil, err
	}
	if st := Effective(e, s.now()); st != entity.StatusActive {
		return nil, &NotActiveError{Status: st}
	}

	v := &entity.Vote{VoterID: voter.ID, ElectionID: b.ElectionID, CandidateID: c.ID, Receipt: s.receipt()}
	ok, err := s.store.InsertVote(ctx, v)
	switch {
	case database.IsUniqueViolation(err, "votes_voter_election_key"):
		// Lost the race against a concurrent submission for the same pair.
		return nil, ErrAlreadyVoted
	case database.IsForeignKeyViolation(err):
		return nil, ErrInvalidCandidate
	case err != nil:
		return nil, fmt.Errorf("insert vote: %w", err)
	case !ok:
		return nil, ErrInvalidCandidate
	}
	return v, nil
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrRegionMismatch), errors.Is(err, ErrCandidateRegion):
		return "region_mismatch"
	case errors.Is(err, ErrElectionNotActive):
		return "election_not_active"
	case errors.Is(err, ErrInvalidCandidate), errors.Is(err, ErrCandidateElection):
		return "invalid_candidate"
	default:
		return "not_found"
	}
}

// Dashboard is the voter's landing page.
type Dashboard struct {
	Voter      *userentity.Voter
	RegionName string
	Elections  []entity.VoterElection
}

func (s *VoteService) voter(ctx context.Context, userID int64) (*userentity.Voter, error) {
	v, err := s.store.GetVoterByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVoterNotFound
		}
		return nil, err
	}
	return v, nil
}

// Dashboard lists Planned and Active elections held in the voter's region,
// each with its effective status.
func (s *VoteService) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	v, err := s.voter(ctx, userID)
	if err != nil {
		return nil, err
	}
	region, err := s.store.RegionName(ctx, v.RegionID)
	if err != nil {
		return nil, err
	}
	elections, err := s.store.VoterElections(ctx, v.ID, v.RegionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range elections {
		elections[i].Effective = Effective(&elections[i].Election, now)
	}
	return &Dashboard{Voter: v, RegionName: region, Elections: elections}, nil
}

// BallotPage is what the candidates page shows for one election.
type BallotPage struct {
	Election   *entity.Election
	Effective  entity.Status
	Verdict    Verdict
	Candidates []entity.CandidateView
	VotedFor   *int64
}

// CanVote reports whether the ballot form should be offered.
func (p *BallotPage) CanVote() bool {
	return p.Verdict.Eligible && p.Effective == entity.StatusActive
}

func (s *VoteService) Ballot(ctx context.Context, userID, electionID int64) (*BallotPage, error) {
	v, err := s.voter(ctx, userID)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrElectionNotFound
		}
		return nil, err
	}
	verdict, err := CheckEligibility(ctx, s.store, v.ID, electionID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.ApprovedCandidates(ctx, electionID, v.RegionID)
	if err != nil {
		return nil, err
	}
	voted, err := s.store.VotedCandidate(ctx, v.ID, electionID)
	if err != nil {
		return nil, err
	}
	return &BallotPage{
		Election:   e,
		Effective:  Effective(e, s.now()),
		Verdict:    verdict,
		Candidates: candidates,
		VotedFor:   voted,
	}, nil
}

// Receipt returns the voter's vote in electionID for the confirmation page.
func (s *VoteService) Receipt(ctx context.Context, userID, electionID int64) (*entity.HistoryItem, error) {
	v, err := s.voter(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.store.VoteFor(ctx, v.ID, electionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrElectionNotFound
	}
	return item, err
}

func (s *VoteService) History(ctx context.Context, userID int64) ([]entity.HistoryItem, error) {
	v, err := s.voter(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, v.ID)
}

// VotedForCandidate reports whether the voter's ballot went to candidate id.
func (p *BallotPage) VotedForCandidate(id int64) bool {
	return p.VotedFor != nil && *p.VotedFor == id
}
