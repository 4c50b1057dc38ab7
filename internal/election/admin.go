package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
	electionrepo "github.com/ovaphlow/pitchfork/service-election/internal/election/repo"
	regionentity "github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
	"github.com/ovaphlow/pitchfork/service-election/pkg/database"
	"github.com/ovaphlow/pitchfork/service-election/pkg/validation"
)

var (
	ErrFieldsRequired      = errors.New("All fields are required")
	ErrInvalidDates        = errors.New(validation.Message(validation.InvalidDates))
	ErrRegionsRequired     = errors.New("Please select at least one region")
	ErrInvalidStatus       = errors.New("Invalid election status")
	ErrInvalidRegion       = errors.New("Selected region does not exist")
	ErrInvalidCNIE         = errors.New(validation.Message(validation.InvalidCNIE))
	ErrUserNotFound        = errors.New("No user found with that CNIE")
	ErrCandidateExists     = errors.New("This user is already a candidate in this election")
	ErrRegionNotInElection = errors.New("region not part of this election")
	ErrCandidateNotFound   = errors.New("candidate not found")
)

// AdminStore is the persistence used by the administration pages.
type AdminStore interface {
	GetElection(ctx context.Context, id int64) (*entity.Election, error)
	DashboardStats(ctx context.Context) (entity.DashboardStats, error)
	// ListElections returns elections newest first; limit 0 means all.
	ListElections(ctx context.Context, limit int) ([]entity.ElectionListItem, error)
	CreateElection(ctx context.Context, e *entity.Election, regionIDs []int64) (int64, error)
	UpdateElection(ctx context.Context, e *entity.Election) (bool, error)
	ElectionRegions(ctx context.Context, electionID int64) ([]regionentity.Region, error)
	ListCandidates(ctx context.Context) ([]entity.CandidateListItem, error)
	UserIDByCNIE(ctx context.Context, cnie string) (int64, error)
	CreateCandidate(ctx context.Context, c *entity.Candidate) (int64, error)
	SetCandidateApproval(ctx context.Context, id int64, approved bool) (bool, error)
	Results(ctx context.Context, electionID int64) ([]entity.ResultRow, error)
	Turnout(ctx context.Context, electionID int64) ([]entity.TurnoutRow, error)
	Statistics(ctx context.Context, electionID int64) (entity.Statistics, error)
}

// AdminService backs the election, candidate and results administration.
type AdminService struct {
	store  AdminStore
	logger *zap.SugaredLogger
	now    func() time.Time
	loc    *time.Location
}

func NewAdminService(db *sqlx.DB, s AdminStore, logger *zap.SugaredLogger) *AdminService {
	if s == nil {
		s = electionrepo.NewElectionRepo(db)
	}
	return &AdminService{store: s, logger: logger, now: time.Now, loc: time.Local}
}

// AdminDashboard holds the totals and the five most recent elections.
type AdminDashboard struct {
	Stats  entity.DashboardStats
	Recent []entity.ElectionListItem
}

func (s *AdminService) Dashboard(ctx context.Context) (*AdminDashboard, error) {
	stats, err := s.store.DashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.Elections(ctx, 5)
	if err != nil {
		return nil, err
	}
	return &AdminDashboard{Stats: stats, Recent: recent}, nil
}

// Elections lists elections with their effective status; limit 0 means all.
func (s *AdminService) Elections(ctx context.Context, limit int) ([]entity.ElectionListItem, error) {
	items, err := s.store.ListElections(ctx, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range items {
		items[i].Effective = Effective(&items[i].Election, now)
	}
	return items, nil
}

func (s *AdminService) Election(ctx context.Context, id int64) (*entity.Election, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrElectionNotFound
		}
		return nil, err
	}
	return e, nil
}

// ElectionForm is the submitted election form, dates as typed.
type ElectionForm struct {
	Name      string
	Type      string
	StartDate string
	EndDate   string
	Status    string
	RegionIDs []int64
}

func (s *AdminService) parseForm(f ElectionForm) (*entity.Election, error) {
	name := validation.Sanitize(f.Name, 200)
	typ := validation.Sanitize(f.Type, 100)
	if name == "" || typ == "" || strings.TrimSpace(f.StartDate) == "" || strings.TrimSpace(f.EndDate) == "" {
		return nil, ErrFieldsRequired
	}
	start, ok := validation.ParseDate(f.StartDate, s.loc)
	if !ok {
		return nil, ErrInvalidDates
	}
	end, ok := validation.ParseDate(f.EndDate, s.loc)
	if !ok || !validation.DateRange(start, end) {
		return nil, ErrInvalidDates
	}
	return &entity.Election{Name: name, Type: typ, StartDate: start, EndDate: end}, nil
}

// CreateElection stores a Planned election and its regions in one transaction.
func (s *AdminService) CreateElection(ctx context.Context, adminID int64, f ElectionForm) (*entity.Election, error) {
	e, err := s.parseForm(f)
	if err != nil {
		return nil, err
	}
	regions := uniqueIDs(f.RegionIDs)
	if len(regions) == 0 {
		return nil, ErrRegionsRequired
	}
	e.Status = entity.StatusPlanned
	e.AdminID = &adminID
	id, err := s.store.CreateElection(ctx, e, regions)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrInvalidRegion
		}
		return nil, fmt.Errorf("create election: %w", err)
	}
	e.ID = id
	return e, nil
}

// UpdateElection edits name, type, dates and stored status.
func (s *AdminService) UpdateElection(ctx context.Context, id int64, f ElectionForm) (*entity.Election, error) {
	e, err := s.parseForm(f)
	if err != nil {
		return nil, err
	}
	st, ok := entity.ParseStatus(f.Status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	e.ID, e.Status = id, st
	found, err := s.store.UpdateElection(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("update election: %w", err)
	}
	if !found {
		return nil, ErrElectionNotFound
	}
	return e, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *AdminService) Candidates(ctx context.Context) ([]entity.CandidateListItem, error) {
	return s.store.ListCandidates(ctx)
}

// CandidateForm is the submitted candidate registration.
type CandidateForm struct {
	CNIE       string
	ElectionID int64
	RegionID   int64
	PartyName  string
	Manifesto  string
}

// RegisterCandidate adds an unapproved candidate. The region must be one the
// election is held in; the store's composite key enforces it.
func (s *AdminService) RegisterCandidate(ctx context.Context, f CandidateForm) (*entity.Candidate, error) {
	if f.ElectionID <= 0 || f.RegionID <= 0 || strings.TrimSpace(f.CNIE) == "" {
		return nil, ErrFieldsRequired
	}
	cnie := validation.NormalizeCNIE(f.CNIE)
	if !validation.CNIE(cnie) {
		return nil, ErrInvalidCNIE
	}
	userID, err := s.store.UserIDByCNIE(ctx, cnie)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	c := &entity.Candidate{
		UserID:     userID,
		ElectionID: f.ElectionID,
		RegionID:   f.RegionID,
		PartyName:  validation.Sanitize(f.PartyName, 100),
		Manifesto:  validation.Sanitize(f.Manifesto, 5000),
	}
	id, err := s.store.CreateCandidate(ctx, c)
	switch {
	case err == nil:
		c.ID = id
		return c, nil
	case database.IsUniqueViolation(err, "candidates_user_election_key"):
		return nil, ErrCandidateExists
	case database.IsForeignKeyViolation(err, "candidates_election_region_fkey"):
		return nil, ErrRegionNotInElection
	default:
		return nil, fmt.Errorf("create candidate: %w", err)
	}
}

// SetApproval approves or rejects a candidate. A rejected candidate keeps its
// row but disappears from ballots.
func (s *AdminService) SetApproval(ctx context.Context, id int64, approved bool) error {
	ok, err := s.store.SetCandidateApproval(ctx, id, approved)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCandidateNotFound
	}
	return nil
}

// ElectionResults is the per-election results page.
type ElectionResults struct {
	Election  *entity.Election
	Effective entity.Status
	Results   []entity.ResultRow
	Turnout   []entity.TurnoutRow
	Stats     entity.Statistics
}

func (s *AdminService) Results(ctx context.Context, electionID int64) (*ElectionResults, error) {
	e, err := s.Election(ctx, electionID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Results(ctx, electionID)
	if err != nil {
		return nil, err
	}
	turnout, err := s.store.Turnout(ctx, electionID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Statistics(ctx, electionID)
	if err != nil {
		return nil, err
	}
	return &ElectionResults{
		Election:  e,
		Effective: Effective(e, s.now()),
		Results:   results,
		Turnout:   turnout,
		Stats:     stats,
	}, nil
}

func (s *AdminService) ElectionRegions(ctx context.Context, electionID int64) ([]regionentity.Region, error) {
	return s.store.ElectionRegions(ctx, electionID)
}
