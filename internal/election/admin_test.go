package election

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
)

// adminStore implements only what the tests call; anything else panics.
type adminStore struct {
	AdminStore
	elections  map[int64]*entity.Election
	regions    map[int64][]int64
	users      map[string]int64
	candidates map[int64]*entity.Candidate
	known      map[int64]bool // regions that exist
}

func newAdminStore() *adminStore {
	return &adminStore{
		elections:  map[int64]*entity.Election{},
		regions:    map[int64][]int64{},
		users:      map[string]int64{"AB123456": 7},
		candidates: map[int64]*entity.Candidate{},
		known:      map[int64]bool{1: true, 2: true, 3: true},
	}
}

func (s *adminStore) CreateElection(_ context.Context, e *entity.Election, regionIDs []int64) (int64, error) {
	for _, r := range regionIDs {
		if !s.known[r] {
			return 0, &pq.Error{Code: "23503", Constraint: "election_regions_region_id_fkey"}
		}
	}
	id := int64(len(s.elections) + 1)
	c := *e
	c.ID = id
	s.elections[id] = &c
	s.regions[id] = regionIDs
	return id, nil
}

func (s *adminStore) UpdateElection(_ context.Context, e *entity.Election) (bool, error) {
	if _, ok := s.elections[e.ID]; !ok {
		return false, nil
	}
	c := *e
	s.elections[e.ID] = &c
	return true, nil
}

func (s *adminStore) UserIDByCNIE(_ context.Context, cnie string) (int64, error) {
	id, ok := s.users[cnie]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return id, nil
}

func (s *adminStore) CreateCandidate(_ context.Context, c *entity.Candidate) (int64, error) {
	held := false
	for _, r := range s.regions[c.ElectionID] {
		held = held || r == c.RegionID
	}
	if !held {
		return 0, &pq.Error{Code: "23503", Constraint: "candidates_election_region_fkey"}
	}
	for _, existing := range s.candidates {
		if existing.UserID == c.UserID && existing.ElectionID == c.ElectionID {
			return 0, &pq.Error{Code: "23505", Constraint: "candidates_user_election_key"}
		}
	}
	id := int64(len(s.candidates) + 1)
	cp := *c
	cp.ID = id
	s.candidates[id] = &cp
	return id, nil
}

func (s *adminStore) SetCandidateApproval(_ context.Context, id int64, approved bool) (bool, error) {
	c, ok := s.candidates[id]
	if !ok {
		return false, nil
	}
	c.IsApproved = approved
	return true, nil
}

func newAdminService() (*AdminService, *adminStore) {
	st := newAdminStore()
	svc := NewAdminService(nil, st, zap.NewNop().Sugar())
	svc.loc = time.UTC
	return svc, st
}

func TestCreateElection(t *testing.T) {
	svc, st := newAdminService()
	form := ElectionForm{
		Name:      "Législatives 2026",
		Type:      "Legislative",
		StartDate: "2026-09-08T08:00",
		EndDate:   "2026-09-08T19:00",
		RegionIDs: []int64{1, 2, 2, 0},
	}
	e, err := svc.CreateElection(context.Background(), 3, form)
	if err != nil {
		t.Fatalf("CreateElection: %v", err)
	}
	if e.Status != entity.StatusPlanned || e.AdminID == nil || *e.AdminID != 3 {
		t.Errorf("election: %+v", e)
	}
	if got := st.regions[e.ID]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("regions should be deduplicated: %v", got)
	}
	if !e.StartDate.Equal(time.Date(2026, 9, 8, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("start: %v", e.StartDate)
	}
}

func TestCreateElectionRejections(t *testing.T) {
	valid := ElectionForm{Name: "Communales", Type: "Local", StartDate: "2026-09-08", EndDate: "2026-09-09", RegionIDs: []int64{1}}
	cases := []struct {
		name   string
		modify func(*ElectionForm)
		want   error
	}{
		{"missing name", func(f *ElectionForm) { f.Name = "  " }, ErrFieldsRequired},
		{"missing end", func(f *ElectionForm) { f.EndDate = "" }, ErrFieldsRequired},
		{"unparseable start", func(f *ElectionForm) { f.StartDate = "next week" }, ErrInvalidDates},
		{"end before start", func(f *ElectionForm) { f.EndDate = "2026-09-07" }, ErrInvalidDates},
		{"end equals start", func(f *ElectionForm) { f.EndDate = f.StartDate }, ErrInvalidDates},
		{"no regions", func(f *ElectionForm) { f.RegionIDs = nil }, ErrRegionsRequired},
		{"unknown region", func(f *ElectionForm) { f.RegionIDs = []int64{1, 99} }, ErrInvalidRegion},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc, st := newAdminService()
			f := valid
			c.modify(&f)
			_, err := svc.CreateElection(context.Background(), 1, f)
			if !errors.Is(err, c.want) {
				t.Fatalf("want %v, got %v", c.want, err)
			}
			if !IsRejection(err) {
				t.Errorf("%v should be a rejection", err)
			}
			if len(st.elections) != 0 {
				t.Error("election stored despite rejection")
			}
		})
	}
}

func TestUpdateElection(t *testing.T) {
	svc, st := newAdminService()
	ctx := context.Background()
	form := ElectionForm{Name: "Régionales", Type: "Regional", StartDate: "2026-09-08", EndDate: "2026-09-09", RegionIDs: []int64{1}}
	e, err := svc.CreateElection(ctx, 1, form)
	if err != nil {
		t.Fatal(err)
	}

	form.Status = "Cancelled"
	if _, err := svc.UpdateElection(ctx, e.ID, form); err != nil {
		t.Fatalf("UpdateElection: %v", err)
	}
	if st.elections[e.ID].Status != entity.StatusCancelled {
		t.Errorf("status not saved: %s", st.elections[e.ID].Status)
	}

	form.Status = "Paused"
	if _, err := svc.UpdateElection(ctx, e.ID, form); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("want invalid status, got %v", err)
	}
	form.Status = "Active"
	if _, err := svc.UpdateElection(ctx, 404, form); !errors.Is(err, ErrElectionNotFound) {
		t.Errorf("want not found, got %v", err)
	}
}

func TestRegisterCandidate(t *testing.T) {
	svc, _ := newAdminService()
	ctx := context.Background()
	e, err := svc.CreateElection(ctx, 1, ElectionForm{Name: "Locales", Type: "Local", StartDate: "2026-09-08", EndDate: "2026-09-09", RegionIDs: []int64{1, 2}})
	if err != nil {
		t.Fatal(err)
	}

	c, err := svc.RegisterCandidate(ctx, CandidateForm{CNIE: " ab123456 ", ElectionID: e.ID, RegionID: 2, PartyName: "Parti du Progrès"})
	if err != nil {
		t.Fatalf("RegisterCandidate: %v", err)
	}
	if c.UserID != 7 || c.IsApproved {
		t.Errorf("candidate should be pending for user 7: %+v", c)
	}

	cases := []struct {
		name string
		form CandidateForm
		want error
	}{
		{"duplicate", CandidateForm{CNIE: "AB123456", ElectionID: e.ID, RegionID: 1}, ErrCandidateExists},
		{"region outside election", CandidateForm{CNIE: "AB123456", ElectionID: e.ID, RegionID: 3}, ErrRegionNotInElection},
		{"unknown user", CandidateForm{CNIE: "ZZ999999", ElectionID: e.ID, RegionID: 1}, ErrUserNotFound},
		{"malformed cnie", CandidateForm{CNIE: "12345", ElectionID: e.ID, RegionID: 1}, ErrInvalidCNIE},
		{"missing election", CandidateForm{CNIE: "AB123456", RegionID: 1}, ErrFieldsRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterCandidate(ctx, tc.form)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSetApproval(t *testing.T) {
	svc, st := newAdminService()
	ctx := context.Background()
	st.candidates[1] = &entity.Candidate{ID: 1}

	if err := svc.SetApproval(ctx, 1, true); err != nil || !st.candidates[1].IsApproved {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.SetApproval(ctx, 1, false); err != nil || st.candidates[1].IsApproved {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.SetApproval(ctx, 2, true); !errors.Is(err, ErrCandidateNotFound) {
		t.Errorf("want not found, got %v", err)
	}
}

func TestFormatTurnout(t *testing.T) {
	cases := []struct {
		voted, eligible int
		want            string
	}{
		{0, 0, "0.00%"},
		{5, 0, "0.00%"},
		{1, 3, "33.33%"},
		{2, 3, "66.67%"},
		{4, 4, "100.00%"},
	}
	for _, c := range cases {
		if got := entity.FormatTurnout(c.voted, c.eligible); got != c.want {
			t.Errorf("FormatTurnout(%d, %d) = %s, want %s", c.voted, c.eligible, got, c.want)
		}
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrAlreadyVoted, "You have already voted in this election"},
		{ErrRegionMismatch, "Election not available in your region"},
		{&NotActiveError{Status: entity.StatusCompleted}, "This election is not currently active (Status: Completed)"},
		{ErrCandidateRegion, "Cannot vote for candidate from different region"},
	}
	for _, c := range cases {
		if got := Message(c.err); got != c.want {
			t.Errorf("Message(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
