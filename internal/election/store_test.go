package election

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
	userentity "github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
)

// memStore is an in-memory VoterStore that enforces the same unique key on
// (voter, election) as the votes table.
type memStore struct {
	mu         sync.Mutex
	voters     map[int64]*userentity.Voter
	elections  map[int64]*entity.Election
	held       map[int64]map[int64]bool // election -> regions
	candidates map[int64]*entity.Candidate
	names      map[int64]string // candidate -> user name
	regions    map[int64]string
	votes      []entity.Vote
	nextVoteID int64
}

func newMemStore() *memStore {
	return &memStore{
		voters:     map[int64]*userentity.Voter{},
		elections:  map[int64]*entity.Election{},
		held:       map[int64]map[int64]bool{},
		candidates: map[int64]*entity.Candidate{},
		names:      map[int64]string{},
		regions:    map[int64]string{1: "Casablanca-Settat", 2: "Rabat-Salé-Kénitra"},
	}
}

func (s *memStore) addVoter(id, userID, region int64, eligible bool) {
	s.voters[id] = &userentity.Voter{ID: id, UserID: userID, RegionID: region, IsEligible: eligible, RegionConfirmed: true}
}

func (s *memStore) addElection(id int64, status entity.Status, start, end time.Time, regions ...int64) {
	s.elections[id] = &entity.Election{ID: id, Name: "Election", Type: "Legislative", Status: status, StartDate: start, EndDate: end}
	s.held[id] = map[int64]bool{}
	for _, r := range regions {
		s.held[id][r] = true
	}
}

func (s *memStore) addCandidate(id, election, region int64, approved bool, name string) {
	s.candidates[id] = &entity.Candidate{ID: id, UserID: id + 1000, ElectionID: election, RegionID: region, IsApproved: approved, PartyName: "Party " + name}
	s.names[id] = name
}

func (s *memStore) voteCount(voterID, electionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.votes {
		if v.VoterID == voterID && v.ElectionID == electionID {
			n++
		}
	}
	return n
}

func (s *memStore) GetVoter(_ context.Context, id int64) (*userentity.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *v
	return &c, nil
}

func (s *memStore) GetVoterByUserID(_ context.Context, userID int64) (*userentity.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voters {
		if v.UserID == userID {
			c := *v
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) HasVoted(_ context.Context, voterID, electionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.votes {
		if v.VoterID == voterID && v.ElectionID == electionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ElectionHasRegion(_ context.Context, electionID, regionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[electionID][regionID], nil
}

func (s *memStore) RegionName(_ context.Context, regionID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.regions[regionID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return name, nil
}

func (s *memStore) GetElection(_ context.Context, id int64) (*entity.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *e
	return &c, nil
}

func (s *memStore) GetCandidate(_ context.Context, id int64) (*entity.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) InsertVote(_ context.Context, v *entity.Vote) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.votes {
		if existing.VoterID == v.VoterID && existing.ElectionID == v.ElectionID {
			return false, &pq.Error{Code: "23505", Constraint: "votes_voter_election_key"}
		}
	}
	c, ok := s.candidates[v.CandidateID]
	if !ok || !c.IsApproved || c.ElectionID != v.ElectionID {
		return false, nil
	}
	s.nextVoteID++
	v.ID, v.CastAt = s.nextVoteID, time.Now()
	s.votes = append(s.votes, *v)
	return true, nil
}

func (s *memStore) VoterElections(_ context.Context, voterID, regionID int64) ([]entity.VoterElection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.VoterElection
	for id, e := range s.elections {
		if !s.held[id][regionID] || e.Status.Terminal() {
			continue
		}
		ve := entity.VoterElection{Election: *e}
		for _, v := range s.votes {
			if v.VoterID == voterID && v.ElectionID == id {
				ve.HasVoted = true
			}
		}
		out = append(out, ve)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *memStore) ApprovedCandidates(_ context.Context, electionID, regionID int64) ([]entity.CandidateView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.CandidateView
	for id, c := range s.candidates {
		if c.ElectionID == electionID && c.RegionID == regionID && c.IsApproved {
			out = append(out, entity.CandidateView{ID: id, Name: s.names[id], PartyName: c.PartyName, RegionName: s.regions[regionID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) VotedCandidate(_ context.Context, voterID, electionID int64) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.votes {
		if v.VoterID == voterID && v.ElectionID == electionID {
			id := v.CandidateID
			return &id, nil
		}
	}
	return nil, nil
}

func (s *memStore) VoteFor(_ context.Context, voterID, electionID int64) (*entity.HistoryItem, error) {
	items, _ := s.History(context.Background(), voterID)
	for _, it := range items {
		if it.ElectionID == electionID {
			return &it, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) History(_ context.Context, voterID int64) ([]entity.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.HistoryItem
	for _, v := range s.votes {
		if v.VoterID != voterID {
			continue
		}
		e := s.elections[v.ElectionID]
		out = append(out, entity.HistoryItem{
			ElectionID:    v.ElectionID,
			ElectionName:  e.Name,
			ElectionType:  e.Type,
			CandidateName: s.names[v.CandidateID],
			PartyName:     s.candidates[v.CandidateID].PartyName,
			Receipt:       v.Receipt,
			CastAt:        v.CastAt,
		})
	}
	return out, nil
}

// staleReads hides existing votes from the eligibility pre-check, the way a
// concurrent request sees the table before the other insert commits.
type staleReads struct{ *memStore }

func (staleReads) HasVoted(context.Context, int64, int64) (bool, error) { return false, nil }

type auditEvent struct {
	ip string
	ev audit.Event
}

type memAuditor struct {
	mu     sync.Mutex
	events []auditEvent
}

func (a *memAuditor) Record(_ context.Context, ip string, ev audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, auditEvent{ip: ip, ev: ev})
}

func (a *memAuditor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func voteRow(voterID, electionID, candidateID int64) entity.Vote {
	return entity.Vote{ID: 1, VoterID: voterID, ElectionID: electionID, CandidateID: candidateID, Receipt: "R0", CastAt: time.Now()}
}
