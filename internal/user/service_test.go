package user

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
)

// memStore mimics the users/voters tables including their unique keys.
type memStore struct {
	mu     sync.Mutex
	users  map[int64]*entity.User
	voters map[int64]*entity.Voter // by user id
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]*entity.User{}, voters: map[int64]*entity.Voter{}}
}

func (s *memStore) add(u entity.User) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	s.users[u.ID] = &u
	return &u
}

func (s *memStore) GetByCNIE(_ context.Context, cnie string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.CNIE == cnie {
			c := *u
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) GetByID(_ context.Context, id int64) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *u
	return &c, nil
}

func (s *memStore) GetVoterByUserID(_ context.Context, userID int64) (*entity.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *v
	return &c, nil
}

func (s *memStore) EnsureVoter(_ context.Context, userID, regionID int64) (*entity.Voter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.voters[userID]; ok {
		c := *v
		return &c, false, nil
	}
	v := &entity.Voter{ID: userID + 100, UserID: userID, RegionID: regionID, IsEligible: true, RegisteredAt: time.Now()}
	s.voters[userID] = v
	c := *v
	return &c, true, nil
}

func (s *memStore) Create(_ context.Context, u *entity.User, regionID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.CNIE == u.CNIE {
			return 0, &pq.Error{Code: "23505", Constraint: "users_cnie_key"}
		}
	}
	if u.Role == entity.RoleVoter && regionID > 12 {
		return 0, &pq.Error{Code: "23503", Constraint: "voters_region_id_fkey"}
	}
	s.nextID++
	u.ID = s.nextID
	c := *u
	s.users[u.ID] = &c
	if u.Role == entity.RoleVoter {
		s.voters[u.ID] = &entity.Voter{ID: u.ID + 100, UserID: u.ID, RegionID: regionID, IsEligible: true, RegionConfirmed: true}
	}
	return u.ID, nil
}

func (s *memStore) List(context.Context) ([]entity.UserListItem, error) { return nil, nil }

func (s *memStore) VoterProfile(_ context.Context, userID int64) (*entity.VoterProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &entity.VoterProfile{VoterID: v.ID, RegionID: v.RegionID, IsEligible: v.IsEligible, RegionConfirmed: v.RegionConfirmed}, nil
}

func (s *memStore) voterByID(id int64) *entity.Voter {
	for _, v := range s.voters {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (s *memStore) AssignRegion(_ context.Context, voterID, regionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if regionID > 12 {
		return false, &pq.Error{Code: "23503"}
	}
	v := s.voterByID(voterID)
	if v == nil {
		return false, nil
	}
	v.RegionID, v.RegionConfirmed = regionID, true
	return true, nil
}

func (s *memStore) SetEligibility(_ context.Context, voterID int64, eligible bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.voterByID(voterID)
	if v == nil {
		return false, nil
	}
	v.IsEligible = eligible
	return true, nil
}

// plainHasher keeps tests fast; bcrypt is covered separately.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }
func (plainHasher) Verify(hash, pw string) bool     { return hash == "h:"+pw }

func newTestService() (*UserService, *memStore) {
	st := newMemStore()
	svc := NewUserService(nil, st, plainHasher{})
	svc.DefaultRegionID = 1
	return svc, st
}

func TestAuthenticateProvisionsVoterOnce(t *testing.T) {
	svc, st := newTestService()
	st.add(entity.User{CNIE: "VO123456", Name: "New Voter", Role: entity.RoleVoter})

	res, err := svc.Authenticate(context.Background(), " vo123456 ", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !res.Provisioned || res.Voter == nil {
		t.Fatalf("first login should provision a voter: %+v", res)
	}
	if res.Voter.RegionID != 1 || !res.Voter.NeedsRegionAssignment() || !res.Voter.IsEligible {
		t.Errorf("placeholder voter: %+v", res.Voter)
	}

	again, err := svc.Authenticate(context.Background(), "VO123456", "")
	if err != nil {
		t.Fatal(err)
	}
	if again.Provisioned || again.Voter.ID != res.Voter.ID {
		t.Errorf("second login must reuse the voter row: %+v", again)
	}
}

func TestAuthenticateAdminHasNoVoterRow(t *testing.T) {
	svc, st := newTestService()
	st.add(entity.User{CNIE: "EO123456", Name: "Election Officer", Role: entity.RoleElectionOfficer})

	res, err := svc.Authenticate(context.Background(), "EO123456", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Voter != nil || res.Provisioned {
		t.Errorf("officer must not get a voter row")
	}
	if len(st.voters) != 0 {
		t.Errorf("voters table touched")
	}
}

func TestAuthenticateRejections(t *testing.T) {
	svc, st := newTestService()
	hash := "h:2468"
	st.add(entity.User{CNIE: "AD123456", Name: "System Administrator", Role: entity.RoleAdmin, PasswordHash: &hash})

	cases := []struct {
		name string
		cnie string
		pin  string
		want error
	}{
		{"malformed", "A1234567", "", ErrInvalidCNIE},
		{"unknown", "ZZ999999", "", ErrUserNotFound},
		{"wrong pin", "AD123456", "1111", ErrBadCredentials},
		{"missing pin", "AD123456", "", ErrBadCredentials},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), c.cnie, c.pin)
			if !errors.Is(err, c.want) {
				t.Errorf("want %v, got %v", c.want, err)
			}
		})
	}
	if _, err := svc.Authenticate(context.Background(), "AD123456", "2468"); err != nil {
		t.Errorf("correct pin rejected: %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	id, err := svc.CreateUser(ctx, entity.NewUser{CNIE: "ab654321", Name: "Amina El Idrissi", Role: entity.RoleVoter, RegionID: 3, PIN: "9999"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u := st.users[id]
	if u.CNIE != "AB654321" || u.PasswordHash == nil || *u.PasswordHash != "h:9999" {
		t.Errorf("stored user: %+v", u)
	}
	if v := st.voters[id]; v == nil || v.RegionID != 3 || v.NeedsRegionAssignment() {
		t.Errorf("voter row: %+v", v)
	}

	_, err = svc.CreateUser(ctx, entity.NewUser{CNIE: "AB654321", Name: "Someone Else", Role: entity.RoleAdmin})
	if !errors.Is(err, ErrCNIEExists) || err.Error() != "CNIE AB654321 already exists" {
		t.Errorf("duplicate: %v", err)
	}

	cases := []struct {
		name string
		in   entity.NewUser
		want error
	}{
		{"bad cnie", entity.NewUser{CNIE: "123", Name: "Valid Name", Role: entity.RoleAdmin}, ErrInvalidCNIE},
		{"bad name", entity.NewUser{CNIE: "CD111111", Name: "X", Role: entity.RoleAdmin}, ErrInvalidName},
		{"bad role", entity.NewUser{CNIE: "CD111111", Name: "Valid Name", Role: "Root"}, ErrInvalidRole},
		{"voter without region", entity.NewUser{CNIE: "CD111111", Name: "Valid Name", Role: entity.RoleVoter}, ErrRegionRequired},
		{"bad email", entity.NewUser{CNIE: "CD111111", Name: "Valid Name", Role: entity.RoleAdmin, Email: "nope"}, ErrInvalidEmail},
		{"unknown region", entity.NewUser{CNIE: "CD111111", Name: "Valid Name", Role: entity.RoleVoter, RegionID: 99}, ErrInvalidRegion},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := svc.CreateUser(ctx, c.in); !errors.Is(err, c.want) {
				t.Errorf("want %v, got %v", c.want, err)
			}
			if !IsRejection(c.want) {
				t.Errorf("%v should be a rejection", c.want)
			}
		})
	}
}

func TestAssignRegionClearsPendingFlag(t *testing.T) {
	svc, st := newTestService()
	u := st.add(entity.User{CNIE: "VO123456", Name: "New Voter", Role: entity.RoleVoter})
	res, err := svc.Authenticate(context.Background(), u.CNIE, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.AssignRegion(context.Background(), res.Voter.ID, 7); err != nil {
		t.Fatalf("AssignRegion: %v", err)
	}
	p, err := svc.Profile(context.Background(), u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Voter.RegionID != 7 || !p.Voter.RegionConfirmed {
		t.Errorf("profile after assignment: %+v", p.Voter)
	}

	if err := svc.AssignRegion(context.Background(), res.Voter.ID, 0); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("region 0: %v", err)
	}
	if err := svc.AssignRegion(context.Background(), res.Voter.ID, 40); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("missing region: %v", err)
	}
	if err := svc.AssignRegion(context.Background(), 9999, 2); !errors.Is(err, ErrVoterNotFound) {
		t.Errorf("missing voter: %v", err)
	}
}

func TestSetEligibility(t *testing.T) {
	svc, st := newTestService()
	u := st.add(entity.User{CNIE: "VO123456", Name: "New Voter", Role: entity.RoleVoter})
	res, _ := svc.Authenticate(context.Background(), u.CNIE, "")

	if err := svc.SetEligibility(context.Background(), res.Voter.ID, false); err != nil {
		t.Fatal(err)
	}
	if st.voters[u.ID].IsEligible {
		t.Error("voter still eligible")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	hash, err := h.Hash("1234")
	if err != nil {
		t.Fatal(err)
	}
	if !h.Verify(hash, "1234") || h.Verify(hash, "4321") {
		t.Error("bcrypt verify mismatch")
	}
}
