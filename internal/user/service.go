package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-election/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-election/pkg/database"
	"github.com/ovaphlow/pitchfork/service-election/pkg/validation"
)

// PasswordHasher hashes and verifies the optional access PIN.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Store is the persistence the service needs; *repo.UserRepo satisfies it.
type Store interface {
	GetByCNIE(ctx context.Context, cnie string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetVoterByUserID(ctx context.Context, userID int64) (*entity.Voter, error)
	EnsureVoter(ctx context.Context, userID, regionID int64) (*entity.Voter, bool, error)
	Create(ctx context.Context, u *entity.User, regionID int64) (int64, error)
	List(ctx context.Context) ([]entity.UserListItem, error)
	VoterProfile(ctx context.Context, userID int64) (*entity.VoterProfile, error)
	AssignRegion(ctx context.Context, voterID, regionID int64) (bool, error)
	SetEligibility(ctx context.Context, voterID int64, eligible bool) (bool, error)
}

// UserService orchestrates login, voter provisioning and account administration.
type UserService struct {
	repo   Store
	hasher PasswordHasher
	// DefaultRegionID is the placeholder region given to auto-provisioned
	// voters until an administrator assigns the real one.
	DefaultRegionID int64
}

func NewUserService(db *sqlx.DB, r Store, hasher PasswordHasher) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{repo: r, hasher: hasher, DefaultRegionID: defaultRegionFromEnv()}
}

func defaultRegionFromEnv() int64 {
	if v, err := strconv.ParseInt(os.Getenv("DEFAULT_VOTER_REGION_ID"), 10, 64); err == nil && v > 0 {
		return v
	}
	return 1
}

var (
	ErrInvalidCNIE     = errors.New(validation.Message(validation.InvalidCNIE))
	ErrUserNotFound    = errors.New("User not found. Please check your CNIE.")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrUnsupportedRole = errors.New("account role cannot sign in")
	ErrInvalidName     = errors.New(validation.Message(validation.InvalidName))
	ErrInvalidEmail    = errors.New(validation.Message(validation.InvalidEmail))
	ErrInvalidRole     = errors.New("Please select a valid role")
	ErrRegionRequired  = errors.New("Region is required for voters")
	ErrInvalidRegion   = errors.New("Selected region does not exist")
	ErrCNIEExists      = errors.New("already exists")
	ErrVoterNotFound   = errors.New("voter not found")
)

var rejections = []error{
	ErrInvalidCNIE, ErrUserNotFound, ErrBadCredentials, ErrUnsupportedRole,
	ErrInvalidName, ErrInvalidEmail, ErrInvalidRole, ErrRegionRequired,
	ErrInvalidRegion, ErrCNIEExists, ErrVoterNotFound,
}

// IsRejection reports whether err is an expected business or validation
// outcome whose text can be shown to the user.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// LoginResult is a successful authentication. Voter is set for voter accounts;
// Provisioned reports that the voter row was created by this login.
type LoginResult struct {
	User        *entity.User
	Voter       *entity.Voter
	Provisioned bool
}

// Authenticate signs a user in by CNIE and, when the account has one, its PIN.
// A voter account without a voter row gets one in the placeholder region.
func (s *UserService) Authenticate(ctx context.Context, cnie, pin string) (*LoginResult, error) {
	cnie = validation.NormalizeCNIE(cnie)
	if !validation.CNIE(cnie) {
		return nil, ErrInvalidCNIE
	}
	u, err := s.repo.GetByCNIE(ctx, cnie)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.HasPIN() && !s.hasher.Verify(*u.PasswordHash, pin) {
		return nil, ErrBadCredentials
	}
	if u.Role.Capability() == entity.CapabilityNone {
		return nil, ErrUnsupportedRole
	}
	res := &LoginResult{User: u}
	if u.Role != entity.RoleVoter {
		return res, nil
	}
	v, created, err := s.repo.EnsureVoter(ctx, u.ID, s.DefaultRegionID)
	if err != nil {
		return nil, fmt.Errorf("provision voter: %w", err)
	}
	res.Voter, res.Provisioned = v, created
	return res, nil
}

// CreateUser validates nu and stores the account, plus its voter row for
// voters, atomically.
func (s *UserService) CreateUser(ctx context.Context, nu entity.NewUser) (int64, error) {
	cnie := validation.NormalizeCNIE(nu.CNIE)
	if !validation.CNIE(cnie) {
		return 0, ErrInvalidCNIE
	}
	name := validation.Sanitize(nu.Name, 100)
	if !validation.Name(name) {
		return 0, ErrInvalidName
	}
	role, ok := entity.ParseRole(string(nu.Role))
	if !ok {
		return 0, ErrInvalidRole
	}
	if role == entity.RoleVoter && nu.RegionID <= 0 {
		return 0, ErrRegionRequired
	}
	u := &entity.User{CNIE: cnie, Name: name, Role: role}
	if email := strings.TrimSpace(nu.Email); email != "" {
		if !validation.Email(email) {
			return 0, ErrInvalidEmail
		}
		email = strings.ToLower(email)
		u.Email = &email
	}
	if nu.PIN != "" {
		h, err := s.hasher.Hash(nu.PIN)
		if err != nil {
			return 0, fmt.Errorf("hash pin: %w", err)
		}
		u.PasswordHash = &h
	}
	id, err := s.repo.Create(ctx, u, nu.RegionID)
	switch {
	case err == nil:
		return id, nil
	case database.IsUniqueViolation(err, "users_cnie_key"):
		return 0, fmt.Errorf("CNIE %s %w", cnie, ErrCNIEExists)
	case database.IsForeignKeyViolation(err):
		return 0, ErrInvalidRegion
	default:
		return 0, err
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]entity.UserListItem, error) {
	return s.repo.List(ctx)
}

// Profile is a user with, for voters, the voter details.
type Profile struct {
	User  *entity.User
	Voter *entity.VoterProfile
}

func (s *UserService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p := &Profile{User: u}
	if u.Role != entity.RoleVoter {
		return p, nil
	}
	vp, err := s.repo.VoterProfile(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	p.Voter = vp
	return p, nil
}

// AssignRegion sets the voter's region and clears its pending flag.
func (s *UserService) AssignRegion(ctx context.Context, voterID, regionID int64) error {
	if regionID <= 0 {
		return ErrInvalidRegion
	}
	ok, err := s.repo.AssignRegion(ctx, voterID, regionID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrInvalidRegion
		}
		return err
	}
	if !ok {
		return ErrVoterNotFound
	}
	return nil
}

func (s *UserService) SetEligibility(ctx context.Context, voterID int64, eligible bool) error {
	ok, err := s.repo.SetEligibility(ctx, voterID, eligible)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVoterNotFound
	}
	return nil
}
