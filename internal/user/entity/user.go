package entity

import "time"

// Role is the closed set of account roles stored in users.role.
type Role string

const (
	RoleVoter           Role = "Voter"
	RoleAdmin           Role = "Admin"
	RoleElectionOfficer Role = "Election Officer"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleVoter, RoleAdmin, RoleElectionOfficer}

// ParseRole maps a stored or submitted role string onto the enum.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Capability is what a session may do. Admins and Election Officers share the
// administrative capability; the mapping below is the whole policy.
type Capability string

const (
	CapabilityNone  Capability = ""
	CapabilityVoter Capability = "voter"
	CapabilityAdmin Capability = "admin"
)

var capabilities = map[Role]Capability{
	RoleVoter:           CapabilityVoter,
	RoleAdmin:           CapabilityAdmin,
	RoleElectionOfficer: CapabilityAdmin,
}

// Capability returns the capability set granted to r.
func (r Role) Capability() Capability {
	return capabilities[r]
}

// HomePath is where a freshly authenticated session lands.
func (r Role) HomePath() string {
	switch r.Capability() {
	case CapabilityVoter:
		return "/voter/dashboard"
	case CapabilityAdmin:
		return "/admin/dashboard"
	default:
		return "/login"
	}
}

// User represents a row in the `users` table.
type User struct {
	ID           int64     `db:"id"`
	CNIE         string    `db:"cnie"`
	Name         string    `db:"name"`
	Role         Role      `db:"role"`
	Email        *string   `db:"email"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// HasPIN reports whether the account requires an access PIN at login.
func (u *User) HasPIN() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Voter is the one-to-one extension of a Voter-role user.
// RegionConfirmed is false while the voter still sits in the placeholder
// region assigned at auto-provisioning.
type Voter struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	RegionID        int64     `db:"region_id"`
	IsEligible      bool      `db:"is_eligible"`
	RegionConfirmed bool      `db:"region_confirmed"`
	RegisteredAt    time.Time `db:"registered_at"`
}

// NeedsRegionAssignment reports whether an administrator still has to
// confirm the voter's region.
func (v *Voter) NeedsRegionAssignment() bool {
	return !v.RegionConfirmed
}

// UserListItem is a row of the admin users page.
type UserListItem struct {
	ID              int64     `db:"id"`
	CNIE            string    `db:"cnie"`
	Name            string    `db:"name"`
	Role            Role      `db:"role"`
	CreatedAt       time.Time `db:"created_at"`
	VoterID         *int64    `db:"voter_id"`
	RegionName      *string   `db:"region_name"`
	IsEligible      *bool     `db:"is_eligible"`
	RegionConfirmed *bool     `db:"region_confirmed"`
}

// PendingRegion reports whether the row is a voter awaiting region assignment.
func (u UserListItem) PendingRegion() bool {
	return u.RegionConfirmed != nil && !*u.RegionConfirmed
}

// VoterProfile is the voter part of the profile page.
type VoterProfile struct {
	VoterID         int64     `db:"voter_id"`
	RegionID        int64     `db:"region_id"`
	RegionName      string    `db:"region_name"`
	RegisteredAt    time.Time `db:"registered_at"`
	IsEligible      bool      `db:"is_eligible"`
	RegionConfirmed bool      `db:"region_confirmed"`
}

// NewUser carries the fields an administrator submits to create an account.
type NewUser struct {
	CNIE     string
	Name     string
	Role     Role
	Email    string
	PIN      string
	RegionID int64
}
