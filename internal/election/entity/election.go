package entity

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an election.
type Status string

const (
	StatusPlanned   Status = "Planned"
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var Statuses = []Status{StatusPlanned, StatusActive, StatusCompleted, StatusCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether s can no longer change with time.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Election represents a row in the `elections` table.
type Election struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	Status    Status    `db:"status"`
	AdminID   *int64    `db:"admin_id"`
	CreatedAt time.Time `db:"created_at"`
}

// ElectionListItem is an election with its creator's name, for admin lists.
type ElectionListItem struct {
	Election
	AdminName   *string `db:"admin_name"`
	RegionCount int     `db:"region_count"`
	Effective   Status  `db:"-"`
}

// Candidate represents a row in the `candidates` table.
type Candidate struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	ElectionID   int64     `db:"election_id"`
	RegionID     int64     `db:"region_id"`
	PartyName    string    `db:"party_name"`
	Manifesto    string    `db:"manifesto"`
	IsApproved   bool      `db:"is_approved"`
	RegisteredAt time.Time `db:"registered_at"`
}

// CandidateView is an approved candidate as shown on the ballot page.
type CandidateView struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	PartyName  string `db:"party_name"`
	Manifesto  string `db:"manifesto"`
	RegionName string `db:"region_name"`
}

// CandidateListItem is a row of the admin candidates page.
type CandidateListItem struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	CNIE         string    `db:"cnie"`
	PartyName    string    `db:"party_name"`
	RegionName   string    `db:"region_name"`
	ElectionName string    `db:"election_name"`
	IsApproved   bool      `db:"is_approved"`
	RegisteredAt time.Time `db:"registered_at"`
}

// Vote represents a row in the `votes` table. Rows are never updated.
type Vote struct {
	ID          int64     `db:"id"`
	VoterID     int64     `db:"voter_id"`
	ElectionID  int64     `db:"election_id"`
	CandidateID int64     `db:"candidate_id"`
	Receipt     string    `db:"receipt"`
	CastAt      time.Time `db:"cast_at"`
}

// VoterElection is an election listed on the voter dashboard.
type VoterElection struct {
	Election
	HasVoted  bool   `db:"has_voted"`
	Effective Status `db:"-"`
}

// HistoryItem is one cast vote as the voter sees it.
type HistoryItem struct {
	ElectionID    int64     `db:"election_id"`
	ElectionName  string    `db:"election_name"`
	ElectionType  string    `db:"election_type"`
	CandidateName string    `db:"candidate_name"`
	PartyName     string    `db:"party_name"`
	Receipt       string    `db:"receipt"`
	CastAt        time.Time `db:"cast_at"`
}

// ResultRow is a row of vw_election_results.
type ResultRow struct {
	CandidateID    int64   `db:"candidate_id"`
	CandidateName  string  `db:"candidate_name"`
	PartyName      string  `db:"party_name"`
	RegionName     string  `db:"region_name"`
	VoteCount      int     `db:"vote_count"`
	VotePercentage float64 `db:"vote_percentage"`
}

// TurnoutRow is a row of vw_voter_turnout.
type TurnoutRow struct {
	RegionID   int64  `db:"region_id"`
	RegionName string `db:"region_name"`
	Voted      int    `db:"voted"`
	Registered int    `db:"registered"`
}

// Percent is the share of registered voters who voted, "0.00%" when none are registered.
func (t TurnoutRow) Percent() string {
	return FormatTurnout(t.Voted, t.Registered)
}

// Statistics summarises one election.
type Statistics struct {
	TotalVotes         int `db:"total_votes"`
	EligibleVoters     int `db:"eligible_voters"`
	ApprovedCandidates int `db:"approved_candidates"`
}

// Turnout is TotalVotes over EligibleVoters formatted with two decimals.
func (s Statistics) Turnout() string {
	return FormatTurnout(s.TotalVotes, s.EligibleVoters)
}

func FormatTurnout(voted, eligible int) string {
	if eligible <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(voted)*100/float64(eligible))
}

// DashboardStats are the totals on the admin dashboard.
type DashboardStats struct {
	Voters     int `db:"voters"`
	Elections  int `db:"elections"`
	Candidates int `db:"candidates"`
	Votes      int `db:"votes"`
}
