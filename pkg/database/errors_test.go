package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestConstraintClassification(t *testing.T) {
	dupVote := &pq.Error{Code: "23505", Constraint: "votes_voter_election_key"}
	badRegion := &pq.Error{Code: "23503", Constraint: "candidates_election_region_fkey"}
	immutable := &pq.Error{Code: "P0001", Message: "votes are immutable"}

	cases := []struct {
		name    string
		err     error
		unique  bool
		foreign bool
	}{
		{"unique", dupVote, true, false},
		{"wrapped unique", fmt.Errorf("insert vote: %w", dupVote), true, false},
		{"foreign key", badRegion, false, true},
		{"trigger exception", immutable, false, false},
		{"plain error", errors.New("connection reset"), false, false},
		{"nil", nil, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsUniqueViolation(c.err); got != c.unique {
				t.Errorf("IsUniqueViolation = %v", got)
			}
			if got := IsForeignKeyViolation(c.err); got != c.foreign {
				t.Errorf("IsForeignKeyViolation = %v", got)
			}
		})
	}
}

func TestConstraintNameFilter(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "users_cnie_key"}
	if !IsUniqueViolation(err, "votes_voter_election_key", "users_cnie_key") {
		t.Error("listed constraint should match")
	}
	if IsUniqueViolation(err, "votes_voter_election_key") {
		t.Error("other constraint must not match")
	}
}
