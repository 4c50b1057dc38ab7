package election

import (
	"context"
	"database/sql"
	"errors"

	userentity "github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
)

// Rejection reasons of the eligibility check, in the order they are tested.
var (
	ErrVoterNotFound  = errors.New("voter not found")
	ErrNotEligible    = errors.New("account not eligible")
	ErrAlreadyVoted   = errors.New("already voted")
	ErrRegionMismatch = errors.New("election not available in your region")
)

// EligibilityStore is the read-only view the eligibility check needs.
type EligibilityStore interface {
	GetVoter(ctx context.Context, voterID int64) (*userentity.Voter, error)
	HasVoted(ctx context.Context, voterID, electionID int64) (bool, error)
	ElectionHasRegion(ctx context.Context, electionID, regionID int64) (bool, error)
}

// Verdict is the outcome of an eligibility check. Reason is nil when Eligible.
type Verdict struct {
	Eligible bool
	Reason   error
	Voter    *userentity.Voter
}

func reject(reason error, v *userentity.Voter) Verdict {
	return Verdict{Reason: reason, Voter: v}
}

// CheckEligibility decides whether voterID may vote in electionID. It has no
// side effects. The returned error is reserved for store failures; a refusal
// is a Verdict with a Reason.
func CheckEligibility(ctx context.Context, s EligibilityStore, voterID, electionID int64) (Verdict, error) {
	v, err := s.GetVoter(ctx, voterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reject(ErrVoterNotFound, nil), nil
		}
		return Verdict{}, err
	}
	if !v.IsEligible {
		return reject(ErrNotEligible, v), nil
	}
	voted, err := s.HasVoted(ctx, v.ID, electionID)
	if err != nil {
		return Verdict{}, err
	}
	if voted {
		return reject(ErrAlreadyVoted, v), nil
	}
	held, err := s.ElectionHasRegion(ctx, electionID, v.RegionID)
	if err != nil {
		return Verdict{}, err
	}
	if !held {
		return reject(ErrRegionMismatch, v), nil
	}
	return Verdict{Eligible: true, Voter: v}, nil
}
