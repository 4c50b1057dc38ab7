package election

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/ovaphlow/pitchfork/service-election/pkg/validation"
)

var rejections = []error{
	ErrVoterNotFound, ErrNotEligible, ErrAlreadyVoted, ErrRegionMismatch,
	ErrInvalidCandidate, ErrCandidateRegion, ErrCandidateElection,
	ErrElectionNotFound, ErrElectionNotActive,
	ErrFieldsRequired, ErrInvalidDates, ErrRegionsRequired, ErrInvalidStatus,
	ErrInvalidRegion, ErrInvalidCNIE, ErrUserNotFound, ErrCandidateExists, ErrRegionNotInElection,
	ErrCandidateNotFound,
}

// IsRejection reports whether err is a business or validation refusal whose
// text may be shown to the user, rather than an unexpected failure.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// Message turns a refusal into the text shown to the user.
func Message(err error) string {
	var notActive *NotActiveError
	switch {
	case errors.As(err, &notActive):
		return fmt.Sprintf("%s (Status: %s)", validation.Message(validation.ElectionNotActive), notActive.Status)
	case errors.Is(err, ErrAlreadyVoted):
		return validation.Message(validation.AlreadyVoted)
	case errors.Is(err, ErrNotEligible):
		return validation.Message(validation.NotEligible)
	case errors.Is(err, ErrRegionMismatch):
		return validation.Message(validation.RegionMismatch)
	}
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}
