package validation

// Message keys.
const (
	InvalidCNIE       = "invalid_cnie"
	InvalidName       = "invalid_name"
	InvalidEmail      = "invalid_email"
	InvalidDates      = "invalid_dates"
	AlreadyVoted      = "already_voted"
	NotEligible       = "not_eligible"
	ElectionNotActive = "election_not_active"
	RegionMismatch    = "region_mismatch"
	Unauthorized      = "unauthorized"
	NotAuthenticated  = "not_authenticated"
)

var messages = map[string]string{
	InvalidCNIE:       "Invalid CNIE format. Expected: 2 letters + 6 digits (e.g., AD123456)",
	InvalidName:       "Name must be 2-100 characters and contain only letters",
	InvalidEmail:      "Invalid email format",
	InvalidDates:      "End date must be after start date",
	AlreadyVoted:      "You have already voted in this election",
	NotEligible:       "You are not eligible to vote in this election",
	ElectionNotActive: "This election is not currently active",
	RegionMismatch:    "Election not available in your region",
	Unauthorized:      "You do not have permission to perform this action",
	NotAuthenticated:  "Please login to continue",
}

// Message returns the user-facing text for key, or "An error occurred".
func Message(key string) string {
	if m, ok := messages[key]; ok {
		return m
	}
	return "An error occurred"
}
