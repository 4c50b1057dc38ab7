package entity

// Region is an administrative partition elections are held in.
type Region struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Summary is a row of the admin regions page.
type Summary struct {
	ID             int64  `db:"id"`
	Name           string `db:"name"`
	VoterCount     int    `db:"voter_count"`
	CandidateCount int    `db:"candidate_count"`
	PendingVoters  int    `db:"pending_voters"`
}
