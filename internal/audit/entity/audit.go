package entity

import "time"

// Entry is one immutable audit_log row as written by the recorder.
type Entry struct {
	UserID    *int64
	Action    string
	TableName *string
	RecordID  *int64
	IPAddress *string
	Details   *string
}

// LogView is an audit row joined with its actor for the admin listing.
type LogView struct {
	ID        int64     `db:"id"`
	ActorName *string   `db:"actor_name"`
	ActorRole *string   `db:"actor_role"`
	Action    string    `db:"action"`
	TableName *string   `db:"table_name"`
	RecordID  *int64    `db:"record_id"`
	IPAddress *string   `db:"ip_address"`
	Details   *string   `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}
