// Package audit records significant actions in the append-only audit log.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/audit/repo"
	"github.com/ovaphlow/pitchfork/service-election/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-election/internal/session"
)

// Store appends audit entries.
type Store interface {
	Insert(ctx context.Context, e entity.Entry) (int64, error)
}

// Recorder writes audit entries on a best-effort basis: a failed write is
// logged and counted, never returned to the caller.
type Recorder struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewRecorder(db *sqlx.DB, s Store, logger *zap.SugaredLogger) *Recorder {
	if s == nil {
		s = repo.NewAuditRepo(db)
	}
	return &Recorder{store: s, logger: logger}
}

// Event describes one action to record. Table and RecordID are optional.
type Event struct {
	Action   string
	Table    string
	RecordID int64
	Details  string
}

// Record appends ev for the identity in ctx with the given client address.
func (rc *Recorder) Record(ctx context.Context, ip string, ev Event) {
	e := entity.Entry{
		UserID: session.UserID(ctx),
		Action: ev.Action,
	}
	if ev.Table != "" {
		e.TableName = &ev.Table
	}
	if ev.RecordID != 0 {
		id := ev.RecordID
		e.RecordID = &id
	}
	if ip != "" {
		e.IPAddress = &ip
	}
	if ev.Details != "" {
		e.Details = &ev.Details
	}
	// Detached from request cancellation so a closed client does not drop the entry.
	if _, err := rc.store.Insert(context.WithoutCancel(ctx), e); err != nil {
		metrics.AuditFailures.Inc()
		rc.logger.Warnw("audit log write failed", "action", ev.Action, "err", err)
	}
}

// RecordRequest is Record with the client address taken from r.
func (rc *Recorder) RecordRequest(r *http.Request, ev Event) {
	rc.Record(r.Context(), ClientIP(r), ev)
}

// ClientIP extracts the client address, preferring X-Forwarded-For then
// X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
