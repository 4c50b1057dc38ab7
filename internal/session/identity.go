package session

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
)

// Identity is the authenticated principal of one request. It is placed in the
// request context by Manager.Authenticate and passed explicitly from there.
type Identity struct {
	SessionID string
	UserID    int64
	CNIE      string
	Name      string
	Role      entity.Role
	CSRF      string
}

// Can reports whether the identity holds capability c.
func (id *Identity) Can(c entity.Capability) bool {
	return id != nil && c != entity.CapabilityNone && id.Role.Capability() == c
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// UserID returns the acting user id, or nil when ctx is anonymous.
func UserID(ctx context.Context) *int64 {
	id := FromContext(ctx)
	if id == nil {
		return nil
	}
	v := id.UserID
	return &v
}
