package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-election/pkg/utilities"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "election_session"

// CSRFField is the form field every authenticated POST must carry.
const CSRFField = "csrf_token"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevoked      = errors.New("session revoked")
)

// Store is the server-side registry of issued sessions.
type Store interface {
	Save(ctx context.Context, id string, userID int64, expiresAt time.Time) error
	Active(ctx context.Context, id string, now time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

// ConfigFromEnv reads SECRET_KEY, SESSION_TTL and SESSION_SECURE.
func ConfigFromEnv() Config {
	ttl := 2 * time.Hour
	if v, err := time.ParseDuration(os.Getenv("SESSION_TTL")); err == nil && v > 0 {
		ttl = v
	}
	secure, _ := strconv.ParseBool(os.Getenv("SESSION_SECURE"))
	return Config{Secret: os.Getenv("SECRET_KEY"), TTL: ttl, Secure: secure}
}

type claims struct {
	CNIE string `json:"cnie"`
	Name string `json:"name"`
	Role string `json:"role"`
	CSRF string `json:"csrf"`
	jwt.RegisteredClaims
}

// Manager issues, verifies and revokes session tokens.
type Manager struct {
	key    []byte
	ttl    time.Duration
	secure bool
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewManager builds a Manager. A nil store is replaced by the Postgres repo.
// An empty secret yields a random per-process key, so sessions do not
// survive a restart.
func NewManager(db *sqlx.DB, s Store, cfg Config, logger *zap.SugaredLogger) (*Manager, error) {
	if s == nil {
		s = repo.NewSessionRepo(db)
	}
	key := []byte(cfg.Secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		logger.Warn("SECRET_KEY not set; using a random session key for this process")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	return &Manager{key: key, ttl: cfg.TTL, secure: cfg.Secure, store: s, logger: logger, now: time.Now}, nil
}

// Issue registers a new session for u and sets the session cookie.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, u *entity.User) (*Identity, error) {
	now := m.now()
	id := &Identity{
		SessionID: utilities.NewKSUID(),
		UserID:    u.ID,
		CNIE:      u.CNIE,
		Name:      u.Name,
		Role:      u.Role,
		CSRF:      uuid.NewString(),
	}
	expires := now.Add(m.ttl)
	c := claims{
		CNIE: id.CNIE,
		Name: id.Name,
		Role: string(id.Role),
		CSRF: id.CSRF,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.key)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	if err := m.store.Save(ctx, id.SessionID, u.ID, expires); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if n, err := m.store.DeleteExpired(ctx, now); err != nil {
		m.logger.Warnw("prune expired sessions failed", "err", err)
	} else if n > 0 {
		m.logger.Debugw("pruned expired sessions", "count", n)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Parse verifies a token's signature and expiry and returns its identity.
// It does not consult the session store.
func (m *Manager) Parse(token string) (*Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || c.ID == "" {
		return nil, ErrInvalidToken
	}
	role, ok := entity.ParseRole(c.Role)
	if !ok {
		return nil, ErrInvalidToken
	}
	return &Identity{
		SessionID: c.ID,
		UserID:    userID,
		CNIE:      c.CNIE,
		Name:      c.Name,
		Role:      role,
		CSRF:      c.CSRF,
	}, nil
}

// Load returns the identity of the request's session, or nil when the
// request carries no session cookie.
func (m *Manager) Load(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	id, err := m.Parse(cookie.Value)
	if err != nil {
		return nil, err
	}
	active, err := m.store.Active(r.Context(), id.SessionID, m.now())
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return nil, ErrRevoked
	}
	return id, nil
}

// Revoke deletes the session server-side and clears the cookie.
func (m *Manager) Revoke(ctx context.Context, w http.ResponseWriter, id *Identity) error {
	m.clearCookie(w)
	if id == nil {
		return nil
	}
	return m.store.Delete(ctx, id.SessionID)
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate resolves the session of every request and stores the
// identity in the request context. Invalid or revoked cookies are cleared
// and the request continues anonymously. When the session store cannot be
// reached the cookie is kept, so the session survives the outage.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Load(r)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRevoked) {
				m.logger.Debugw("discarding session", "err", err, "remote", r.RemoteAddr)
				m.clearCookie(w)
			} else {
				m.logger.Warnw("session lookup failed", "err", err, "remote", r.RemoteAddr)
			}
			next.ServeHTTP(w, r)
			return
		}
		if id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Denial messages of the role gate.
const (
	MsgLoginRequired = "Please login to access this page"
	MsgVoterOnly     = "Please login as a voter to access this page"
	MsgAdminOnly     = "Access denied. Admin privileges required."
)

// Require gates a handler on capability c. Sessions lacking it are redirected
// to the login page with a denial message. Mutating requests must also carry
// the session's CSRF token.
func Require(c entity.Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == nil {
			Redirect(w, r, "/login", FlashError, MsgLoginRequired)
			return
		}
		if !id.Can(c) {
			msg := MsgAdminOnly
			if c == entity.CapabilityVoter {
				msg = MsgVoterOnly
			}
			Redirect(w, r, "/login", FlashError, msg)
			return
		}
		if r.Method == http.MethodPost && !validCSRF(id, r.PostFormValue(CSRFField)) {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// RequireSession gates a handler on any authenticated session, whatever its
// capability. POSTs must carry the CSRF token.
func RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == nil {
			Redirect(w, r, "/login", FlashError, MsgLoginRequired)
			return
		}
		if r.Method == http.MethodPost && !validCSRF(id, r.PostFormValue(CSRFField)) {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func validCSRF(id *Identity, got string) bool {
	if id.CSRF == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(id.CSRF), []byte(got)) == 1
}
