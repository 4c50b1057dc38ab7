package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/metrics"
	regionentity "github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/session"
	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
)

// RegionLister supplies the region choices of the user forms.
type RegionLister interface {
	List(ctx context.Context) ([]regionentity.Region, error)
}

// Handler serves login, logout, profile and the admin user pages.
type Handler struct {
	svc      *UserService
	sessions *session.Manager
	audit    *audit.Recorder
	regions  RegionLister
	view     *web.Renderer
	logger   *zap.SugaredLogger
}

func NewHandler(svc *UserService, sessions *session.Manager, rec *audit.Recorder, regions RegionLister, view *web.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, audit: rec, regions: regions, view: view, logger: logger}
}

// Index sends a signed-in user home and everyone else to the login page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if id := session.FromContext(r.Context()); id != nil {
		http.Redirect(w, r, id.Role.HomePath(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type loginPage struct {
	CNIE  string
	Error string
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if id := session.FromContext(r.Context()); id != nil {
		http.Redirect(w, r, id.Role.HomePath(), http.StatusSeeOther)
		return
	}
	h.view.Render(w, r, http.StatusOK, "login", "Login", loginPage{})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	cnie := r.PostFormValue("cnie")
	res, err := h.svc.Authenticate(r.Context(), cnie, r.PostFormValue("pin"))
	if err != nil {
		h.loginFailed(w, r, cnie, err)
		return
	}
	u := res.User
	id, err := h.sessions.Issue(r.Context(), w, u)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		h.view.ServerError(w, r, err)
		return
	}
	metrics.Logins.WithLabelValues("success").Inc()

	ctx := session.WithIdentity(r.Context(), id)
	ip := audit.ClientIP(r)
	if res.Provisioned {
		h.logger.Infow("auto-registered voter in placeholder region", "user_id", u.ID, "region_id", res.Voter.RegionID)
		h.audit.Record(ctx, ip, audit.Event{
			Action:   "auto-registered new voter",
			Table:    "voters",
			RecordID: res.Voter.ID,
			Details:  fmt.Sprintf("placeholder region %d pending assignment", res.Voter.RegionID),
		})
	}
	h.audit.Record(ctx, ip, audit.Event{Action: "successful login", Table: "users", RecordID: u.ID, Details: "Role: " + string(u.Role)})

	session.Redirect(w, r, u.Role.HomePath(), session.FlashSuccess, "Welcome, "+u.Name+"!")
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, cnie string, err error) {
	page := loginPage{CNIE: cnie, Error: err.Error()}
	switch {
	case errors.Is(err, ErrInvalidCNIE):
		metrics.Logins.WithLabelValues("invalid").Inc()
		h.view.Render(w, r, http.StatusUnprocessableEntity, "login", "Login", page)
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrBadCredentials):
		result := "not_found"
		if errors.Is(err, ErrBadCredentials) {
			result = "bad_credentials"
		}
		metrics.Logins.WithLabelValues(result).Inc()
		h.audit.RecordRequest(r, audit.Event{Action: "failed login attempt", Details: "CNIE: " + cnie})
		page.Error = ErrUserNotFound.Error()
		h.view.Render(w, r, http.StatusUnauthorized, "login", "Login", page)
	case errors.Is(err, ErrUnsupportedRole):
		metrics.Logins.WithLabelValues("invalid").Inc()
		h.view.Render(w, r, http.StatusForbidden, "login", "Login", page)
	default:
		metrics.Logins.WithLabelValues("error").Inc()
		h.view.ServerError(w, r, err)
	}
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id := session.FromContext(r.Context())
	h.audit.RecordRequest(r, audit.Event{Action: "user logged out", Table: "users", RecordID: id.UserID})
	if err := h.sessions.Revoke(r.Context(), w, id); err != nil {
		h.logger.Warnw("revoke session failed", "user_id", id.UserID, "err", err)
	}
	session.Redirect(w, r, "/login", session.FlashInfo, "You have been logged out successfully")
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id := session.FromContext(r.Context())
	p, err := h.svc.Profile(r.Context(), id.UserID)
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "profile", "My Profile", p)
}

type usersPage struct {
	Users   []entity.UserListItem
	Regions []regionentity.Region
	Pending int
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	regions, err := h.regions.List(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	page := usersPage{Users: users, Regions: regions}
	for _, u := range users {
		if u.PendingRegion() {
			page.Pending++
		}
	}
	h.audit.RecordRequest(r, audit.Event{Action: "viewed user management"})
	h.view.Render(w, r, http.StatusOK, "admin_users", "Manage Users", page)
}

type userFormPage struct {
	Form    entity.NewUser
	Roles   []entity.Role
	Regions []regionentity.Region
	Error   string
}

func (h *Handler) NewUserForm(w http.ResponseWriter, r *http.Request) {
	h.renderUserForm(w, r, http.StatusOK, entity.NewUser{Role: entity.RoleVoter}, "")
}

func (h *Handler) renderUserForm(w http.ResponseWriter, r *http.Request, status int, form entity.NewUser, msg string) {
	regions, err := h.regions.List(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	form.PIN = ""
	h.view.Render(w, r, status, "admin_user_form", "Add User", userFormPage{Form: form, Roles: entity.Roles, Regions: regions, Error: msg})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	regionID, _ := strconv.ParseInt(r.PostFormValue("region_id"), 10, 64)
	nu := entity.NewUser{
		CNIE:     r.PostFormValue("cnie"),
		Name:     r.PostFormValue("name"),
		Role:     entity.Role(r.PostFormValue("role")),
		Email:    r.PostFormValue("email"),
		PIN:      r.PostFormValue("pin"),
		RegionID: regionID,
	}
	id, err := h.svc.CreateUser(r.Context(), nu)
	if err != nil {
		if IsRejection(err) {
			h.renderUserForm(w, r, http.StatusUnprocessableEntity, nu, err.Error())
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{
		Action:   "created user",
		Table:    "users",
		RecordID: id,
		Details:  fmt.Sprintf("Role: %s", nu.Role),
	})
	session.Redirect(w, r, "/admin/users", session.FlashSuccess, fmt.Sprintf("User %s created successfully!", nu.Name))
}

func (h *Handler) AssignRegion(w http.ResponseWriter, r *http.Request) {
	voterID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.view.NotFound(w, r, ErrVoterNotFound.Error())
		return
	}
	regionID, _ := strconv.ParseInt(r.PostFormValue("region_id"), 10, 64)
	if err := h.svc.AssignRegion(r.Context(), voterID, regionID); err != nil {
		if IsRejection(err) {
			session.Redirect(w, r, "/admin/users", session.FlashError, err.Error())
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{
		Action:   "assigned voter region",
		Table:    "voters",
		RecordID: voterID,
		Details:  fmt.Sprintf("Region: %d", regionID),
	})
	session.Redirect(w, r, "/admin/users", session.FlashSuccess, "Voter region updated")
}

func (h *Handler) SetEligibility(w http.ResponseWriter, r *http.Request) {
	voterID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.view.NotFound(w, r, ErrVoterNotFound.Error())
		return
	}
	eligible := r.PostFormValue("eligible") == "true"
	if err := h.svc.SetEligibility(r.Context(), voterID, eligible); err != nil {
		if IsRejection(err) {
			session.Redirect(w, r, "/admin/users", session.FlashError, err.Error())
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{
		Action:   "updated voter eligibility",
		Table:    "voters",
		RecordID: voterID,
		Details:  fmt.Sprintf("Eligible: %t", eligible),
	})
	session.Redirect(w, r, "/admin/users", session.FlashSuccess, "Voter eligibility updated")
}
