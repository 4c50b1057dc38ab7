package election

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
	regionentity "github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/session"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
)

// RegionLister supplies region choices for the election and candidate forms.
type RegionLister interface {
	List(ctx context.Context) ([]regionentity.Region, error)
}

// AdminHandler serves the election, candidate and results administration.
type AdminHandler struct {
	svc     *AdminService
	regions RegionLister
	audit   *audit.Recorder
	view    *web.Renderer
	logger  *zap.SugaredLogger
}

func NewAdminHandler(svc *AdminService, regions RegionLister, rec *audit.Recorder, view *web.Renderer, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{svc: svc, regions: regions, audit: rec, view: view, logger: logger}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{Action: "viewed admin dashboard"})
	h.view.Render(w, r, http.StatusOK, "admin_dashboard", "Admin Dashboard", d)
}

func (h *AdminHandler) Elections(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Elections(r.Context(), 0)
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "admin_elections", "Manage Elections", items)
}

type electionFormPage struct {
	ID       int64
	Form     ElectionForm
	Statuses []entity.Status
	Regions  []regionentity.Region
	Selected map[int64]bool
	Error    string
}

func (h *AdminHandler) renderElectionForm(w http.ResponseWriter, r *http.Request, status int, page electionFormPage) {
	title := "Create Election"
	var regions []regionentity.Region
	var err error
	if page.ID != 0 {
		// Held regions are fixed once candidates may reference them.
		title = "Edit Election"
		regions, err = h.svc.ElectionRegions(r.Context(), page.ID)
	} else {
		regions, err = h.regions.List(r.Context())
	}
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	page.Regions = regions
	page.Statuses = entity.Statuses
	page.Selected = make(map[int64]bool, len(page.Form.RegionIDs))
	for _, id := range page.Form.RegionIDs {
		page.Selected[id] = true
	}
	h.view.Render(w, r, status, "admin_election_form", title, page)
}

func electionForm(r *http.Request) ElectionForm {
	_ = r.ParseForm()
	f := ElectionForm{
		Name:      r.PostForm.Get("name"),
		Type:      r.PostForm.Get("type"),
		StartDate: r.PostForm.Get("start_date"),
		EndDate:   r.PostForm.Get("end_date"),
		Status:    r.PostForm.Get("status"),
	}
	for _, v := range r.PostForm["regions"] {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.RegionIDs = append(f.RegionIDs, id)
		}
	}
	return f
}

func (h *AdminHandler) NewElection(w http.ResponseWriter, r *http.Request) {
	h.renderElectionForm(w, r, http.StatusOK, electionFormPage{})
}

func (h *AdminHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	f := electionForm(r)
	id := session.FromContext(r.Context())
	e, err := h.svc.CreateElection(r.Context(), id.UserID, f)
	if err != nil {
		if IsRejection(err) {
			h.renderElectionForm(w, r, http.StatusUnprocessableEntity, electionFormPage{Form: f, Error: Message(err)})
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{Action: "created election", Table: "elections", RecordID: e.ID, Details: "Election: " + e.Name})
	session.Redirect(w, r, "/admin/elections", session.FlashSuccess, fmt.Sprintf("Election '%s' created successfully!", e.Name))
}

func (h *AdminHandler) EditElection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.view.NotFound(w, r, Message(ErrElectionNotFound))
		return
	}
	e, err := h.svc.Election(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrElectionNotFound) {
			session.Redirect(w, r, "/admin/elections", session.FlashError, Message(err))
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	f := ElectionForm{
		Name:      e.Name,
		Type:      e.Type,
		StartDate: e.StartDate.Local().Format("2006-01-02T15:04"),
		EndDate:   e.EndDate.Local().Format("2006-01-02T15:04"),
		Status:    string(e.Status),
	}
	h.renderElectionForm(w, r, http.StatusOK, electionFormPage{ID: id, Form: f})
}

func (h *AdminHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.view.NotFound(w, r, Message(ErrElectionNotFound))
		return
	}
	f := electionForm(r)
	e, err := h.svc.UpdateElection(r.Context(), id, f)
	if err != nil {
		if errors.Is(err, ErrElectionNotFound) {
			session.Redirect(w, r, "/admin/elections", session.FlashError, Message(err))
			return
		}
		if IsRejection(err) {
			h.renderElectionForm(w, r, http.StatusUnprocessableEntity, electionFormPage{ID: id, Form: f, Error: Message(err)})
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{Action: "updated election", Table: "elections", RecordID: e.ID, Details: "Election: " + e.Name})
	session.Redirect(w, r, "/admin/elections", session.FlashSuccess, fmt.Sprintf("Election '%s' updated successfully!", e.Name))
}

func (h *AdminHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Candidates(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "admin_candidates", "Manage Candidates", items)
}

type candidateFormPage struct {
	Form      CandidateForm
	Elections []entity.ElectionListItem
	Regions   []regionentity.Region
	Error     string
}

func (h *AdminHandler) renderCandidateForm(w http.ResponseWriter, r *http.Request, status int, page candidateFormPage) {
	elections, err := h.svc.Elections(r.Context(), 0)
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	regions, err := h.regions.List(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	page.Elections, page.Regions = elections, regions
	h.view.Render(w, r, status, "admin_candidate_form", "Register Candidate", page)
}

func (h *AdminHandler) NewCandidate(w http.ResponseWriter, r *http.Request) {
	h.renderCandidateForm(w, r, http.StatusOK, candidateFormPage{})
}

func (h *AdminHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, _ := strconv.ParseInt(r.PostFormValue("election_id"), 10, 64)
	regionID, _ := strconv.ParseInt(r.PostFormValue("region_id"), 10, 64)
	f := CandidateForm{
		CNIE:       r.PostFormValue("cnie"),
		ElectionID: electionID,
		RegionID:   regionID,
		PartyName:  r.PostFormValue("party_name"),
		Manifesto:  r.PostFormValue("manifesto"),
	}
	c, err := h.svc.RegisterCandidate(r.Context(), f)
	if err != nil {
		if IsRejection(err) {
			h.renderCandidateForm(w, r, http.StatusUnprocessableEntity, candidateFormPage{Form: f, Error: Message(err)})
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{
		Action:   "registered candidate",
		Table:    "candidates",
		RecordID: c.ID,
		Details:  fmt.Sprintf("Election: %d, Region: %d", c.ElectionID, c.RegionID),
	})
	session.Redirect(w, r, "/admin/candidates", session.FlashSuccess, "Candidate registered. Approve to publish on the ballot.")
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.setApproval(w, r, true)
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setApproval(w, r, false)
}

func (h *AdminHandler) setApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	id, ok := pathID(r)
	if !ok {
		session.Redirect(w, r, "/admin/candidates", session.FlashError, Message(ErrCandidateNotFound))
		return
	}
	if err := h.svc.SetApproval(r.Context(), id, approved); err != nil {
		if IsRejection(err) {
			session.Redirect(w, r, "/admin/candidates", session.FlashError, Message(err))
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	action, kind, msg := "approved candidate", session.FlashSuccess, "Candidate approved successfully!"
	if !approved {
		action, kind, msg = "rejected candidate", session.FlashInfo, "Candidate rejected"
	}
	h.audit.RecordRequest(r, audit.Event{Action: action, Table: "candidates", RecordID: id})
	session.Redirect(w, r, "/admin/candidates", kind, msg)
}

func (h *AdminHandler) ResultsIndex(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Elections(r.Context(), 0)
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "admin_results", "Election Results", items)
}

func (h *AdminHandler) ElectionResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.view.NotFound(w, r, Message(ErrElectionNotFound))
		return
	}
	res, err := h.svc.Results(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrElectionNotFound) {
			session.Redirect(w, r, "/admin/results", session.FlashError, Message(err))
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{Action: "viewed election results", Table: "elections", RecordID: id})
	h.view.Render(w, r, http.StatusOK, "admin_election_results", "Results: "+res.Election.Name, res)
}
