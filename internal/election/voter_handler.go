package election

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/session"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
)

const msgNoVoterRecord = "Voter registration not found. Please contact admin."

// VoterHandler serves the /voter pages.
type VoterHandler struct {
	svc    *VoteService
	audit  *audit.Recorder
	view   *web.Renderer
	logger *zap.SugaredLogger
}

func NewVoterHandler(svc *VoteService, rec *audit.Recorder, view *web.Renderer, logger *zap.SugaredLogger) *VoterHandler {
	return &VoterHandler{svc: svc, audit: rec, view: view, logger: logger}
}

func (h *VoterHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrVoterNotFound):
		h.view.NotFound(w, r, msgNoVoterRecord)
	case errors.Is(err, ErrElectionNotFound):
		h.view.NotFound(w, r, Message(err))
	default:
		h.view.ServerError(w, r, err)
	}
}

func (h *VoterHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id := session.FromContext(r.Context())
	d, err := h.svc.Dashboard(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{Action: "viewed voter dashboard"})
	h.view.Render(w, r, http.StatusOK, "voter_dashboard", "Voter Dashboard", d)
}

type ballotView struct {
	*BallotPage
	Message string
}

func (h *VoterHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	electionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.view.NotFound(w, r, Message(ErrElectionNotFound))
		return
	}
	id := session.FromContext(r.Context())
	page, err := h.svc.Ballot(r.Context(), id.UserID, electionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := ballotView{BallotPage: page}
	if !page.Verdict.Eligible {
		view.Message = Message(page.Verdict.Reason)
	}
	h.audit.RecordRequest(r, audit.Event{Action: "viewed candidates", Table: "elections", RecordID: electionID})
	h.view.Render(w, r, http.StatusOK, "voter_candidates", page.Election.Name, view)
}

func (h *VoterHandler) Vote(w http.ResponseWriter, r *http.Request) {
	electionID, err1 := strconv.ParseInt(r.PostFormValue("election_id"), 10, 64)
	candidateID, err2 := strconv.ParseInt(r.PostFormValue("candidate_id"), 10, 64)
	if err1 != nil || err2 != nil {
		session.Redirect(w, r, "/voter/dashboard", session.FlashError, "Missing required fields")
		return
	}
	id := session.FromContext(r.Context())
	_, err := h.svc.Cast(r.Context(), Ballot{
		UserID:      id.UserID,
		ElectionID:  electionID,
		CandidateID: candidateID,
		IP:          audit.ClientIP(r),
	})
	if err != nil {
		if IsRejection(err) {
			h.logger.Infow("vote rejected", "user_id", id.UserID, "election_id", electionID, "reason", err)
			back := fmt.Sprintf("/voter/election/%d/candidates", electionID)
			session.Redirect(w, r, back, session.FlashError, Message(err))
			return
		}
		h.view.ServerError(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/voter/vote/success?election_id=%d", electionID), http.StatusSeeOther)
}

func (h *VoterHandler) Success(w http.ResponseWriter, r *http.Request) {
	electionID, err := strconv.ParseInt(r.URL.Query().Get("election_id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/voter/history", http.StatusSeeOther)
		return
	}
	id := session.FromContext(r.Context())
	item, err := h.svc.Receipt(r.Context(), id.UserID, electionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "voter_vote_success", "Vote Recorded", item)
}

func (h *VoterHandler) History(w http.ResponseWriter, r *http.Request) {
	id := session.FromContext(r.Context())
	items, err := h.svc.History(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit.RecordRequest(r, audit.Event{Action: "viewed voting history"})
	h.view.Render(w, r, http.StatusOK, "voter_history", "Voting History", items)
}
