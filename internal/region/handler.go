package region

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/region/repo"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
)

// Summarizer yields per-region counts.
type Summarizer interface {
	Summaries(ctx context.Context) ([]entity.Summary, error)
}

type Handler struct {
	regions Summarizer
	view    *web.Renderer
	logger  *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, s Summarizer, view *web.Renderer, logger *zap.SugaredLogger) *Handler {
	if s == nil {
		s = repo.NewRegionRepo(db)
	}
	return &Handler{regions: s, view: view, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.regions.Summaries(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "admin_regions", "Regions", rows)
}
