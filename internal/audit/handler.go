package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/audit/repo"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
)

// PageSize is the number of audit entries per page.
const PageSize = 50

// LogReader reads the audit log for the admin listing.
type LogReader interface {
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, limit, offset int) ([]entity.LogView, error)
}

type Handler struct {
	logs   LogReader
	view   *web.Renderer
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, logs LogReader, view *web.Renderer, logger *zap.SugaredLogger) *Handler {
	if logs == nil {
		logs = repo.NewAuditRepo(db)
	}
	return &Handler{logs: logs, view: view, logger: logger}
}

type logPage struct {
	Entries    []entity.LogView
	Page       int
	TotalPages int
	Total      int
}

// TotalPages rounds up; an empty log has zero pages.
func TotalPages(total, size int) int {
	return (total + size - 1) / size
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	total, err := h.logs.Count(r.Context())
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	entries, err := h.logs.Page(r.Context(), PageSize, (page-1)*PageSize)
	if err != nil {
		h.view.ServerError(w, r, err)
		return
	}
	h.view.Render(w, r, http.StatusOK, "admin_audit", "Audit Log", logPage{
		Entries:    entries,
		Page:       page,
		TotalPages: TotalPages(total, PageSize),
		Total:      total,
	})
}
