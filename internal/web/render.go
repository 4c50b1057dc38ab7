// Package web renders the server-side HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/session"
	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static serves the embedded stylesheet under /static/.
func Static() http.Handler {
	sub, _ := fs.Sub(staticFS, "static")
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

const layoutFile = "templates/layout.html"

// GenericError is shown for unexpected failures; details go to the log only.
const GenericError = "An unexpected error occurred. Please try again later."

// Page is the value every template executes against.
type Page struct {
	Title    string
	Identity *session.Identity
	Flash    *session.Flash
	Data     any
}

// CSRFInput renders the hidden CSRF field for forms of the current session.
func (p Page) CSRFInput() template.HTML {
	if p.Identity == nil {
		return ""
	}
	return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
		session.CSRFField, template.HTMLEscapeString(p.Identity.CSRF)))
}

func (p Page) IsAdmin() bool { return p.Identity.Can(entity.CapabilityAdmin) }
func (p Page) IsVoter() bool { return p.Identity.Can(entity.CapabilityVoter) }

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
	"date":     func(t time.Time) string { return t.Local().Format("2006-01-02") },
	"dtlocal":  func(t time.Time) string { return t.Local().Format("2006-01-02T15:04") },
	"add":      func(a, b int) int { return a + b },
	"sub":      func(a, b int) int { return a - b },
	"lower":    strings.ToLower,
	"flag":     func(b *bool) bool { return b != nil && *b },
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.SugaredLogger
}

// NewRenderer parses every embedded page together with the shared layout.
func NewRenderer(logger *zap.SugaredLogger) (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	rd := &Renderer{pages: make(map[string]*template.Template), logger: logger}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		rd.pages[name] = t
	}
	return rd, nil
}

// Render executes page name into w with the request's identity and flash.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, ok := rd.pages[name]
	if !ok {
		rd.logger.Errorw("unknown template", "name", name)
		http.Error(w, GenericError, http.StatusInternalServerError)
		return
	}
	p := Page{
		Title:    title,
		Identity: session.FromContext(r.Context()),
		Flash:    session.PopFlash(w, r),
		Data:     data,
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		rd.logger.Errorw("render template failed", "name", name, "err", err)
		http.Error(w, GenericError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// ServerError logs err and renders the generic error page.
func (rd *Renderer) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	rd.logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	rd.Render(w, r, http.StatusInternalServerError, "error", "Error", GenericError)
}

// NotFound renders the error page with a 404 status.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request, message string) {
	rd.Render(w, r, http.StatusNotFound, "error", "Not found", message)
}
