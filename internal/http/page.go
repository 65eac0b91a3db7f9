package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	// css marks a value built from our own constants as safe for a style attribute.
	"css": func(s string) template.CSS { return template.CSS(s) },
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/page.html"))

// GetPage handles GET /. The page is rendered to a buffer first so a template
// error never produces a half-written 200.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, h.page.Snapshot()); err != nil {
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Error("render page", zap.Error(err))
		}
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "unable to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
