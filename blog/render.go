package blog

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"runtime/debug"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// ViewData is everything a page template can show. Each page uses the
// fields it needs.
type ViewData struct {
	Title  string
	Path   string
	Viewer *User

	Posts      []Post
	Pagination PaginationData

	Group  *Group
	Groups []Group

	Author     *User
	PostsCount int
	Following  bool
	Stats      FollowStats

	Post     *Post
	Comments []Comment
	Likes    int
	Liked    bool

	Form   FormResult
	IsEdit bool
	Next   string

	Notifications []Notification
}

var functions = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
	"postURL": PostURL,
	"mediaURL": func(name string) string {
		return "/media/" + name
	},
	"selected": func(groupID int64, value string) bool {
		return fmt.Sprint(groupID) == value
	},
	"excerpt": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "…"
	},
}

// parseTemplates builds one template set per page, each paired with the
// layout and the partials.
func parseTemplates() (map[string]*template.Template, error) {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	sets := make(map[string]*template.Template)
	for _, page := range pages {
		name := path.Base(page)
		if name == "base.html" || strings.HasPrefix(name, "_") {
			continue
		}
		ts, err := template.New(name).Funcs(functions).ParseFS(templateFS, "templates/base.html", "templates/_*.html", page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		sets[name] = ts
	}
	return sets, nil
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, rc *RequestContext, status int, page string, data *ViewData) {
	if data == nil {
		data = &ViewData{}
	}
	data.Path = r.URL.Path
	if rc != nil && data.Viewer == nil {
		data.Viewer = rc.Viewer
	}

	ts, ok := h.templates[page]
	if !ok {
		h.serverError(w, r, fmt.Errorf("template %s does not exist", page))
		return
	}
	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", data); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.errorLog.Output(2, fmt.Sprintf("%s\n%s", err.Error(), debug.Stack()))

	buf := new(bytes.Buffer)
	ts, ok := h.templates["500.html"]
	if !ok || ts.ExecuteTemplate(buf, "base", &ViewData{Title: "Server error", Path: r.URL.Path}) != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	buf.WriteTo(w)
}

func (h *Handlers) clientError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	h.render(w, r, rc, http.StatusNotFound, "404.html", &ViewData{Title: "Page not found"})
}

func (h *Handlers) methodNotAllowed(w http.ResponseWriter, methods []string) {
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}
