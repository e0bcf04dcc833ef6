package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/IlyasAtabaev731/finance/internal/lib/logger/sl"
	"github.com/IlyasAtabaev731/finance/internal/lib/money"
)

//go:embed templates/*.html
var templateFS embed.FS

const flashCookie = "flash"

var pages = []string{
	"apology", "buy", "change_password", "history", "index", "login", "quote", "quoted", "register",
}

type views map[string]*template.Template

func parseViews() (views, error) {
	funcs := template.FuncMap{"usd": money.USD}

	v := make(views, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		v[page] = t
	}
	return v, nil
}

type pageData struct {
	LoggedIn bool
	Flash    string
	Data     any
}

// render executes the page into a buffer first so a template error never
// leaves a half-written response.
func (s *APIServer) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := s.views[page]
	if !ok {
		s.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	_, loggedIn := UserID(r.Context())
	pd := pageData{
		LoggedIn: loggedIn,
		Flash:    popFlash(w, r),
		Data:     data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		loggerFrom(r.Context(), s.logger).Error("render failed", slog.String("page", page), sl.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type apology struct {
	Code    int
	Message string
}

func (s *APIServer) apologize(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "apology", apology{Code: status, Message: message})
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})

	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}
