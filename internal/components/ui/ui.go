// Package ui provides the operator console pages.
package ui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staybook/frontdesk/internal/components/announcements"
	"github.com/staybook/frontdesk/internal/components/api"
	"github.com/staybook/frontdesk/internal/components/board"
	"github.com/staybook/frontdesk/internal/components/feed"
	"github.com/staybook/frontdesk/internal/components/guard"
	"github.com/staybook/frontdesk/internal/components/session"
	"github.com/staybook/frontdesk/internal/platform/appctx"
	"github.com/staybook/frontdesk/internal/platform/logutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// formTimeLayout is what <input type="datetime-local"> submits.
const formTimeLayout = "2006-01-02T15:04"

// Sessions is the part of session.Context the pages use.
type Sessions interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	Current() (session.Session, bool)
	IsAuthenticated() bool
}

// Boards hands out the live announcements board.
type Boards interface {
	Current(ctx context.Context) *board.Board
	Refresh(ctx context.Context) *board.Board
	Close()
}

// Creator publishes new announcements.
type Creator interface {
	Create(ctx context.Context, n announcements.NewAnnouncement) (feed.Announcement, error)
}

// Config wires a Handler.
type Config struct {
	BasePath string
	Sessions Sessions
	Boards   Boards
	Creator  Creator
	Log      *slog.Logger

	// SnapshotWait bounds how long a page render waits for the first snapshot.
	SnapshotWait time.Duration
}

// Handler serves the UI pages.
type Handler struct {
	basePath     string
	templates    *template.Template
	sessions     Sessions
	boards       Boards
	creator      Creator
	log          *slog.Logger
	snapshotWait time.Duration
}

// NewHandler creates a new UI handler.
func NewHandler(cfg Config) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"fmtTime": fmtTime,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	wait := cfg.SnapshotWait
	if wait <= 0 {
		wait = 3 * time.Second
	}

	return &Handler{
		basePath:     guard.NormalizeBasePath(cfg.BasePath),
		templates:    tmpl,
		sessions:     cfg.Sessions,
		boards:       cfg.Boards,
		creator:      cfg.Creator,
		log:          logutil.NoopIfNil(cfg.Log),
		snapshotWait: wait,
	}, nil
}

// Router returns the /ui sub-router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/announcements", h.AnnouncementsPage)
	r.Get("/announcements.json", h.AnnouncementsJSON)
	r.Post("/announcements", h.CreateAnnouncement)
	return r
}

// Prefix is the mount point of the pages under the base path.
func (h *Handler) Prefix() string { return "ui" }

// Handler returns the routed pages.
func (h *Handler) Handler() http.Handler { return h.Router() }

// Unprotected returns paths under /ui that do not require a session.
func (h *Handler) Unprotected() []string {
	return []string{"/login"}
}

// SessionEnded stops the live board once a navigation finds no live session,
// so the stream stops reconnecting with a dead token.
func (h *Handler) SessionEnded() {
	h.boards.Close()
}

// Close stops the live board.
func (h *Handler) Close() error {
	h.boards.Close()
	return nil
}

func (h *Handler) uiPrefix() string { return guard.UIPrefix(h.basePath) }

type loginData struct {
	UIPrefix string
	Redirect string
	Flash    string
	Error    string
}

// LoginPage renders the login form, consuming any pending flash message.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect")
	if h.sessions.IsAuthenticated() {
		http.Redirect(w, r, guard.SafeRedirect(h.basePath, redirect), http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "login.html", loginData{
		UIPrefix: h.uiPrefix(),
		Redirect: redirect,
		Flash:    guard.ConsumeFlash(w, r),
	})
}

// Login handles the login form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	if err := r.ParseForm(); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid form")
		return
	}
	token := strings.TrimSpace(r.PostForm.Get("token"))
	redirect := r.PostForm.Get("redirect")

	if token == "" {
		h.render(w, http.StatusBadRequest, "login.html", loginData{
			UIPrefix: h.uiPrefix(), Redirect: redirect, Error: "Enter an access token.",
		})
		return
	}

	if err := h.sessions.Login(r.Context(), token); err != nil {
		status, msg := http.StatusUnauthorized, "That access token could not be read."
		switch {
		case errors.Is(err, session.ErrExpired):
			msg = "That access token has expired."
		case errors.Is(err, session.ErrMalformed):
		default:
			status, msg = http.StatusInternalServerError, "Could not save the session."
			log.Error("login failed", "error", err)
		}
		log.Info("login rejected", "reason", err)
		h.render(w, status, "login.html", loginData{UIPrefix: h.uiPrefix(), Redirect: redirect, Error: msg})
		return
	}

	// A new session may belong to another tenant.
	h.boards.Close()
	http.Redirect(w, r, guard.SafeRedirect(h.basePath, redirect), http.StatusSeeOther)
}

// Logout ends the session and closes the board.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.boards.Close()
	if err := h.sessions.Logout(r.Context()); err != nil {
		appctx.GetLogger(r.Context()).Error("logout failed to clear token store", "error", err)
	}
	http.Redirect(w, r, h.uiPrefix()+"/login", http.StatusSeeOther)
}

type announcementsData struct {
	UIPrefix      string
	Session       *session.Session
	Status        feed.Status
	Stream        string
	Flash         string
	SnapshotError string
	Items         []feed.Announcement
}

// boardFor returns the live board (a fresh one with ?refresh=1) after giving
// the snapshot a bounded chance to arrive.
func (h *Handler) boardFor(r *http.Request) *board.Board {
	var b *board.Board
	if r.URL.Query().Get("refresh") == "1" {
		b = h.boards.Refresh(r.Context())
	} else {
		b = h.boards.Current(r.Context())
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.snapshotWait)
	defer cancel()
	b.WaitSnapshot(ctx)
	return b
}

// AnnouncementsPage renders the merged feed.
func (h *Handler) AnnouncementsPage(w http.ResponseWriter, r *http.Request) {
	status, ok := feed.ParseStatus(r.URL.Query().Get("status"))
	if !ok {
		api.WriteBadRequest(w, api.ReasonInvalidField, "status must be active, expired or all")
		return
	}

	b := h.boardFor(r)
	data := announcementsData{
		UIPrefix: h.uiPrefix(),
		Status:   status,
		Stream:   string(b.State()),
		Flash:    guard.ConsumeFlash(w, r),
		Items:    b.View(status),
	}
	if s, ok := h.sessions.Current(); ok {
		data.Session = &s
	}
	if err := b.SnapshotErr(); err != nil {
		data.SnapshotError = snapshotMessage(err)
	}
	h.render(w, http.StatusOK, "announcements.html", data)
}

// AnnouncementsResponse is the body of GET /ui/announcements.json.
type AnnouncementsResponse struct {
	Status        feed.Status         `json:"status"`
	Stream        string              `json:"stream"`
	SnapshotError string              `json:"snapshot_error,omitempty"`
	Items         []feed.Announcement `json:"items"`
}

// AnnouncementsJSON returns the merged feed as JSON.
func (h *Handler) AnnouncementsJSON(w http.ResponseWriter, r *http.Request) {
	status, ok := feed.ParseStatus(r.URL.Query().Get("status"))
	if !ok {
		api.WriteBadRequest(w, api.ReasonInvalidField, "status must be active, expired or all")
		return
	}

	b := h.boardFor(r)
	resp := AnnouncementsResponse{
		Status: status,
		Stream: string(b.State()),
		Items:  b.View(status),
	}
	if resp.Items == nil {
		resp.Items = []feed.Announcement{}
	}
	if err := b.SnapshotErr(); err != nil {
		resp.SnapshotError = snapshotMessage(err)
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// CreateAnnouncement publishes a new announcement from the page form.
func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())
	back := h.uiPrefix() + "/announcements"

	if err := r.ParseForm(); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid form")
		return
	}

	n := announcements.NewAnnouncement{
		Title:   strings.TrimSpace(r.PostForm.Get("title")),
		Content: r.PostForm.Get("content"),
	}
	var err error
	if n.PostDate, err = parseFormTime(r.PostForm.Get("postDate")); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "postDate: "+err.Error())
		return
	}
	if n.ExpiresAt, err = parseFormTime(r.PostForm.Get("expirationDate")); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "expirationDate: "+err.Error())
		return
	}

	created, err := h.creator.Create(r.Context(), n)
	switch {
	case err == nil:
		if created.ID > 0 {
			h.boards.Current(r.Context()).Add(created)
		}
		guard.SetFlash(w, "Announcement published.")
	case errors.Is(err, announcements.ErrInvalid):
		guard.SetFlash(w, strings.TrimPrefix(err.Error(), announcements.ErrInvalid.Error()+": "))
	case errors.Is(err, announcements.ErrUnauthorized), errors.Is(err, announcements.ErrNoSession):
		log.Warn("backend rejected session, signing out", "error", err)
		h.boards.Close()
		if err := h.sessions.Logout(r.Context()); err != nil {
			log.Error("sign-out failed to clear token store", "error", err)
		}
		guard.SetFlash(w, guard.MessageSessionRequired)
		http.Redirect(w, r, guard.LoginURL(h.basePath, back), http.StatusSeeOther)
		return
	default:
		log.Error("create announcement failed", "error", err)
		guard.SetFlash(w, "Could not publish the announcement. Try again.")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("template error", "template", name, "error", err)
	}
}

func snapshotMessage(err error) string {
	switch {
	case errors.Is(err, announcements.ErrUnauthorized):
		return "the backend rejected the session"
	case errors.Is(err, announcements.ErrNoSession):
		return "no session"
	case errors.Is(err, context.DeadlineExceeded):
		return "the backend did not answer in time"
	default:
		return "the backend is unavailable"
	}
}

func parseFormTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(formTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
