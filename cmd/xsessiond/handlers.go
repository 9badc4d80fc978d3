package main

import (
	"crypto/subtle"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bluescreen10/xsession"
	"github.com/bluescreen10/xsession/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

//go:embed templates
var templatesFS embed.FS

// User is the payload carried by every session.
type User struct {
	Authenticated bool
	UserID        string
}

type loginForm struct {
	SessionID string `form:"sid"`
	UserID    string `form:"uid"`
	Password  string `form:"pwd"`
}

type app struct {
	mgr       *web.Manager[User]
	renderer  *web.Renderer
	adminUser string
	adminHash []byte
	logger    *slog.Logger
}

func newApp(store xsession.Store, cfg Config, adminHash []byte, logger *slog.Logger, recorder xsession.Recorder) *app {
	templates, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}

	opts := append(cfg.Session.Options(),
		xsession.WithLogger(logger),
		xsession.WithRecorder(recorder),
	)

	return &app{
		mgr: web.NewManager[User](xsession.Prefixed(store, cfg.StorePrefix),
			web.WithCookieName(cfg.CookieName),
			web.WithSecure(cfg.CookieSecure),
			web.WithLogger(logger),
			web.WithSessionOptions(opts...),
		),
		renderer:  web.NewRenderer(templates, ".html").Funcs(template.FuncMap{"formatHex": xsession.FormatHex}),
		adminUser: strings.ToLower(cfg.AdminUser),
		adminHash: adminHash,
		logger:    logger,
	}
}

// authenticated reports whether c holds a logged in user whose session is
// neither expired nor tampered with.
func authenticated(c *xsession.Container[User]) bool {
	return c.Payload().Authenticated && !c.IsError()
}

func (a *app) routes(gatherer prometheus.Gatherer) http.Handler {
	mux := web.NewServeMux()
	mux.Use(web.RequestLogger(a.logger))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	pages := mux.Group("/", a.mgr.Handler)
	pages.HandleFunc("GET /login", a.loginPage)
	pages.HandleFunc("POST /login", a.loginSubmit)
	pages.HandleFunc("/logout", a.logout)

	protected := a.mgr.Require(authenticated, "/login")
	pages.Handle("GET /{$}", protected(a.page("Home")))
	pages.Handle("GET /other", protected(a.page("Other")))
	return mux
}

// loginPage starts a new session and shows its id, which the form must
// send back.
func (a *app) loginPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := web.Get[User](r)
	sess.Reset()
	a.render(w, "login", web.Vals{"Title": "Login", "Session": sess})
}

func (a *app) loginSubmit(w http.ResponseWriter, r *http.Request) {
	sess, _ := web.Get[User](r)

	var form loginForm
	if err := web.ParseBody(r, &form); err != nil {
		a.logger.InfoContext(r.Context(), "login form rejected", slog.Any("error", err))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	uid, ok := a.verify(sess, form)
	if !ok {
		a.logger.InfoContext(r.Context(), "login failed", slog.String("uid", uid))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	sess.SetPayload(User{Authenticated: true, UserID: uid})
	sess.Save()
	a.logger.InfoContext(r.Context(), "login", slog.String("uid", uid))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// verify checks that the form was issued for sess and carries the admin
// credentials. It returns the normalized user id.
func (a *app) verify(sess *xsession.Container[User], form loginForm) (string, bool) {
	uid := strings.ToLower(strings.TrimSpace(form.UserID))
	if form.SessionID == "" || !sess.IsInitialized() ||
		subtle.ConstantTimeCompare([]byte(form.SessionID), []byte(sess.IDHex())) != 1 {
		return uid, false
	}
	if uid == "" || uid != a.adminUser || form.Password == "" {
		return uid, false
	}
	return uid, bcrypt.CompareHashAndPassword(a.adminHash, []byte(form.Password)) == nil
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := web.Get[User](r)
	sess.Kill()
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (a *app) page(title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := web.Get[User](r)
		a.render(w, "page", web.Vals{"Title": title, "Session": sess})
	})
}

func (a *app) render(w http.ResponseWriter, name string, vals web.Vals) {
	if err := a.renderer.HTML(w, http.StatusOK, name, vals); err != nil {
		a.logger.Error("render failed", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
