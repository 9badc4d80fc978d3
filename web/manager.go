// Package web binds session containers to HTTP requests.
//
// A Manager keeps an opaque token in a client cookie and scopes every
// container it builds to that token, so many clients share one Store.
// Handlers get the request's container with Get.
//
// Usage:
//
//	type User struct {
//	    Authenticated bool
//	    UserID        string
//	}
//
//	mgr := web.NewManager[User](memstore.New())
//
//	mux := web.NewServeMux()
//	mux.Use(mgr.Handler)
//	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
//	    sess, _ := web.Get[User](r)
//	    fmt.Fprintf(w, "hello %s\n", sess.Payload().UserID)
//	})
//
//	http.ListenAndServe(":8080", mux)
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluescreen10/xsession"
	"github.com/google/uuid"
)

type contextKey struct{}

// Manager builds one xsession.Container per request. The container is
// loaded before the wrapped handler runs and closed after it returns;
// handlers persist changes by calling Save.
type Manager[T any] struct {
	settings
	store xsession.Store
}

type settings struct {
	autoInit       bool
	lifetime       time.Duration
	cookieName     string
	cookiePath     string
	cookieDomain   string
	cookieSecure   bool
	cookieHttpOnly bool
	cookieSameSite http.SameSite
	opts           []xsession.Option
	logger         *slog.Logger
}

type config func(*settings)

// WithAutoInit controls whether a request without a stored record gets a
// freshly initialized one. (default true.)
func WithAutoInit(autoInit bool) config {
	return config(func(s *settings) {
		s.autoInit = autoInit
	})
}

// WithLifetime sets how long the token cookie is kept by the client.
// (default 24hr.)
func WithLifetime(lifetime time.Duration) config {
	return config(func(s *settings) {
		s.lifetime = lifetime
	})
}

// WithCookieName sets the name of the token cookie. (default "xsession".)
func WithCookieName(name string) config {
	return config(func(s *settings) {
		s.cookieName = name
	})
}

// WithPath sets the cookie path. (default "/".)
func WithPath(path string) config {
	return config(func(s *settings) {
		s.cookiePath = path
	})
}

// WithDomain sets the cookie domain. (default "".)
func WithDomain(domain string) config {
	return config(func(s *settings) {
		s.cookieDomain = domain
	})
}

// WithSecure sets the Secure flag on the cookie. (default false)
func WithSecure(secure bool) config {
	return config(func(s *settings) {
		s.cookieSecure = secure
	})
}

// WithHttpOnly sets the HttpOnly flag on the cookie. (default true)
func WithHttpOnly(httpOnly bool) config {
	return config(func(s *settings) {
		s.cookieHttpOnly = httpOnly
	})
}

// WithSameSite sets the SameSite policy for the cookie. (default Lax)
func WithSameSite(sameSite http.SameSite) config {
	return config(func(s *settings) {
		s.cookieSameSite = sameSite
	})
}

// WithSessionOptions passes options to every container the manager builds.
func WithSessionOptions(opts ...xsession.Option) config {
	return config(func(s *settings) {
		s.opts = append(s.opts, opts...)
	})
}

// WithLogger sets the logger used for request level session events.
func WithLogger(logger *slog.Logger) config {
	return config(func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// NewManager creates a Manager over store. It panics with
// xsession.ErrNotSerializable when T cannot be encoded, like xsession.New.
func NewManager[T any](store xsession.Store, cfgs ...config) *Manager[T] {
	m := &Manager[T]{
		settings: settings{
			autoInit:       true,
			lifetime:       24 * time.Hour,
			cookieName:     "xsession",
			cookiePath:     "/",
			cookieHttpOnly: true,
			cookieSameSite: http.SameSiteLaxMode,
			logger:         slog.New(slog.DiscardHandler),
		},
		store: store,
	}

	for _, cfg := range cfgs {
		cfg(&m.settings)
	}

	// fail at start up rather than on the first request
	xsession.New[T](nil, m.opts...).Close()
	return m
}

// Handler wraps next so every request carries a loaded container.
func (m *Manager[T]) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Cookie")

		token := m.token(r)
		sess := xsession.New[T](xsession.Prefixed(m.store, token+":"), m.opts...)
		defer sess.Close()

		sess.Load(m.autoInit)
		m.logger.DebugContext(r.Context(), "request session",
			slog.String("path", r.URL.Path),
			slog.String("state", sess.State().String()))

		m.writeCookie(w, token)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, sess)))
	})
}

// Require returns a middleware that redirects to location unless allow
// reports true for the request's container. Requests that did not pass
// through Handler are redirected too.
func (m *Manager[T]) Require(allow func(*xsession.Container[T]) bool, location string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := Get[T](r)
			if !ok || !allow(sess) {
				http.Redirect(w, r, location, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Get returns the container Handler attached to r. ok is false when r did
// not pass through a Manager with the same payload type.
func Get[T any](r *http.Request) (*xsession.Container[T], bool) {
	sess, ok := r.Context().Value(contextKey{}).(*xsession.Container[T])
	return sess, ok
}

// token returns the client's token, minting a new one when the cookie is
// missing or not a valid UUID.
func (m *Manager[T]) token(r *http.Request) string {
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

// writeCookie sets the token cookie, refreshing its expiry.
func (m *Manager[T]) writeCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Value:    token,
		Name:     m.cookieName,
		Domain:   m.cookieDomain,
		HttpOnly: m.cookieHttpOnly,
		Path:     m.cookiePath,
		SameSite: m.cookieSameSite,
		Secure:   m.cookieSecure,
	}

	if m.lifetime > 0 {
		cookie.Expires = time.Now().Add(m.lifetime)
		cookie.MaxAge = int(m.lifetime.Seconds())
	}

	http.SetCookie(w, cookie)
}
