package web_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bluescreen10/xsession/web"
)

func header(name string) web.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Trace", name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestGroup(t *testing.T) {
	mux := web.NewServeMux()
	api := mux.Group("/api/")
	var path string
	api.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	})

	r := httptest.NewRequest("GET", "/api/test", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	if path != "/test" {
		t.Fatalf("expected '/test' got '%s'", path)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	mux := web.NewServeMux()
	mux.Use(header("global-1"))
	mux.Use(header("global-2"))

	api := mux.Group("/api", header("group"))
	api.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	})

	r := httptest.NewRequest("GET", "/api/test", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	if w.Body.String() != "hello world" {
		t.Fatalf("expected 'hello world' got '%s'", w.Body.String())
	}

	trace := strings.Join(w.Header().Values("Trace"), ",")
	if trace != "global-1,global-2,group" {
		t.Fatalf("expected 'global-1,global-2,group' got '%s'", trace)
	}
}

func TestGroupMiddlewareIsScoped(t *testing.T) {
	mux := web.NewServeMux()
	mux.Group("/api", header("group"))
	mux.HandleFunc("/public", func(w http.ResponseWriter, r *http.Request) {})

	r := httptest.NewRequest("GET", "/public", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	if trace := w.Header().Get("Trace"); trace != "" {
		t.Fatalf("expected no trace got '%s'", trace)
	}
}
