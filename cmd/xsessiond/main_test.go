package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bluescreen10/xsession"
	"github.com/bluescreen10/xsession/memstore"
	"github.com/bluescreen10/xsession/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var sidPattern = regexp.MustCompile(`name="sid" value="([0-9A-F]+)"`)

type testServer struct {
	*httptest.Server
	client *http.Client
	store  *memstore.Memstore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := Config{
		StorePrefix: "xsession:",
		CookieName:  "xsession",
		AdminUser:   "admin",
		Session:     xsession.DefaultConfig(),
	}
	store := memstore.New()
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.DiscardHandler)

	a := newApp(store, cfg, hash, logger, metrics.NewCollector(reg))
	srv := httptest.NewServer(a.routes(reg))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := srv.Client()
	client.Jar = jar

	return &testServer{Server: srv, client: client, store: store}
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.Get(s.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (s *testServer) login(t *testing.T, sid, uid, pwd string) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.PostForm(s.URL+"/login", url.Values{
		"sid": {sid},
		"uid": {uid},
		"pwd": {pwd},
	})
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func sessionID(t *testing.T, body string) string {
	t.Helper()
	m := sidPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "login page must carry the session id")
	return m[1]
}

func TestLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.get(t, "/")
	assert.Equal(t, "/login", resp.Request.URL.Path, "anonymous users are sent to login")
	sid := sessionID(t, body)
	assert.Len(t, sid, 2*xsession.IDSize)

	resp, body = srv.login(t, sid, "admin", "wrong")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	next := sessionID(t, body)
	assert.NotEqual(t, sid, next, "every login page starts a new session")

	resp, body = srv.login(t, sid, "admin", "admin")
	assert.Equal(t, "/login", resp.Request.URL.Path, "a stale session id is rejected")
	sid = sessionID(t, body)

	resp, body = srv.login(t, sid, "  ADMIN ", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "Signed in as <strong>admin</strong>")
	assert.Contains(t, body, "<h1>Home</h1>")

	resp, body = srv.get(t, "/other")
	assert.Equal(t, "/other", resp.Request.URL.Path)
	assert.Contains(t, body, "<h1>Other</h1>")

	resp, _ = srv.get(t, "/logout")
	assert.Equal(t, "/login", resp.Request.URL.Path)

	resp, _ = srv.get(t, "/other")
	assert.Equal(t, "/login", resp.Request.URL.Path, "logged out users are sent to login")
}

func TestLoginRejectsWrongUser(t *testing.T) {
	srv := newTestServer(t)

	_, body := srv.get(t, "/login")
	resp, _ := srv.login(t, sessionID(t, body), "root", "admin")
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestTamperedSessionIsRejected(t *testing.T) {
	srv := newTestServer(t)

	_, body := srv.get(t, "/login")
	resp, _ := srv.login(t, sessionID(t, body), "admin", "admin")
	require.Equal(t, "/", resp.Request.URL.Path)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	var token string
	for _, c := range srv.client.Jar.Cookies(u) {
		if c.Name == "xsession" {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	key := "xsession:" + token + ":" + xsession.DefaultName
	data, found, err := srv.store.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	data[len(data)-1] ^= 0x01
	require.NoError(t, srv.store.Set(key, data, time.Time{}))

	resp, _ = srv.get(t, "/")
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.get(t, "/login")

	resp, body := srv.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `xsession_loads_total{state="valid"} 1`)
	assert.Contains(t, body, `xsession_saves_total{result="ok"} 2`)
	assert.Contains(t, body, `xsession_kills_total{result="ok"} 0`)
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLogger(buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(buf, "info", "xml")
	assert.Error(t, err)
}

func TestAdminHash(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	hash, err := adminHash(Config{}, logger)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("admin")))

	custom, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	hash, err = adminHash(Config{AdminPasswordHash: string(custom)}, logger)
	require.NoError(t, err)
	assert.Equal(t, custom, hash)

	_, err = adminHash(Config{AdminPasswordHash: "plain"}, logger)
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "xsessiond.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		`addr = ":9000"`,
		`store = "sqlite"`,
		`[session]`,
		`expiration_increment = "1m"`,
	}, "\n")), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, "xsession", cfg.CookieName)
	assert.Equal(t, xsession.DefaultName, cfg.Session.Name)
	assert.Equal(t, time.Minute, cfg.Session.ExpirationIncrement)
}

func TestOpenStoreUnknown(t *testing.T) {
	_, err := openStore(t.Context(), Config{Store: "etcd"}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := Config{Store: "sqlite", StoreDSN: filepath.Join(t.TempDir(), "sessions.db")}
	b, err := openStore(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer b.close()

	c := xsession.New[User](b.store)
	c.Initialize()
	c2 := xsession.New[User](b.store)
	c2.Load(false)
	assert.Equal(t, xsession.StateValid, c2.State())
	assert.NotNil(t, b.cleanup)
}
