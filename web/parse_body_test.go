package web_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bluescreen10/xsession/web"
)

type loginForm struct {
	SessionID string   `form:"sid,required"`
	UserID    string   `form:"uid"`
	Remember  bool     `form:"remember"`
	Attempts  int      `form:"attempts"`
	Scopes    []string `form:"scope"`
	Ignored   int
}

func TestFormBody(t *testing.T) {
	body := strings.NewReader("sid=AB&uid=admin&remember=on&attempts=3&scope=a&scope=b&Ignored=9")
	r := httptest.NewRequest("POST", "/", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	var f loginForm
	if err := web.ParseBody(r, &f); err != nil {
		t.Fatal(err)
	}

	if f.SessionID != "AB" || f.UserID != "admin" || !f.Remember || f.Attempts != 3 || f.Ignored != 0 {
		t.Fatalf("error parsing form got %+v", f)
	}
	if len(f.Scopes) != 2 || f.Scopes[0] != "a" || f.Scopes[1] != "b" {
		t.Fatalf("expected '[a b]' got '%v'", f.Scopes)
	}
}

func TestMultipartFormBody(t *testing.T) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	mw.WriteField("sid", "CD")
	mw.WriteField("uid", "root")
	mw.Close()

	r := httptest.NewRequest("POST", "/", buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	var f loginForm
	if err := web.ParseBody(r, &f); err != nil {
		t.Fatal(err)
	}
	if f.SessionID != "CD" || f.UserID != "root" {
		t.Fatalf("error parsing multipart form got %+v", f)
	}
}

func TestFormRequiredField(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("uid=admin"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var f loginForm
	if err := web.ParseBody(r, &f); err == nil {
		t.Fatal("expected missing field error")
	}
}

func TestFormInvalidValues(t *testing.T) {
	for _, body := range []string{"sid=x&attempts=many", "sid=x&remember=maybe"} {
		r := httptest.NewRequest("POST", "/", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		var f loginForm
		if err := web.ParseBody(r, &f); err == nil {
			t.Fatalf("expected error for '%s'", body)
		}
	}
}

func TestFormDestinationMustBeStructPointer(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("sid=x"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var s string
	if err := web.ParseBody(r, &s); err == nil {
		t.Fatal("expected error for non struct destination")
	}
}

func TestJSONBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"uid": "admin", "pwd": "secret"}`))
	r.Header.Set("Content-Type", "application/json")

	var u struct {
		UserID   string `json:"uid"`
		Password string `json:"pwd"`
	}
	if err := web.ParseBody(r, &u); err != nil {
		t.Fatal(err)
	}
	if u.UserID != "admin" || u.Password != "secret" {
		t.Fatal("error parsing json")
	}
}

func TestXMLBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("<login><uid>admin</uid></login>"))
	r.Header.Set("Content-Type", "application/xml")

	var u struct {
		UserID string `xml:"uid"`
	}
	if err := web.ParseBody(r, &u); err != nil {
		t.Fatal(err)
	}
	if u.UserID != "admin" {
		t.Fatal("error parsing xml")
	}
}

func TestUnsupportedContentType(t *testing.T) {
	for _, ct := range []string{"", "image/png"} {
		r := httptest.NewRequest("POST", "/", strings.NewReader("x"))
		r.Header.Set("Content-Type", ct)

		var f loginForm
		if err := web.ParseBody(r, &f); !errors.Is(err, web.ErrUnsupportedContentType) {
			t.Fatalf("expected ErrUnsupportedContentType for '%s' got '%v'", ct, err)
		}
	}
}
