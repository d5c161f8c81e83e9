package cmsengine

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func readTestInput(t *testing.T, body, ctype string) *input {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, ctype)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	in, err := readInput(c, 1<<20)
	if err != nil {
		t.Fatalf("readInput failed: %v", err)
	}
	return in
}

func TestPlainKeyBeforeBracketKey(t *testing.T) {
	form := url.Values{"captions": {"a"}, "captions[]": {"b", "c"}}
	want := []string{"a", "b", "c"}
	// Map order varies between runs; repeat to catch order dependence.
	for range 20 {
		in := readTestInput(t, form.Encode(), echo.MIMEApplicationForm)
		l := in.list("captions")
		if !l.IsList() {
			t.Fatal("captions should be a list")
		}
		if !reflect.DeepEqual(l.Values(), want) {
			t.Fatalf("captions = %q, want %q", l.Values(), want)
		}
	}
}

func TestJSONInputShapes(t *testing.T) {
	in := readTestInput(t, `{"title":" T ","order":2,"tags":["a","b"],"skip":null}`, echo.MIMEApplicationJSON)
	if v, ok := in.text("title"); !ok || v != "T" {
		t.Errorf("title = %q (%v), want %q", v, ok, "T")
	}
	if v, _ := in.text("order"); v != "2" {
		t.Errorf("order = %q, want %q", v, "2")
	}
	if l := in.list("tags"); !l.IsList() || !reflect.DeepEqual(l.Values(), []string{"a", "b"}) {
		t.Errorf("tags = %q, want list [a b]", l.Values())
	}
	if in.has("skip") {
		t.Error("null fields should count as absent")
	}
}
