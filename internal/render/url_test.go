package render

import (
	"net/url"
	"strings"
	"testing"
)

func TestBuildURLCarriesCodeAndOptions(t *testing.T) {
	code := "a := 1 + 2 // c++ & co\n\tfmt.Println(a)\n"
	raw := BuildURL("https://carbon.now.sh/", DefaultOptions(), "golang", code)

	if !strings.HasPrefix(raw, "https://carbon.now.sh/?") {
		t.Fatalf("unexpected prefix: %s", raw)
	}
	if strings.Contains(raw, "+") {
		t.Fatalf("spaces must be sent as %%20, got %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	q := u.Query()
	if got := q.Get("code"); got != code {
		t.Fatalf("code round-trip mismatch: got %q want %q", got, code)
	}
	if got := q.Get("l"); got != "go" {
		t.Fatalf("language = %q, want go", got)
	}
	want := map[string]string{
		"t":      "seti",
		"bg":     "rgba(171, 184, 195, 1)",
		"width":  "680",
		"ds":     "true",
		"dsyoff": "20px",
		"dsblur": "68px",
		"wm":     "false",
		"es":     "2x",
		"fl":     "1",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Fatalf("param %s = %q, want %q", k, got, v)
		}
	}
}

func TestBuildURLDefaultsEndpoint(t *testing.T) {
	raw := BuildURL("  ", Options{}, "", "x")
	if !strings.HasPrefix(raw, DefaultEndpoint+"/?") {
		t.Fatalf("unexpected url: %s", raw)
	}
	u, _ := url.Parse(raw)
	if u.Query().Get("l") != "auto" {
		t.Fatalf("empty language should be auto, got %q", u.Query().Get("l"))
	}
	if u.Query().Has("width") || u.Query().Has("t") {
		t.Fatalf("empty options should be omitted: %s", raw)
	}
}

func TestCarbonLanguage(t *testing.T) {
	cases := map[string]string{
		"py":     "python",
		"PY":     "python",
		"c++":    "text/x-c++src",
		"bash":   "application/x-sh",
		"auto":   "auto",
		"":       "auto",
		"elixir": "elixir",
	}
	for in, want := range cases {
		if got := CarbonLanguage(in); got != want {
			t.Fatalf("CarbonLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOriginOf(t *testing.T) {
	if got := originOf("https://carbon.now.sh/some/path?x=1"); got != "https://carbon.now.sh" {
		t.Fatalf("originOf() = %q", got)
	}
	if got := originOf("not a url"); got != "" {
		t.Fatalf("originOf(invalid) = %q", got)
	}
}
