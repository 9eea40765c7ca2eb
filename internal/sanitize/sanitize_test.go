package sanitize

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSanitizeIdentityKeepsLinks(t *testing.T) {
	s := Default()

	got, err := s.Sanitize(`<p>hi <a href="https://example.com/x">there</a></p><script>alert(1)</script>`, Identity)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if !strings.Contains(got, `href="https://example.com/x"`) {
		t.Errorf("link lost: %s", got)
	}
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Errorf("script survived: %s", got)
	}
}

func TestSanitizeNilPolicyIsIdentity(t *testing.T) {
	s := Default()
	in := `<img src="https://example.com/a.png" alt="a">`

	withNil, err := s.Sanitize(in, nil)
	if err != nil {
		t.Fatalf("Sanitize(nil): %v", err)
	}
	withIdentity, err := s.Sanitize(in, Identity)
	if err != nil {
		t.Fatalf("Sanitize(Identity): %v", err)
	}
	if withNil != withIdentity {
		t.Errorf("nil policy %q != identity %q", withNil, withIdentity)
	}
}

func TestSanitizeRewritesURLs(t *testing.T) {
	s := Default()
	var seen []string
	policy := func(u string) string {
		seen = append(seen, u)
		return "https://proxy.example/img"
	}

	got, err := s.Sanitize(`<img src="http://tracker.example/p.gif" alt="x">`, policy)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if len(seen) != 1 || seen[0] != "http://tracker.example/p.gif" {
		t.Errorf("policy saw %v", seen)
	}
	if !strings.Contains(got, `src="https://proxy.example/img"`) {
		t.Errorf("rewritten src missing: %s", got)
	}
}

func TestSanitizeEmptyPolicyResultDropsAttr(t *testing.T) {
	s := Default()
	deny := func(string) string { return "" }

	got, err := s.Sanitize(`<a href="https://example.com">text</a>`, deny)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if strings.Contains(got, "href") || strings.Contains(got, "example.com") {
		t.Errorf("denied url survived: %s", got)
	}
	if !strings.Contains(got, "text") {
		t.Errorf("content lost: %s", got)
	}
}

func TestSanitizeEmptyInput(t *testing.T) {
	got, err := Default().Sanitize("", Identity)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestStrictStripsMarkup(t *testing.T) {
	got, err := Strict().Sanitize(`<b>bold</b> <i>and</i> plain`, Identity)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if got != "bold and plain" {
		t.Errorf("got %q", got)
	}
}

func TestRewriteSrcSet(t *testing.T) {
	policy := func(u string) string {
		if strings.Contains(u, "drop") {
			return ""
		}
		return "/p" + u
	}
	got := rewriteSrcSet("/a.png 1x, /drop.png 2x,/b.png 480w", policy)
	if got != "/p/a.png 1x, /p/b.png 480w" {
		t.Errorf("got %q", got)
	}
}

func TestRewriteSrcSetKeepsCommasInURLs(t *testing.T) {
	const val = "data:image/png;base64,AAAA 1x,  /b.png 2x"

	var seen []string
	got := rewriteSrcSet(val, func(u string) string {
		seen = append(seen, u)
		return u
	})
	if got != val {
		t.Errorf("identity changed value to %q", got)
	}
	if len(seen) != 2 || seen[0] != "data:image/png;base64,AAAA" || seen[1] != "/b.png" {
		t.Errorf("candidates = %q", seen)
	}

	got = rewriteSrcSet(val, func(u string) string {
		if strings.HasPrefix(u, "data:") {
			return ""
		}
		return u
	})
	if got != "/b.png 2x" {
		t.Errorf("got %q", got)
	}
}

func TestParseSrcSet(t *testing.T) {
	got := parseSrcSet("a.png, b.png 2x, c.png (max-width: 1px, x) 3x")
	want := []srcCandidate{
		{url: "a.png"},
		{url: "b.png", descriptor: "2x"},
		{url: "c.png", descriptor: "(max-width: 1px, x) 3x"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRewriteURLsSrcSetAttribute(t *testing.T) {
	var b strings.Builder
	in := `<img srcset="data:image/png;base64,AAAA 1x" alt="a">`
	if err := rewriteURLs(&b, strings.NewReader(in), Identity); err != nil {
		t.Fatalf("rewriteURLs: %v", err)
	}
	if !strings.Contains(b.String(), `srcset="data:image/png;base64,AAAA 1x"`) {
		t.Errorf("got %q", b.String())
	}
}

func TestSanitizeReaderSingleWrite(t *testing.T) {
	w := &countingWriter{}
	err := Default().SanitizeReader(strings.NewReader("<p>a</p><p>b</p>"), w, Identity)
	if err != nil {
		t.Fatalf("SanitizeReader: %v", err)
	}
	if w.writes != 1 {
		t.Errorf("writes = %d, want 1", w.writes)
	}
	if w.String() != "<p>a</p><p>b</p>" {
		t.Errorf("output = %q", w.String())
	}
}

func TestSanitizeReaderPropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	w := &countingWriter{}
	err := Default().SanitizeReader(errReader{boom}, w, Identity)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if w.writes != 0 {
		t.Errorf("partial output written")
	}
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return c.Buffer.Write(p)
}

func (c *countingWriter) WriteString(s string) (int, error) {
	c.writes++
	return c.Buffer.WriteString(s)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
