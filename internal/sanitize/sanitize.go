// Package sanitize turns untrusted HTML into a safe subset.
//
// The allow-list itself is bluemonday's. This package only adds a URL policy
// hook: every URL-bearing attribute is passed through a caller-supplied
// function before the allow-list runs, so callers can rewrite or drop links.
package sanitize

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// URLPolicy maps a candidate URL to the URL to keep. Returning "" drops the
// attribute that carried it.
type URLPolicy func(url string) string

// Identity passes every URL through unmodified.
func Identity(u string) string { return u }

var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"cite":       true,
	"formaction": true,
	"poster":     true,
	"background": true,
	"longdesc":   true,
	"srcset":     true,
}

// Sanitizer applies a URL policy and then a bluemonday policy.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New wraps policy.
func New(policy *bluemonday.Policy) *Sanitizer {
	return &Sanitizer{policy: policy}
}

// Default returns a sanitizer for user-generated content such as email bodies.
func Default() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(false)
	return New(p)
}

// Strict returns a sanitizer that strips all markup and keeps text.
func Strict() *Sanitizer {
	return New(bluemonday.StrictPolicy())
}

// Sanitize rewrites the URLs in text with urlPolicy and returns the sanitized
// HTML. A nil urlPolicy behaves as Identity.
func (s *Sanitizer) Sanitize(text string, urlPolicy URLPolicy) (string, error) {
	if urlPolicy == nil {
		urlPolicy = Identity
	}

	var b strings.Builder
	if err := rewriteURLs(&b, strings.NewReader(text), urlPolicy); err != nil {
		return "", fmt.Errorf("rewrite urls: %w", err)
	}
	return s.policy.Sanitize(b.String()), nil
}

// SanitizeReader reads r to EOF, sanitizes the whole input and writes the
// result to w in a single write.
func (s *Sanitizer) SanitizeReader(r io.Reader, w io.Writer, urlPolicy URLPolicy) error {
	in, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	out, err := s.Sanitize(string(in), urlPolicy)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// rewriteURLs copies the token stream from r to w, passing URL attribute
// values through policy. Tokens without URL attributes are copied raw.
func rewriteURLs(w io.Writer, r io.Reader, policy URLPolicy) error {
	bw := bufio.NewWriter(w)
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			err := z.Err()
			if err == io.EOF {
				return bw.Flush()
			}
			return err
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			tok := z.Token()
			if !hasURLAttr(tok) {
				if _, err := bw.Write(raw); err != nil {
					return err
				}
				continue
			}
			tok.Attr = applyPolicy(tok.Attr, policy)
			if _, err := bw.WriteString(tok.String()); err != nil {
				return err
			}
		default:
			if _, err := bw.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}

func hasURLAttr(tok html.Token) bool {
	for _, a := range tok.Attr {
		if a.Namespace == "" && urlAttrs[a.Key] {
			return true
		}
	}
	return false
}

func applyPolicy(attrs []html.Attribute, policy URLPolicy) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if a.Namespace != "" || !urlAttrs[a.Key] {
			kept = append(kept, a)
			continue
		}
		if a.Key == "srcset" {
			a.Val = rewriteSrcSet(a.Val, policy)
		} else {
			a.Val = policy(a.Val)
		}
		if a.Val == "" {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// rewriteSrcSet applies policy to each candidate URL of a srcset value,
// keeping its width or density descriptor. A value the policy leaves
// unchanged is returned as written.
func rewriteSrcSet(val string, policy URLPolicy) string {
	var (
		out     []string
		changed bool
	)
	for _, c := range parseSrcSet(val) {
		u := policy(c.url)
		if u != c.url {
			changed = true
		}
		if u == "" {
			continue
		}
		if c.descriptor != "" {
			u += " " + c.descriptor
		}
		out = append(out, u)
	}
	if !changed {
		return val
	}
	return strings.Join(out, ", ")
}

type srcCandidate struct {
	url        string
	descriptor string
}

// parseSrcSet splits a srcset value into candidates. A URL runs to the next
// whitespace, so commas inside it (data: URLs) belong to the URL; descriptors
// run to the next comma outside parentheses.
func parseSrcSet(val string) []srcCandidate {
	var out []srcCandidate
	i := 0
	for i < len(val) {
		for i < len(val) && (isSpace(val[i]) || val[i] == ',') {
			i++
		}
		if i == len(val) {
			break
		}

		start := i
		for i < len(val) && !isSpace(val[i]) {
			i++
		}
		u := val[start:i]
		if strings.HasSuffix(u, ",") {
			out = append(out, srcCandidate{url: strings.TrimRight(u, ",")})
			continue
		}

		start = i
		depth := 0
	descriptors:
		for ; i < len(val); i++ {
			switch val[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					break descriptors
				}
			}
		}
		out = append(out, srcCandidate{url: u, descriptor: strings.TrimSpace(val[start:i])})
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '\r'
}
