package message

import (
	"strings"
	"testing"
)

func crlf(s string) string {
	return strings.ReplaceAll(strings.TrimPrefix(s, "\n"), "\n", "\r\n")
}

func TestParseMultipartPrefersHTML(t *testing.T) {
	raw := crlf(`
From: Alice <alice@example.com>
To: bob@example.com, Alice <alice@example.com>
Cc: Carol <carol@example.com>, bob@example.com
Subject: =?UTF-8?B?SGVsbG8g8J+Riw==?=
Message-Id: <m1@example.com>
In-Reply-To: <m0@example.com>
References: <m0@example.com>
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

plain body
--b1
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<p>html =3D body</p>
--b1--
`)

	m, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.BodyType != TypeHTML || m.Body != "<p>html = body</p>" {
		t.Errorf("body = %q (%s)", m.Body, m.BodyType)
	}
	if m.Subject != "Hello 👋" {
		t.Errorf("subject = %q", m.Subject)
	}
	if m.MessageID != "<m1@example.com>" || m.InReplyTo != "<m0@example.com>" || m.References != "<m0@example.com>" {
		t.Errorf("threading headers = %q %q %q", m.MessageID, m.InReplyTo, m.References)
	}

	want := []string{"bob@example.com", "alice@example.com", "carol@example.com"}
	if strings.Join(m.Recipients, ",") != strings.Join(want, ",") {
		t.Errorf("recipients = %v, want %v", m.Recipients, want)
	}
	if len(m.NamedRecipients) != 3 || !strings.Contains(m.NamedRecipients[1], "Alice") {
		t.Errorf("named recipients = %v", m.NamedRecipients)
	}
}

func TestParsePlainIsEscaped(t *testing.T) {
	raw := crlf(`
From: a@example.com
To: b@example.com
Subject: plain
Content-Type: text/plain; charset=utf-8

1 < 2 & <script>x</script>
`)

	m, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.BodyType != TypePlain {
		t.Fatalf("type = %q", m.BodyType)
	}
	if !strings.HasPrefix(m.Body, "<pre>") || strings.Contains(m.Body, "<script>") {
		t.Errorf("body = %q", m.Body)
	}
	if !strings.Contains(m.Body, "1 &lt; 2 &amp; &lt;script&gt;") {
		t.Errorf("body = %q", m.Body)
	}
}

func TestParseCharsetAndBase64(t *testing.T) {
	// "café" in ISO-8859-1, base64 encoded
	raw := crlf(`
From: a@example.com
Content-Type: text/html; charset=iso-8859-1
Content-Transfer-Encoding: base64

PHA+Y2Fm6TwvcD4=
`)

	m, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Body != "<p>café</p>" {
		t.Errorf("body = %q", m.Body)
	}
}

func TestParseNestedMultipartFallsBackToPlain(t *testing.T) {
	raw := crlf(`
From: a@example.com
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain

only text
--inner--
--outer
Content-Type: application/pdf
Content-Transfer-Encoding: base64

JVBERi0=
--outer--
`)

	m, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.BodyType != TypePlain || !strings.Contains(m.Body, "only text") {
		t.Errorf("body = %q (%s)", m.Body, m.BodyType)
	}
}

func TestParseBrokenContent(t *testing.T) {
	raw := crlf(`
From: a@example.com
Content-Type: multipart/mixed

<p>x</p>
`)

	m, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Body != ContentFailed || m.BodyType != "" {
		t.Errorf("body = %q (%s)", m.Body, m.BodyType)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse(strings.NewReader("no headers here")); err == nil {
		t.Fatal("expected error")
	}
}
