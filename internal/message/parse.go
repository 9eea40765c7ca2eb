// Package message parses RFC 5322 mail into a displayable HTML body and
// its recipients.
package message

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/net/html/charset"
)

// 内容类型
const (
	TypeHTML  = "text/html"
	TypePlain = "text/plain"
)

// ContentFailed 正文解析失败时使用的占位内容
const ContentFailed = "<p>failed to parse content</p>"

// Mail 解析后的邮件
type Mail struct {
	Header          mail.Header
	Subject         string
	MessageID       string
	InReplyTo       string
	References      string
	Body            string   // HTML 正文，纯文本已转义并包在 <pre> 中
	BodyType        string   // 选中的正文类型，未找到时为空
	Recipients      []string // 去重后的地址，顺序 To、From、Cc
	NamedRecipients []string // 与 Recipients 对应的带名称地址
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}

// Parse 解析 RFC 5322 邮件
func Parse(r io.Reader) (*Mail, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	m := &Mail{
		Header:     msg.Header,
		Subject:    decodeHeader(msg.Header.Get("Subject")),
		MessageID:  msg.Header.Get("Message-Id"),
		InReplyTo:  msg.Header.Get("In-Reply-To"),
		References: msg.Header.Get("References"),
	}

	body := decodeTransfer(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	content, found, err := parseContent(body, msg.Header.Get("Content-Type"))
	switch {
	case err != nil:
		m.Body = ContentFailed
	case found == TypePlain:
		m.Body = "<pre>" + html.EscapeString(string(content)) + "</pre>"
		m.BodyType = found
	default:
		m.Body = string(content)
		m.BodyType = found
	}

	m.Recipients, m.NamedRecipients = recipients(msg.Header)
	return m, nil
}

// parseContent 取出正文，multipart 中优先 text/html，其次 text/plain
func parseContent(r io.Reader, contentType string) ([]byte, string, error) {
	if contentType == "" {
		contentType = TypePlain
	}
	media, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, "", fmt.Errorf("bad content type %q: %w", contentType, err)
	}

	switch {
	case media == TypeHTML, media == TypePlain:
		cr, err := charset.NewReader(r, contentType)
		if err != nil {
			return nil, "", fmt.Errorf("charset %q: %w", params["charset"], err)
		}
		b, err := io.ReadAll(cr)
		if err != nil {
			return nil, "", err
		}
		return b, media, nil

	case strings.HasPrefix(media, "multipart/"):
		if params["boundary"] == "" {
			return nil, "", errors.New("multipart without boundary")
		}
		mr := multipart.NewReader(r, params["boundary"])
		var plain []byte
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, "", err
			}
			// NextPart 已处理 quoted-printable
			pr := decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding"))
			b, found, err := parseContent(pr, part.Header.Get("Content-Type"))
			if err != nil {
				continue
			}
			switch found {
			case TypeHTML:
				return b, TypeHTML, nil
			case TypePlain:
				if plain == nil {
					plain = b
				}
			}
		}
		if plain != nil {
			return plain, TypePlain, nil
		}
		return nil, "", nil
	}
	return nil, "", nil
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

func decodeHeader(v string) string {
	d, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return d
}

func recipients(h mail.Header) (addrs, named []string) {
	parser := mail.AddressParser{WordDecoder: wordDecoder}
	seen := make(map[string]bool)
	for _, field := range []string{"To", "From", "Cc"} {
		v := h.Get(field)
		if v == "" {
			continue
		}
		list, err := parser.ParseList(v)
		if err != nil {
			continue
		}
		for _, a := range list {
			key := strings.ToLower(a.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			addrs = append(addrs, a.Address)
			named = append(named, a.String())
		}
	}
	return addrs, named
}
