package biz

import (
	"context"
	"errors"
	"fmt"
	"io"

	"quickmail/internal/message"
)

var ErrMalformedMail = errors.New("malformed mail")

// MailView 邮件展示信息，正文存为一次性片段
type MailView struct {
	Subject         string   `json:"subject"`
	MessageID       string   `json:"message_id,omitempty"`
	InReplyTo       string   `json:"in_reply_to,omitempty"`
	References      string   `json:"references,omitempty"`
	Recipients      []string `json:"recipients"`
	NamedRecipients []string `json:"named_recipients"`
	BodyKey         string   `json:"body_key"`
}

// CreateMailFragment 解析原始邮件，正文清洗后存为片段
func (uc *FragmentUsecase) CreateMailFragment(ctx context.Context, r io.Reader) (*MailView, error) {
	m, err := message.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMail, err)
	}
	key, err := uc.CreateFragment(ctx, m.Body)
	if err != nil {
		return nil, err
	}
	return &MailView{
		Subject:         m.Subject,
		MessageID:       m.MessageID,
		InReplyTo:       m.InReplyTo,
		References:      m.References,
		Recipients:      m.Recipients,
		NamedRecipients: m.NamedRecipients,
		BodyKey:         key,
	}, nil
}
