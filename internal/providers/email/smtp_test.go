package email

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSMTP(captured *[]byte, to *[]string) *SMTPProvider {
	p := NewSMTP(Config{Host: "mail.test", Port: 25, From: "lab@test.edu", FromName: "MER Cleanroom"})
	p.now = func() time.Time { return time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC) }
	p.send = func(addr string, _ smtp.Auth, from string, rcpt []string, msg []byte) error {
		*captured = msg
		*to = rcpt
		return nil
	}
	return p
}

func TestSMTPSendPlainHTML(t *testing.T) {
	var raw []byte
	var rcpt []string
	p := newTestSMTP(&raw, &rcpt)

	err := p.Send(context.Background(), Message{
		To:       []string{"jane@test.edu"},
		Subject:  "Cleanroom Basket Assigned",
		HTMLBody: "<p>hello</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@test.edu"}, rcpt)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "Cleanroom Basket Assigned", parsed.Header.Get("Subject"))
	assert.Contains(t, parsed.Header.Get("From"), "MER Cleanroom")
	body, _ := io.ReadAll(parsed.Body)
	assert.Equal(t, "<p>hello</p>", string(body))
}

func TestSMTPSendWithAttachments(t *testing.T) {
	var raw []byte
	var rcpt []string
	p := newTestSMTP(&raw, &rcpt)

	err := p.Send(context.Background(), Message{
		To:         []string{"jane@test.edu"},
		Subject:    "Basket",
		HTMLBody:   "<p>see attached</p>",
		SenderName: "Automated Basket Assignment",
		Attachments: []Attachment{
			{Filename: "Basket S001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")},
		},
	})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Contains(t, parsed.Header.Get("From"), "Automated Basket Assignment")

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	first, err := mr.NextPart()
	require.NoError(t, err)
	html, _ := io.ReadAll(first)
	assert.Equal(t, "<p>see attached</p>", string(html))

	second, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "Basket S001.pdf", second.FileName())
}

func TestSendRequiresRecipients(t *testing.T) {
	var raw []byte
	var rcpt []string
	p := newTestSMTP(&raw, &rcpt)
	assert.ErrorIs(t, p.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipients)
	assert.ErrorIs(t, NewRecorder().Send(context.Background(), Message{}), ErrNoRecipients)
}
