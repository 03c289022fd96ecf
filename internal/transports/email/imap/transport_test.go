package imap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelklabo/bangbot/internal/core"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	_, err := New(Config{})
	var cfgErr Err
	require.ErrorAs(t, err, &cfgErr)

	tr, err := New(Config{Host: "mail.example.com", Username: "bot@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "email", tr.ID())
	assert.Equal(t, 993, tr.cfg.Port)
	assert.Equal(t, "INBOX", tr.cfg.Folder)
	assert.Equal(t, "mail.example.com", tr.cfg.SMTPHost)
	assert.Equal(t, "bot@example.com", tr.cfg.From)
	assert.Equal(t, 30, tr.cfg.PollSeconds)
}

func TestCommandTextPlain(t *testing.T) {
	raw := "From: alice@example.com\r\nSubject: hi\r\nContent-Type: text/plain\r\n\r\n\r\n  !roll -count 2  \r\nthanks\r\n"
	text, err := commandText(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "!roll -count 2", text)
}

func TestCommandTextMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: alice@example.com",
		"Content-Type: multipart/alternative; boundary=xx",
		"",
		"--xx",
		"Content-Type: text/html",
		"",
		"<p>!nope</p>",
		"--xx",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"!ping",
		"--xx--",
		"",
	}, "\r\n")
	text, err := commandText(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "!ping", text)
}

func TestComposeReply(t *testing.T) {
	body, err := composeReply("bot@example.com", "bangbot reply", core.OutboundMessage{
		Recipient:   "alice@example.com",
		ThreadID:    "<abc@example.com>",
		Text:        "pong",
		Attachments: []core.Attachment{{Name: "roll.txt", ContentType: "text/plain", Data: []byte("4")}},
	})
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(body))
	require.NoError(t, err)
	subject, _ := mr.Header.Subject()
	assert.Equal(t, "bangbot reply", subject)
	inReplyTo, _ := mr.Header.MsgIDList("In-Reply-To")
	assert.Equal(t, []string{"abc@example.com"}, inReplyTo)
	to, _ := mr.Header.AddressList("To")
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.com", to[0].Address)

	var text, attName, attBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, _ := io.ReadAll(p.Body)
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			text = string(b)
		case *mail.AttachmentHeader:
			attName, _ = h.Filename()
			attBody = string(b)
		}
	}
	assert.Equal(t, "pong", text)
	assert.Equal(t, "roll.txt", attName)
	assert.Equal(t, "4", attBody)
}

func TestSendUsesSMTP(t *testing.T) {
	tr, err := New(Config{Host: "mail.example.com", Username: "bot@example.com", Password: "pw"})
	require.NoError(t, err)

	var gotAddr string
	var gotTo []string
	tr.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo = addr, to
		return nil
	}
	require.NoError(t, tr.Send(context.Background(), core.OutboundMessage{Recipient: "alice@example.com", Text: "pong"}))
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)

	assert.Error(t, tr.Send(context.Background(), core.OutboundMessage{Text: "x"}))

	tr.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay refused") }
	assert.EqualError(t, tr.Send(context.Background(), core.OutboundMessage{Recipient: "a@b.c", Text: "x"}), "relay refused")
}
