// Package imap reads commands from a mailbox over IMAP and answers over SMTP.
package imap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/core"
	"github.com/joelklabo/bangbot/internal/transports"
)

func init() {
	transports.MustRegister("email", func(cfg config.TransportConfig, deps transports.Deps) (core.Transport, error) {
		var ic Config
		if err := transports.DecodeConfig(cfg.Config, &ic); err != nil {
			return nil, fmt.Errorf("decode imap config: %w", err)
		}
		if ic.ID == "" {
			ic.ID = cfg.ID
		}
		tr, err := New(ic)
		if err != nil {
			return nil, err
		}
		if deps.Logger != nil {
			tr.logger = deps.Logger
		}
		return tr, nil
	})
}

// Transport implements a polling IMAP receive + SMTP send.
type Transport struct {
	cfg    Config
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config) (*Transport, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg, logger: slog.Default(), send: smtp.SendMail}, nil
}

func (t *Transport) ID() string { return t.cfg.ID }

func (t *Transport) Start(ctx context.Context, inbound chan<- core.InboundMessage) error {
	interval := time.Duration(t.cfg.PollSeconds) * time.Second
	for {
		if err := t.pollOnce(ctx, inbound); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn("imap poll failed", slog.String("err", err.Error()))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pollOnce fetches unseen messages, forwards them and marks them seen.
func (t *Transport) pollOnce(ctx context.Context, inbound chan<- core.InboundMessage) error {
	c, err := imapclient.DialTLS(fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port), nil)
	if err != nil {
		return err
	}
	defer c.Logout()

	if err := c.Login(t.cfg.Username, t.cfg.Password); err != nil {
		return err
	}
	if _, err := c.Select(t.cfg.Folder, false); err != nil {
		return err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil || len(ids) == 0 {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var collected []core.InboundMessage
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		from := ""
		if len(msg.Envelope.From) > 0 {
			from = strings.ToLower(msg.Envelope.From[0].Address())
		}
		r := msg.GetBody(section)
		if r == nil || from == "" {
			continue
		}
		text, err := commandText(r)
		if err != nil {
			t.logger.Debug("skipping unreadable email", slog.String("from", from), slog.String("err", err.Error()))
			continue
		}
		if text == "" {
			text = strings.TrimSpace(msg.Envelope.Subject)
		}
		collected = append(collected, core.InboundMessage{
			Transport: t.ID(),
			Sender:    from,
			Channel:   from,
			MessageID: msg.Envelope.MessageId,
			ThreadID:  msg.Envelope.MessageId,
			Text:      text,
			Meta:      map[string]any{"subject": msg.Envelope.Subject},
		})
	}
	if err := <-done; err != nil {
		return err
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return err
	}

	for _, m := range collected {
		select {
		case inbound <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// commandText returns the first non-blank line of the message's plain text
// part.
func commandText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", err
	}
	defer mr.Close()
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "" && ct != "text/plain" {
			continue
		}
		sc := bufio.NewScanner(p.Body)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				return line, nil
			}
		}
		return "", sc.Err()
	}
}

func (t *Transport) Send(ctx context.Context, msg core.OutboundMessage) error {
	if msg.Recipient == "" {
		return Err("recipient missing")
	}
	body, err := composeReply(t.cfg.From, t.cfg.Subject, msg)
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.SMTPHost)
	errCh := make(chan error, 1)
	go func() {
		errCh <- t.send(fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort), auth, t.cfg.From, []string{msg.Recipient}, body)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// composeReply renders msg as a MIME email with its attachments.
func composeReply(from, subject string, msg core.OutboundMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(subject)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.Recipient}})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	if msg.ThreadID != "" {
		id := strings.Trim(msg.ThreadID, "<>")
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if msg.Text != "" {
		var th mail.InlineHeader
		th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		pw, err := w.CreateSingleInline(th)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(pw, msg.Text); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}
	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.SetContentType(ct, nil)
		ah.SetFilename(a.Name)
		aw, err := w.CreateAttachment(ah)
		if err != nil {
			return nil, err
		}
		if _, err := aw.Write(a.Data); err != nil {
			return nil, err
		}
		if err := aw.Close(); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
