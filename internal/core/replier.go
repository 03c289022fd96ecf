package core

import (
	"context"
	"log/slog"
	"mime"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joelklabo/bangbot/internal/commands"
	"github.com/joelklabo/bangbot/internal/metrics"
)

const truncationMarker = "…"

// transportReplier answers one inbound message through the transport it
// arrived on. Every call returns immediately; delivery happens in the
// background and is tracked by the runner.
type transportReplier struct {
	r   *Runner
	msg InboundMessage
}

func (r *Runner) replierFor(msg InboundMessage) commands.Replier {
	return &transportReplier{r: r, msg: msg}
}

func (t *transportReplier) Fail(c *commands.Context, msg string) {
	t.deliver(c, t.toChannel(KindFailure, t.r.failurePrefix+msg))
}

func (t *transportReplier) Info(c *commands.Context, msg string) {
	t.deliver(c, t.toChannel(KindInfo, t.r.infoPrefix+msg))
}

func (t *transportReplier) Send(c *commands.Context, text string) {
	t.deliver(c, t.toChannel(KindText, text))
}

func (t *transportReplier) SendUser(c *commands.Context, text string) {
	out := t.toChannel(KindText, text)
	out.Direct = true
	out.Channel = ""
	t.deliver(c, out)
}

func (t *transportReplier) SendFiles(c *commands.Context, files ...commands.File) {
	out := t.toChannel(KindFiles, "")
	for _, f := range files {
		name := f.Name
		if name == "" {
			name = uuid.NewString() + extensionFor(f.ContentType)
		}
		out.Attachments = append(out.Attachments, Attachment{Name: name, ContentType: f.ContentType, Data: f.Data})
	}
	t.deliver(c, out)
}

func (t *transportReplier) toChannel(kind ReplyKind, text string) OutboundMessage {
	return OutboundMessage{
		Transport: t.msg.Transport,
		Recipient: t.msg.Sender,
		Channel:   t.msg.Channel,
		ThreadID:  t.msg.ThreadID,
		ReplyTo:   t.msg.MessageID,
		Kind:      kind,
		Text:      truncate(text, t.r.maxReplyChars),
	}
}

func (t *transportReplier) deliver(c *commands.Context, out OutboundMessage) {
	r := t.r
	log := r.logger.With(
		slog.String("transport", out.Transport),
		slog.String("recipient", out.Recipient),
		slog.String("kind", string(out.Kind)),
	)
	tr, ok := r.transportMap[out.Transport]
	if !ok {
		log.Error("no transport for outbound")
		return
	}

	parent := context.Background()
	if c != nil {
		parent = context.WithoutCancel(c.Context())
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx := parent
		if r.replyTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, r.replyTimeout)
			defer cancel()
		}
		if err := r.sendWithRetry(ctx, tr, out, log); err != nil {
			metrics.IncSendError(out.Transport)
			log.Error("send error", slog.String("err", err.Error()))
		}
	}()
}

// truncate caps text at max runes, marking the cut.
func truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	keep := max - utf8.RuneCountInString(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + truncationMarker
}

func extensionFor(contentType string) string {
	switch contentType {
	case "":
		return ""
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
