// Package nostr carries commands over NIP-04 encrypted direct messages.
package nostr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/core"
	client "github.com/joelklabo/bangbot/internal/nostrclient"
	"github.com/joelklabo/bangbot/internal/transports"
)

func init() {
	transports.MustRegister("nostr", func(cfg config.TransportConfig, deps transports.Deps) (core.Transport, error) {
		var state client.State
		if deps.Store != nil {
			state = deps.Store
		}
		tr, err := New(Config{ID: cfg.ID, Relays: cfg.Relays, PrivateKey: cfg.PrivateKey, AllowedPubkeys: cfg.AllowedPubkeys}, state)
		if err != nil {
			return nil, err
		}
		tr.SetLogger(deps.Logger)
		return tr, nil
	})
}

// Config holds the parameters needed to run the Nostr transport.
type Config struct {
	ID             string
	Relays         []string
	PrivateKey     string
	AllowedPubkeys []string
}

type dmClient interface {
	Listen(ctx context.Context, handler func(context.Context, client.IncomingMessage)) error
	SendReply(ctx context.Context, toPubKey string, message string) error
}

// Transport implements core.Transport for Nostr DMs. Every conversation is
// private, so the channel is the sender's pubkey.
type Transport struct {
	cfg    Config
	client dmClient
	id     string
	logger *slog.Logger
}

// New creates a Nostr transport.
func New(cfg Config, st client.State) (*Transport, error) {
	if cfg.PrivateKey == "" {
		return nil, errors.New("nostr private key required")
	}
	pub, err := nostr.GetPublicKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("derive pubkey: %w", err)
	}
	id := cfg.ID
	if id == "" {
		id = "nostr"
	}
	c := client.New(cfg.PrivateKey, pub, cfg.Relays, cfg.AllowedPubkeys, st)
	return &Transport{cfg: cfg, client: c, id: id, logger: slog.Default()}, nil
}

// SetLogger replaces the default logger.
func (t *Transport) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	t.logger = l
	if c, ok := t.client.(*client.Client); ok {
		c.SetLogger(l)
	}
}

// ID returns transport identifier.
func (t *Transport) ID() string { return t.id }

// Start subscribes to Nostr DMs and pushes inbound messages.
func (t *Transport) Start(ctx context.Context, inbound chan<- core.InboundMessage) error {
	handler := func(msgCtx context.Context, msg client.IncomingMessage) {
		in := core.InboundMessage{
			Transport: t.id,
			Sender:    msg.SenderPubKey,
			Channel:   msg.SenderPubKey,
			ThreadID:  msg.SenderPubKey,
			Text:      msg.Plaintext,
		}
		if msg.Event != nil {
			in.MessageID = msg.Event.ID
		}
		select {
		case inbound <- in:
		case <-msgCtx.Done():
		}
	}
	return t.client.Listen(ctx, handler)
}

// Send delivers a DM back to the recipient. Nostr DMs cannot carry files, so
// attachments are announced by name.
func (t *Transport) Send(ctx context.Context, msg core.OutboundMessage) error {
	if msg.Recipient == "" {
		return errors.New("nostr recipient missing")
	}
	text := msg.Text
	if len(msg.Attachments) > 0 {
		names := make([]string, len(msg.Attachments))
		for i, a := range msg.Attachments {
			names[i] = a.Name
		}
		notice := "[attachments not supported here: " + strings.Join(names, ", ") + "]"
		if text == "" {
			text = notice
		} else {
			text += "\n" + notice
		}
	}
	if text == "" {
		return nil
	}
	return t.client.SendReply(ctx, msg.Recipient, text)
}
