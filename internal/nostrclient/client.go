// Package nostrclient sends and receives NIP-04 encrypted direct messages.
package nostrclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

// IncomingMessage is a decrypted DM sent to the bot.
type IncomingMessage struct {
	Event        *nostr.Event
	SenderPubKey string
	Plaintext    string
}

// State is the persistence the client needs to resume after restarts.
type State interface {
	AlreadyProcessed(id string) (bool, error)
	LastCursor(key string) (time.Time, error)
	SaveCursor(key string, t time.Time) error
}

// lookback bounds how far back a fresh subscription reaches.
const lookback = 2 * time.Hour

var resubscribeDelay = 2 * time.Second

// Client wraps Nostr connectivity and send/receive helpers.
type Client struct {
	pool    Pool
	privKey string
	pubKey  string
	relays  []string
	state   State
	allowed map[string]struct{}
	logger  *slog.Logger

	secretMu sync.Mutex
	secrets  map[string][]byte

	seen *seenIDs
}

// New constructs a client pointing at the provided relays.
func New(privKey, pubKey string, relays, allowedPubkeys []string, st State) *Client {
	return NewWithPool(privKey, pubKey, relays, allowedPubkeys, st, nostr.NewSimplePool(context.Background()))
}

// NewWithPool is New with an explicit relay pool.
func NewWithPool(privKey, pubKey string, relays, allowedPubkeys []string, st State, pool Pool) *Client {
	allowed := make(map[string]struct{}, len(allowedPubkeys))
	for _, pk := range allowedPubkeys {
		allowed[strings.ToLower(pk)] = struct{}{}
	}
	return &Client{
		pool:    pool,
		privKey: privKey,
		pubKey:  strings.ToLower(pubKey),
		relays:  relays,
		state:   st,
		allowed: allowed,
		logger:  slog.Default(),
		secrets: make(map[string][]byte),
		seen:    newSeenIDs(4096),
	}
}

// SetLogger replaces the default logger.
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// PubKey returns the bot's public key.
func (c *Client) PubKey() string { return c.pubKey }

// Listen subscribes to encrypted DMs addressed to the bot and invokes handler
// for each new message. It resubscribes when the relay pool closes the stream.
func (c *Client) Listen(ctx context.Context, handler func(context.Context, IncomingMessage)) error {
	if c.pool == nil {
		return errors.New("nil pool")
	}

	for {
		events := c.pool.SubscribeMany(ctx, c.relays, c.buildFilter())
		if err := c.drain(ctx, events, handler); err != nil {
			return err
		}
		c.logger.Debug("nostr subscription closed; resubscribing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeDelay):
		}
	}
}

// drain consumes events until the stream closes (nil) or ctx ends.
func (c *Client) drain(ctx context.Context, events chan nostr.RelayEvent, handler func(context.Context, IncomingMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ie, ok := <-events:
			if !ok {
				return nil
			}
			if msg, ok := c.accept(ie.Event); ok {
				handler(ctx, msg)
			}
		}
	}
}

// accept filters, decrypts and records one event.
func (c *Client) accept(evt *nostr.Event) (IncomingMessage, bool) {
	if evt == nil || c.seen.Seen(evt.ID) {
		return IncomingMessage{}, false
	}
	if c.state != nil {
		already, err := c.state.AlreadyProcessed("nostr:" + evt.ID)
		if err != nil || already {
			return IncomingMessage{}, false
		}
	}

	sender := strings.ToLower(evt.PubKey)
	if len(c.allowed) > 0 {
		if _, ok := c.allowed[sender]; !ok {
			return IncomingMessage{}, false
		}
	}

	secret, err := c.sharedSecret(sender)
	if err != nil {
		c.logger.Warn("nostr shared secret failed", slog.String("sender", sender), slog.String("err", err.Error()))
		return IncomingMessage{}, false
	}
	plaintext, err := nip04.Decrypt(evt.Content, secret)
	if err != nil {
		c.logger.Warn("nostr decrypt failed", slog.String("sender", sender), slog.String("err", err.Error()))
		return IncomingMessage{}, false
	}

	if c.state != nil {
		_ = c.state.SaveCursor(cursorKey(sender), evt.CreatedAt.Time())
	}
	return IncomingMessage{Event: evt, SenderPubKey: sender, Plaintext: plaintext}, true
}

func cursorKey(pub string) string { return "nostr:" + pub }

func (c *Client) buildFilter() nostr.Filter {
	since := c.resumeFrom()
	f := nostr.Filter{
		Kinds: []int{nostr.KindEncryptedDirectMessage},
		Since: &since,
		Tags:  nostr.TagMap{"p": []string{c.pubKey}},
	}
	if len(c.allowed) > 0 {
		f.Authors = c.allowedList()
	}
	return f
}

// resumeFrom returns the oldest cursor across allowed senders, bounded
// below by the lookback window. Senders without a cursor pin it to the
// window.
func (c *Client) resumeFrom() nostr.Timestamp {
	floor := nostr.Timestamp(time.Now().Add(-lookback).Unix())
	if c.state == nil || len(c.allowed) == 0 {
		return floor
	}
	var oldest nostr.Timestamp
	for pk := range c.allowed {
		t, err := c.state.LastCursor(cursorKey(pk))
		if err != nil || t.IsZero() {
			return floor
		}
		if ts := nostr.Timestamp(t.Unix()); oldest == 0 || ts < oldest {
			oldest = ts
		}
	}
	if oldest < floor {
		return floor
	}
	return oldest
}

// SendReply DMs message to toPubKey.
func (c *Client) SendReply(ctx context.Context, toPubKey string, message string) error {
	secret, err := c.sharedSecret(toPubKey)
	if err != nil {
		return err
	}

	enc, err := nip04.Encrypt(message, secret)
	if err != nil {
		return fmt.Errorf("encrypt DM: %w", err)
	}

	ev := nostr.Event{
		PubKey:    c.pubKey,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindEncryptedDirectMessage,
		Tags:      nostr.Tags{nostr.Tag{"p", toPubKey}},
		Content:   enc,
	}
	if err := ev.Sign(c.privKey); err != nil {
		return fmt.Errorf("sign DM: %w", err)
	}

	results := c.pool.PublishMany(ctx, c.relays, ev)
	var firstErr error
	delivered := false
	for res := range results {
		if res.Error != nil {
			if firstErr == nil {
				firstErr = res.Error
			}
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return firstErr
}

func (c *Client) sharedSecret(peerPub string) ([]byte, error) {
	peerPub = strings.ToLower(peerPub)
	c.secretMu.Lock()
	if key, ok := c.secrets[peerPub]; ok {
		c.secretMu.Unlock()
		return key, nil
	}
	c.secretMu.Unlock()

	key, err := nip04.ComputeSharedSecret(peerPub, c.privKey)
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}

	c.secretMu.Lock()
	c.secrets[peerPub] = key
	c.secretMu.Unlock()
	return key, nil
}

func (c *Client) allowedList() []string {
	res := make([]string, 0, len(c.allowed))
	for pk := range c.allowed {
		res = append(res, pk)
	}
	return res
}
