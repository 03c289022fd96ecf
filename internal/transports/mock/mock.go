// Package mock is an in-memory transport for tests and local dry runs.
package mock

import (
	"context"

	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/core"
	"github.com/joelklabo/bangbot/internal/transports"
)

func init() {
	transports.MustRegister("mock", func(cfg config.TransportConfig, _ transports.Deps) (core.Transport, error) {
		return New(cfg.ID), nil
	})
}

// Transport is an in-memory transport. Tests push into Inbound and read
// replies from Outbound.
type Transport struct {
	id       string
	Inbound  chan core.InboundMessage
	Outbound chan core.OutboundMessage
}

func New(id string) *Transport {
	if id == "" {
		id = "mock"
	}
	return &Transport{
		id:       id,
		Inbound:  make(chan core.InboundMessage, 32),
		Outbound: make(chan core.OutboundMessage, 32),
	}
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Start(ctx context.Context, in chan<- core.InboundMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-t.Inbound:
			if msg.Transport == "" {
				msg.Transport = t.id
			}
			if msg.Channel == "" {
				msg.Channel = msg.Sender
			}
			select {
			case in <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (t *Transport) Send(ctx context.Context, msg core.OutboundMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.Outbound <- msg:
		return nil
	}
}
