package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelklabo/bangbot/internal/core"
)

func TestMockTransportMovesMessages(t *testing.T) {
	tr := New("mock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbound := make(chan core.InboundMessage, 1)
	go func() { _ = tr.Start(ctx, inbound) }()

	tr.Inbound <- core.InboundMessage{Sender: "s", Text: "!ping"}

	select {
	case msg := <-inbound:
		assert.Equal(t, "!ping", msg.Text)
		assert.Equal(t, "mock", msg.Transport)
		assert.Equal(t, "s", msg.Channel)
	case <-time.After(time.Second):
		t.Fatal("no inbound received")
	}

	require.NoError(t, tr.Send(ctx, core.OutboundMessage{Transport: "mock", Recipient: "s", Text: "pong"}))
	select {
	case out := <-tr.Outbound:
		assert.Equal(t, "pong", out.Text)
	case <-time.After(time.Second):
		t.Fatal("no outbound received")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	tr := New("")
	assert.Equal(t, "mock", tr.ID())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Start(ctx, make(chan core.InboundMessage)) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
