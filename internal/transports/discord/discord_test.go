package discord

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelklabo/bangbot/internal/core"
)

type sent struct {
	channel string
	data    *discordgo.MessageSend
}

type fakeSession struct {
	mu       sync.Mutex
	handler  any
	opened   bool
	closed   bool
	openErr  error
	sendErr  error
	sent     []sent
	dmOpened []string
}

func (f *fakeSession) AddHandler(h interface{}) func() {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return func() {}
}

func (f *fakeSession) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return f.openErr
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sent{channelID, data})
	return &discordgo.Message{}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.dmOpened = append(f.dmOpened, recipientID)
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func newTransport(t *testing.T, cfg Config) (*Transport, *fakeSession) {
	t.Helper()
	if cfg.Token == "" {
		cfg.Token = "token"
	}
	tr, err := New(cfg, nil)
	require.NoError(t, err)
	fs := &fakeSession{}
	tr.session = fs
	return tr, fs
}

func create(author *discordgo.User, channel, guild, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", ChannelID: channel, GuildID: guild, Content: content, Author: author,
	}}
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	tr, err := New(Config{Token: "Bot abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "discord", tr.ID())
}

func TestOnMessageFilters(t *testing.T) {
	tr, _ := newTransport(t, Config{ID: "dc", Channels: []string{"c1"}})
	in := make(chan core.InboundMessage, 8)
	ctx := context.Background()
	alice := &discordgo.User{ID: "u1", Username: "alice", Discriminator: "0"}

	tr.onMessage(ctx, in, "bot", create(alice, "c1", "g1", "!ping"))
	tr.onMessage(ctx, in, "bot", create(alice, "c2", "g1", "!ping"))
	tr.onMessage(ctx, in, "bot", create(alice, "dm", "", "!ping"))
	tr.onMessage(ctx, in, "bot", create(&discordgo.User{ID: "bot"}, "c1", "g1", "!ping"))
	tr.onMessage(ctx, in, "bot", create(&discordgo.User{ID: "x", Bot: true}, "c1", "g1", "!ping"))
	tr.onMessage(ctx, in, "bot", create(alice, "c1", "g1", "   "))
	tr.onMessage(ctx, in, "bot", nil)
	close(in)

	var got []core.InboundMessage
	for m := range in {
		got = append(got, m)
	}
	require.Len(t, got, 2, "guild channel c2, bots and blanks are dropped")
	assert.Equal(t, "dc", got[0].Transport)
	assert.Equal(t, "u1", got[0].Sender)
	assert.Equal(t, "alice", got[0].SenderName)
	assert.Equal(t, "c1", got[0].Channel)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.Equal(t, true, got[1].Meta["is_dm"])
}

func TestStartOpensAndCloses(t *testing.T) {
	tr, fs := newTransport(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Start(ctx, make(chan core.InboundMessage, 1)) }()

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.opened && fs.handler != nil
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, fs.closed)

	tr, fs = newTransport(t, Config{})
	fs.openErr = errors.New("bad token")
	assert.ErrorContains(t, tr.Start(context.Background(), nil), "bad token")
}

func TestSendToChannelWithReply(t *testing.T) {
	tr, fs := newTransport(t, Config{Reply: true})
	err := tr.Send(context.Background(), core.OutboundMessage{Channel: "c1", Recipient: "u1", ReplyTo: "m9", Text: "pong"})
	require.NoError(t, err)

	require.Len(t, fs.sent, 1)
	assert.Equal(t, "c1", fs.sent[0].channel)
	assert.Equal(t, "pong", fs.sent[0].data.Content)
	require.NotNil(t, fs.sent[0].data.Reference)
	assert.Equal(t, "m9", fs.sent[0].data.Reference.MessageID)
	assert.Empty(t, fs.dmOpened)
}

func TestSendDirectOpensDM(t *testing.T) {
	tr, fs := newTransport(t, Config{Reply: true})
	err := tr.Send(context.Background(), core.OutboundMessage{Direct: true, Recipient: "u1", ReplyTo: "m9", Text: "psst"})
	require.NoError(t, err)

	assert.Equal(t, []string{"u1"}, fs.dmOpened)
	require.Len(t, fs.sent, 1)
	assert.Equal(t, "dm-u1", fs.sent[0].channel)
	assert.Nil(t, fs.sent[0].data.Reference)

	assert.Error(t, tr.Send(context.Background(), core.OutboundMessage{Direct: true}))
}

func TestSendFilesAndLongText(t *testing.T) {
	tr, fs := newTransport(t, Config{})
	long := strings.Repeat("word ", 600)
	err := tr.Send(context.Background(), core.OutboundMessage{
		Channel:     "c1",
		Text:        long,
		Attachments: []core.Attachment{{Name: "a.txt", ContentType: "text/plain", Data: []byte("hi")}},
	})
	require.NoError(t, err)

	require.Len(t, fs.sent, 2)
	for _, s := range fs.sent {
		assert.LessOrEqual(t, len([]rune(s.data.Content)), messageLimit)
	}
	assert.Empty(t, fs.sent[0].data.Files)
	require.Len(t, fs.sent[1].data.Files, 1)
	body, _ := io.ReadAll(fs.sent[1].data.Files[0].Reader)
	assert.Equal(t, "hi", string(body))

	fs.sent = nil
	require.NoError(t, tr.Send(context.Background(), core.OutboundMessage{Channel: "c1", Attachments: []core.Attachment{{Name: "b.png"}}}))
	require.Len(t, fs.sent, 1)
	assert.Equal(t, "b.png", fs.sent[0].data.Files[0].Name)

	fs.sendErr = errors.New("rate limited")
	assert.ErrorContains(t, tr.Send(context.Background(), core.OutboundMessage{Channel: "c1", Text: "x"}), "rate limited")
}

func TestSplitMessage(t *testing.T) {
	assert.Empty(t, splitMessage("   ", 10))
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, splitMessage("aaaa bbbb", 6))
	assert.Equal(t, []string{"line1", "line2 x"}, splitMessage("line1\nline2 x", 8))
	assert.Equal(t, []string{"abcde", "fgh"}, splitMessage("abcdefgh", 5))
}
