// Package discord carries commands over a Discord bot session.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/core"
	"github.com/joelklabo/bangbot/internal/transports"
)

// messageLimit is Discord's per-message character cap.
const messageLimit = 2000

func init() {
	transports.MustRegister("discord", func(cfg config.TransportConfig, deps transports.Deps) (core.Transport, error) {
		var dc Config
		if err := transports.DecodeConfig(cfg.Config, &dc); err != nil {
			return nil, fmt.Errorf("decode discord config: %w", err)
		}
		dc.ID = cfg.ID
		dc.Token = cfg.Token
		return New(dc, deps.Logger)
	})
}

// Config for the Discord transport.
type Config struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
	// Channels limits listening to these channel ids; empty means all.
	Channels []string `yaml:"channels"`
	// Reply threads channel answers onto the triggering message.
	Reply bool `yaml:"reply"`
}

// session is the part of *discordgo.Session the transport uses.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Transport implements core.Transport for Discord.
type Transport struct {
	cfg     Config
	session session
	logger  *slog.Logger
}

// New opens nothing yet; the gateway connection starts in Start.
func New(cfg Config, logger *slog.Logger) (*Transport, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token required")
	}
	if cfg.ID == "" {
		cfg.ID = "discord"
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := discordgo.New("Bot " + strings.TrimPrefix(cfg.Token, "Bot "))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	return &Transport{cfg: cfg, session: s, logger: logger}, nil
}

func (t *Transport) ID() string { return t.cfg.ID }

// Start connects to the gateway and forwards messages until ctx is done.
func (t *Transport) Start(ctx context.Context, inbound chan<- core.InboundMessage) error {
	remove := t.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		botID := ""
		if s != nil && s.State != nil && s.State.User != nil {
			botID = s.State.User.ID
		}
		t.onMessage(ctx, inbound, botID, m)
	})
	defer remove()

	if err := t.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	t.logger.Info("discord connected")
	<-ctx.Done()
	if err := t.session.Close(); err != nil {
		t.logger.Warn("discord close failed", slog.String("err", err.Error()))
	}
	return ctx.Err()
}

func (t *Transport) onMessage(ctx context.Context, inbound chan<- core.InboundMessage, botID string, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if m.Author.Bot || m.Author.ID == botID {
		return
	}
	if len(t.cfg.Channels) > 0 && m.GuildID != "" && !slices.Contains(t.cfg.Channels, m.ChannelID) {
		return
	}
	if strings.TrimSpace(m.Content) == "" {
		return
	}

	name := m.Author.Username
	if m.Author.Discriminator != "" && m.Author.Discriminator != "0" {
		name += "#" + m.Author.Discriminator
	}
	msg := core.InboundMessage{
		Transport:  t.cfg.ID,
		Sender:     m.Author.ID,
		SenderName: name,
		Channel:    m.ChannelID,
		MessageID:  m.ID,
		Text:       m.Content,
		Meta: map[string]any{
			"guild_id": m.GuildID,
			"is_dm":    m.GuildID == "",
		},
	}
	select {
	case inbound <- msg:
	case <-ctx.Done():
	}
}

// Send posts text and attachments. Direct messages open a DM channel with
// the recipient first. Long text is split at Discord's limit.
func (t *Transport) Send(ctx context.Context, msg core.OutboundMessage) error {
	channelID := msg.Channel
	if msg.Direct || channelID == "" {
		if msg.Recipient == "" {
			return errors.New("discord recipient missing")
		}
		ch, err := t.session.UserChannelCreate(msg.Recipient, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("open DM channel: %w", err)
		}
		channelID = ch.ID
	}

	var ref *discordgo.MessageReference
	if t.cfg.Reply && !msg.Direct && msg.ReplyTo != "" {
		ref = &discordgo.MessageReference{MessageID: msg.ReplyTo, ChannelID: channelID}
	}

	chunks := splitMessage(msg.Text, messageLimit)
	for i, chunk := range chunks {
		data := &discordgo.MessageSend{Content: chunk}
		if i == 0 {
			data.Reference = ref
		}
		if i == len(chunks)-1 {
			data.Files = files(msg.Attachments)
		}
		if _, err := t.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	if len(chunks) == 0 && len(msg.Attachments) > 0 {
		data := &discordgo.MessageSend{Files: files(msg.Attachments), Reference: ref}
		if _, err := t.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send discord files: %w", err)
		}
	}
	return nil
}

func files(atts []core.Attachment) []*discordgo.File {
	if len(atts) == 0 {
		return nil
	}
	out := make([]*discordgo.File, len(atts))
	for i, a := range atts {
		out[i] = &discordgo.File{Name: a.Name, ContentType: a.ContentType, Reader: bytes.NewReader(a.Data)}
	}
	return out
}

// splitMessage cuts content into chunks of at most limit runes, preferring a
// newline, then a space, near the end of each chunk.
func splitMessage(content string, limit int) []string {
	var out []string
	runes := []rune(strings.TrimSpace(content))
	for len(runes) > 0 {
		if len(runes) <= limit {
			out = append(out, string(runes))
			break
		}
		end := lastIndex(runes[:limit], '\n', 200)
		if end <= 0 {
			end = lastIndex(runes[:limit], ' ', 100)
		}
		if end <= 0 {
			end = limit
		}
		out = append(out, string(runes[:end]))
		runes = []rune(strings.TrimSpace(string(runes[end:])))
	}
	return out
}

// lastIndex finds r within the last window runes.
func lastIndex(runes []rune, r rune, window int) int {
	start := max(len(runes)-window, 0)
	for i := len(runes) - 1; i >= start; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
