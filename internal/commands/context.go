package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Replier is the outbound side of a chat transport. Calls must not block the
// dispatcher; delivery is the implementation's concern.
type Replier interface {
	// Fail reports a user-visible error.
	Fail(c *Context, msg string)
	// Info reports a user-visible notice.
	Info(c *Context, msg string)
	// Send posts text to the channel the command came from.
	Send(c *Context, text string)
	// SendUser replies privately to the sender.
	SendUser(c *Context, text string)
	// SendFiles posts files to the channel the command came from.
	SendFiles(c *Context, files ...File)
}

// File is an attachment sent through Replier.SendFiles.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Origin identifies where an input came from. The engine never interprets it.
type Origin struct {
	Transport string
	Sender    string
	Channel   string
	MessageID string
	ThreadID  string
	Meta      map[string]any
}

// Context is one parsed input plus the collaborators a handler may use.
type Context struct {
	ctx     context.Context
	args    *Args
	origin  Origin
	replier Replier
	pair    string
}

// NewContext binds parsed args to their origin and replier. pairPrefix is
// only used to phrase diagnostics; pass "" for the default "-".
func NewContext(ctx context.Context, args *Args, origin Origin, replier Replier, pairPrefix string) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if pairPrefix == "" {
		pairPrefix = DefaultPrefixes().Pair
	}
	return &Context{ctx: ctx, args: args, origin: origin, replier: replier, pair: pairPrefix}
}

// withArgs returns a shallow copy of c that owns args.
func (c *Context) withArgs(args *Args) *Context {
	cp := *c
	cp.args = args
	return &cp
}

// Context returns the context.Context of the dispatch.
func (c *Context) Context() context.Context { return c.ctx }

// Args returns the parsed input, including any injected defaults.
func (c *Context) Args() *Args { return c.args }

// Origin returns the transport-level identity of the input.
func (c *Context) Origin() Origin { return c.origin }

// Sender returns the sender identity.
func (c *Context) Sender() string { return c.origin.Sender }

// Channel returns the channel identity.
func (c *Context) Channel() string { return c.origin.Channel }

// Complain reports msg through the failure channel.
func (c *Context) Complain(msg string) {
	if c.replier != nil {
		c.replier.Fail(c, msg)
	}
}

// Inform reports msg through the informational channel.
func (c *Context) Inform(msg string) {
	if c.replier != nil {
		c.replier.Info(c, msg)
	}
}

// Reply posts text to the originating channel. Empty text is dropped.
func (c *Context) Reply(text string) {
	if text == "" || c.replier == nil {
		return
	}
	c.replier.Send(c, text)
}

// Send stringifies v and posts it to the originating channel.
func (c *Context) Send(v any) {
	c.Reply(fmt.Sprint(v))
}

// ReplyToUser replies privately to the sender.
func (c *Context) ReplyToUser(text string) {
	if text == "" || c.replier == nil {
		return
	}
	c.replier.SendUser(c, text)
}

// SendFiles posts files to the originating channel.
func (c *Context) SendFiles(files ...File) {
	if len(files) == 0 || c.replier == nil {
		return
	}
	c.replier.SendFiles(c, files...)
}

// Number returns the pair value for name as a float64.
func (c *Context) Number(name string) (float64, error) {
	v, ok := c.args.Value(name)
	if !ok {
		return 0, fmt.Errorf("%w: parameter %s does not exist", ErrConversion, name)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(Unquote(v)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: could not convert %s=%q to a number: %w", ErrConversion, name, v, err)
	}
	return n, nil
}

// TryNumber is Number without the error.
func (c *Context) TryNumber(name string) (float64, bool) {
	n, err := c.Number(name)
	return n, err == nil
}

// Int returns the pair value for name as an int.
func (c *Context) Int(name string) (int, error) {
	v, ok := c.args.Value(name)
	if !ok {
		return 0, fmt.Errorf("%w: parameter %s does not exist", ErrConversion, name)
	}
	n, err := strconv.Atoi(strings.TrimSpace(Unquote(v)))
	if err != nil {
		return 0, fmt.Errorf("%w: could not convert %s=%q to an integer: %w", ErrConversion, name, v, err)
	}
	return n, nil
}

func (c *Context) missingParam(name string) string {
	return fmt.Sprintf("Missing parameter: `%s`.\nUse `... %s%s value ...` to fix this.", name, c.pair, name)
}
