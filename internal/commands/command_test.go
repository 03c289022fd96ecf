package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind string
	text string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(kind, text string) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: kind, text: text})
	r.mu.Unlock()
}

func (r *recorder) Fail(_ *Context, msg string)      { r.add("fail", msg) }
func (r *recorder) Info(_ *Context, msg string)      { r.add("info", msg) }
func (r *recorder) Send(_ *Context, text string)     { r.add("send", text) }
func (r *recorder) SendUser(_ *Context, text string) { r.add("user", text) }
func (r *recorder) SendFiles(_ *Context, files ...File) {
	for _, f := range files {
		r.add("file", f.Name)
	}
}

func (r *recorder) of(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e.text)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestContext(t *testing.T, line string) (*Context, *recorder) {
	t.Helper()
	args, err := defaultTokenizer(t).Parse(line)
	require.NoError(t, err)
	rec := &recorder{}
	origin := Origin{Transport: "test", Sender: "alice", Channel: "general"}
	return NewContext(context.Background(), args, origin, rec, "-"), rec
}

func TestRequiredParamMissingSkipsHandler(t *testing.T) {
	called := false
	cmd := New("cmd").RequireParams("x").Do(func(*Context) error {
		called = true
		return nil
	})
	require.NoError(t, cmd.Err())

	ctx, rec := newTestContext(t, "!cmd -y 1")
	out := cmd.Invoke(ctx)

	assert.False(t, called)
	assert.False(t, out.Ran)
	require.Len(t, rec.of("fail"), 1)
	assert.Equal(t, "Missing parameter: `x`.\nUse `... -x value ...` to fix this.", rec.of("fail")[0])
	assert.Equal(t, rec.of("fail"), out.Failures)
}

func TestDefaultsAppliedEvenWhenRejected(t *testing.T) {
	cmd := New("cmd").RequireParams("x").Default("y", "5").Do(func(*Context) error { return nil })

	ctx, _ := newTestContext(t, "!cmd")
	out := cmd.Invoke(ctx)

	assert.False(t, out.Ran)
	v, ok := ctx.Args().Value("y")
	assert.True(t, ok)
	assert.Equal(t, "5", v)
}

func TestDefaultDoesNotOverrideGivenValue(t *testing.T) {
	var got string
	cmd := New("cmd").Default("y", "5").Do(func(c *Context) error {
		got, _ = c.Args().Value("y")
		return nil
	})

	ctx, _ := newTestContext(t, "!cmd -y 9")
	assert.True(t, cmd.Invoke(ctx).Ran)
	assert.Equal(t, "9", got)
}

func TestAllFailuresReportedInOrder(t *testing.T) {
	cmd := New("cmd").
		Require(func(*Context) bool { return false }, "first").
		Require(func(*Context) bool { return true }, "never").
		Require(func(*Context) bool { return false }, "").
		RequireParams("a", "b").
		Do(func(*Context) error {
			t.Fatal("handler must not run")
			return nil
		})

	ctx, rec := newTestContext(t, "!cmd -b 1")
	out := cmd.Invoke(ctx)

	assert.False(t, out.Ran)
	assert.Equal(t, []string{
		"first",
		"An error occurred.",
		"Missing parameter: `a`.\nUse `... -a value ...` to fix this.",
	}, rec.of("fail"))
}

func TestPreconditionSeesSender(t *testing.T) {
	cmd := New("admin").
		Require(func(c *Context) bool { return c.Sender() == "root" }, "Only root may do this.").
		Do(func(c *Context) error {
			c.Reply("done")
			return nil
		})

	ctx, rec := newTestContext(t, "!admin")
	assert.False(t, cmd.Invoke(ctx).Ran)
	assert.Equal(t, []string{"Only root may do this."}, rec.of("fail"))
	assert.Empty(t, rec.of("send"))
}

func TestHandlerRunsOnceAndErrorIsReported(t *testing.T) {
	calls := 0
	cmd := New("cmd").Do(func(*Context) error {
		calls++
		return errors.New("boom")
	})

	ctx, rec := newTestContext(t, "!cmd")
	out := cmd.Invoke(ctx)

	assert.Equal(t, 1, calls)
	assert.True(t, out.Ran)
	assert.EqualError(t, out.Err, "boom")
	assert.Equal(t, []string{"boom"}, rec.of("fail"))
}

func TestBuilderRecordsConfigurationErrors(t *testing.T) {
	cases := map[string]*Command{
		"empty identifier": New("").Do(func(*Context) error { return nil }),
		"nil handler":      New("a").Do(nil),
		"no handler":       New("a"),
		"nil predicate":    New("a").Require(nil, "x").Do(func(*Context) error { return nil }),
		"empty param":      New("a").RequireParams("ok", "").Do(func(*Context) error { return nil }),
		"empty default":    New("a").Default("", "v").Do(func(*Context) error { return nil }),
	}
	for name, cmd := range cases {
		assert.ErrorIs(t, cmd.Err(), ErrInvalidConfiguration, name)
	}
}

func TestRequireParamsDeduplicates(t *testing.T) {
	cmd := New("cmd").RequireParams("x", "x").RequireParams("x").Do(func(*Context) error { return nil })
	ctx, rec := newTestContext(t, "!cmd")
	cmd.Invoke(ctx)
	assert.Len(t, rec.of("fail"), 1)
}

func TestMissingParamUsesConfiguredPairPrefix(t *testing.T) {
	tk, err := NewTokenizer(Prefixes{Command: "!", Flag: "+", Pair: "@"})
	require.NoError(t, err)
	args, err := tk.Parse("!cmd")
	require.NoError(t, err)
	rec := &recorder{}
	ctx := NewContext(context.Background(), args, Origin{}, rec, "@")

	New("cmd").RequireParams("to").Do(func(*Context) error { return nil }).Invoke(ctx)
	assert.Equal(t, []string{"Missing parameter: `to`.\nUse `... @to value ...` to fix this."}, rec.of("fail"))
}

func TestContextNumberConversions(t *testing.T) {
	ctx, _ := newTestContext(t, `!calc -a 2.5 -b x -n 7 -q "3"`)

	n, err := ctx.Number("a")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, n, 1e-9)

	_, err = ctx.Number("b")
	assert.ErrorIs(t, err, ErrConversion)

	_, err = ctx.Number("missing")
	assert.ErrorIs(t, err, ErrConversion)

	_, ok := ctx.TryNumber("b")
	assert.False(t, ok)

	i, err := ctx.Int("n")
	require.NoError(t, err)
	assert.Equal(t, 7, i)

	i, err = ctx.Int("q")
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	_, err = ctx.Int("a")
	assert.ErrorIs(t, err, ErrConversion)
}

func TestContextDropsEmptyReplies(t *testing.T) {
	ctx, rec := newTestContext(t, "!cmd")
	ctx.Reply("")
	ctx.ReplyToUser("")
	ctx.SendFiles()
	assert.Equal(t, 0, rec.count())

	ctx.Send(42)
	ctx.Send(fmt.Errorf("as text"))
	assert.Equal(t, []string{"42", "as text"}, rec.of("send"))
}
