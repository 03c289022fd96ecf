package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchInvokesEveryMatchInOrder(t *testing.T) {
	var order []string
	first := New("ping").Do(func(*Context) error { order = append(order, "first"); return nil })
	other := New("pong").Do(func(*Context) error { order = append(order, "other"); return nil })
	second := New("ping").Do(func(*Context) error { order = append(order, "second"); return nil })

	d, err := NewDispatcher(first, other, second)
	require.NoError(t, err)

	ctx, _ := newTestContext(t, "!ping")
	outcomes := d.Dispatch(ctx)

	assert.Equal(t, []string{"first", "second"}, order)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Ran)
	assert.True(t, outcomes[1].Ran)
}

func TestDispatchNoMatch(t *testing.T) {
	d, err := NewDispatcher(New("a").Do(func(*Context) error { return nil }))
	require.NoError(t, err)

	ctx, rec := newTestContext(t, "!b")
	assert.Empty(t, d.Dispatch(ctx))
	assert.Equal(t, 0, rec.count())
}

func TestDispatchContinuesAfterValidationFailure(t *testing.T) {
	ran := false
	strict := New("go").RequireParams("x").Do(func(*Context) error { return nil })
	lenient := New("go").Do(func(*Context) error { ran = true; return nil })

	d, err := NewDispatcher(strict, lenient)
	require.NoError(t, err)

	ctx, rec := newTestContext(t, "!go")
	outcomes := d.Dispatch(ctx)

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Ran)
	assert.True(t, ran)
	assert.Len(t, rec.of("fail"), 1)
}

func TestDispatchGivesEachDescriptorItsOwnArgs(t *testing.T) {
	var seen string
	withDefault := New("x").Default("mode", "fast").Do(func(*Context) error { return nil })
	observer := New("x").Do(func(c *Context) error {
		seen, _ = c.Args().Value("mode")
		return nil
	})

	d, err := NewDispatcher(withDefault, observer)
	require.NoError(t, err)

	ctx, _ := newTestContext(t, "!x")
	d.Dispatch(ctx)

	assert.Equal(t, "", seen)
	assert.False(t, ctx.Args().HasPair("mode"))
}

func TestDispatchRecoversPanics(t *testing.T) {
	ran := false
	boom := New("x").Do(func(*Context) error { panic("bad") })
	after := New("x").Do(func(*Context) error { ran = true; return nil })

	d, err := NewDispatcher(boom, after)
	require.NoError(t, err)

	ctx, rec := newTestContext(t, "!x")
	outcomes := d.Dispatch(ctx)

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.True(t, ran)
	assert.Len(t, rec.of("fail"), 1)
}

func TestAddRejectsMisconfiguredDescriptors(t *testing.T) {
	d, err := NewDispatcher()
	require.NoError(t, err)

	good := New("good").Do(func(*Context) error { return nil })
	err = d.Add(good, New("bad"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Empty(t, d.Descriptors(), "nothing is added when one descriptor is bad")

	assert.ErrorIs(t, d.Add(nil), ErrInvalidConfiguration)
	var cmd *Command
	var chained *Chained[int]
	var help *Help
	assert.ErrorIs(t, d.Add(cmd), ErrInvalidConfiguration)
	assert.ErrorIs(t, d.Add(chained), ErrInvalidConfiguration)
	assert.ErrorIs(t, d.Add(help), ErrInvalidConfiguration)
	assert.Panics(t, func() { d.MustAdd(New("")) })

	require.NoError(t, d.Add(good))
	assert.Len(t, d.Lookup("good"), 1)
}

func TestAddAtRuntime(t *testing.T) {
	d, err := NewDispatcher()
	require.NoError(t, err)

	ctx, _ := newTestContext(t, "!late")
	assert.Empty(t, d.Dispatch(ctx))

	d.MustAdd(New("late").Do(func(*Context) error { return nil }))
	ctx, _ = newTestContext(t, "!late")
	assert.Len(t, d.Dispatch(ctx), 1)
}
