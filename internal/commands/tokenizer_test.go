package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tk, err := NewTokenizer(DefaultPrefixes())
	require.NoError(t, err)
	return tk
}

func TestParseClassifiesTokens(t *testing.T) {
	args, err := defaultTokenizer(t).Parse(`!cmd --flag -key value raw1 "raw two"`)
	require.NoError(t, err)

	assert.Equal(t, "cmd", args.Identifier())
	assert.Equal(t, []string{"flag"}, args.Flags())
	assert.Equal(t, map[string]string{"key": "value"}, args.Pairs())
	assert.Equal(t, []string{"raw1", `"raw two"`}, args.Raw())
	assert.Equal(t, `--flag -key value raw1 "raw two"`, args.ArgumentText())
	assert.Equal(t, `!cmd --flag -key value raw1 "raw two"`, args.RawText())
}

func TestParsePairAtEndHasEmptyValue(t *testing.T) {
	args, err := defaultTokenizer(t).Parse("!cmd raw -last")
	require.NoError(t, err)

	v, ok := args.Value("last")
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, []string{"raw"}, args.Raw())
}

func TestParsePairConsumesNextTokenVerbatim(t *testing.T) {
	args, err := defaultTokenizer(t).Parse(`!cmd -a --b -c "x y" -d -e`)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"a": "--b", "c": `"x y"`, "d": "-e"}, args.Pairs())
	assert.Empty(t, args.Flags())
	assert.Empty(t, args.Raw())
}

func TestParseKeepsDuplicateFlags(t *testing.T) {
	args, err := defaultTokenizer(t).Parse("!cmd --v --v --q")
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "v", "q"}, args.Flags())
	assert.True(t, args.HasFlag("q"))
	assert.False(t, args.HasFlag("x"))
}

func TestParseBarePrefixesAreRaw(t *testing.T) {
	args, err := defaultTokenizer(t).Parse("!cmd - --")
	require.NoError(t, err)
	assert.Equal(t, []string{"-", "--"}, args.Raw())
	assert.Empty(t, args.Pairs())
}

func TestParseDuplicatePairFails(t *testing.T) {
	_, err := defaultTokenizer(t).Parse("!cmd -x 1 -x 2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateParam)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParseMalformed(t *testing.T) {
	tk := defaultTokenizer(t)
	for _, in := range []string{"", "cmd", "!", "! cmd", "hello !cmd", "!   "} {
		_, err := tk.Parse(in)
		assert.ErrorIs(t, err, ErrMalformedInput, "input %q", in)
	}
}

func TestParseIdentifierOnly(t *testing.T) {
	args, err := defaultTokenizer(t).Parse("!ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", args.Identifier())
	assert.Equal(t, "", args.ArgumentText())
	assert.Empty(t, args.Raw())
	assert.NotNil(t, args.Pairs())
}

func TestParseCustomPrefixes(t *testing.T) {
	tk, err := NewTokenizer(Prefixes{Command: "bot:", Flag: "+", Pair: "@"})
	require.NoError(t, err)

	args, err := tk.Parse("bot:deploy +force @env prod web")
	require.NoError(t, err)
	assert.Equal(t, "deploy", args.Identifier())
	assert.Equal(t, []string{"force"}, args.Flags())
	assert.Equal(t, map[string]string{"env": "prod"}, args.Pairs())
	assert.Equal(t, []string{"web"}, args.Raw())

	_, err = tk.Parse("!deploy")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestTokenizersDoNotShareState(t *testing.T) {
	a, err := NewTokenizer(Prefixes{Command: "?", Flag: "--", Pair: "-"})
	require.NoError(t, err)
	b := defaultTokenizer(t)

	_, err = a.Parse("!x")
	assert.Error(t, err)
	_, err = b.Parse("!x")
	assert.NoError(t, err)
}

func TestNewTokenizerRejectsAmbiguousPrefixes(t *testing.T) {
	cases := []Prefixes{
		{Command: "!", Flag: "", Pair: "-"},
		{Command: "!", Flag: "-", Pair: ""},
		{Command: "!", Flag: "-", Pair: "-"},
		{Command: "!", Flag: "-", Pair: "--"},
	}
	for _, p := range cases {
		_, err := NewTokenizer(p)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "prefixes %+v", p)
	}
}

func TestIdentifierAndArgumentTextRebuildLine(t *testing.T) {
	tk := defaultTokenizer(t)
	lines := []string{
		"!cmd a b c",
		"!cmd   --flag   -k  v  ",
		`!say "hello   world" -to "the moon"`,
		"!solo",
		"!multi\tline\nargs",
	}
	for _, line := range lines {
		args, err := tk.Parse(line)
		require.NoError(t, err, line)
		rebuilt := strings.TrimSpace(args.Identifier() + " " + args.ArgumentText())
		assert.Equal(t, normalize(strings.TrimPrefix(line, "!")), normalize(rebuilt), line)
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestArgsCloneIsIndependent(t *testing.T) {
	args, err := defaultTokenizer(t).Parse("!cmd --f -k v r")
	require.NoError(t, err)

	cp := args.Clone()
	cp.setDefault("extra", "1")
	cp.flags[0] = "changed"

	assert.False(t, args.HasPair("extra"))
	assert.Equal(t, []string{"f"}, args.Flags())
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "a b", Unquote(`"a b"`))
	assert.Equal(t, "plain", Unquote("plain"))
	assert.Equal(t, `"`, Unquote(`"`))
	assert.Equal(t, `"open`, Unquote(`"open`))
}
