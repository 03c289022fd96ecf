// Package builtins provides the stock commands every bot ships with.
package builtins

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joelklabo/bangbot/internal/commands"
)

const (
	maxDice  = 100
	maxSides = 1000
)

// All returns every builtin command. rng drives roll; nil seeds from time.
func All(rng *rand.Rand) []commands.Descriptor {
	return []commands.Descriptor{
		Ping(),
		Echo(),
		WhoAmI(),
		Sum(),
		Roll(rng),
		UUID(),
	}
}

// Ping replies "pong".
func Ping() *commands.Command {
	return commands.New("ping").
		Describe("Checks that the bot is alive").
		Usage("!ping").
		Do(func(c *commands.Context) error {
			c.Reply("pong")
			return nil
		})
}

// Echo repeats everything after the identifier.
func Echo() *commands.Command {
	return commands.New("echo").
		Describe("Repeats your text; --upper shouts it").
		Usage(`!echo [--upper] "some text"`).
		Require(func(c *commands.Context) bool {
			return c.Args().ArgumentText() != ""
		}, "Nothing to echo.").
		Do(func(c *commands.Context) error {
			if !c.Args().HasFlag("upper") {
				c.Reply(c.Args().ArgumentText())
				return nil
			}
			raw := c.Args().Raw()
			for i := range raw {
				raw[i] = strings.ToUpper(commands.Unquote(raw[i]))
			}
			c.Reply(strings.Join(raw, " "))
			return nil
		})
}

// WhoAmI reports the identity the transport gave the sender.
func WhoAmI() *commands.Command {
	return commands.New("whoami").
		Describe("Shows who the bot thinks you are").
		Do(func(c *commands.Context) error {
			o := c.Origin()
			c.Inform(fmt.Sprintf("You are `%s` in `%s` via %s.", o.Sender, o.Channel, o.Transport))
			return nil
		})
}

// Sum adds every raw argument.
func Sum() *commands.Chained[float64] {
	return commands.NewChained[float64]("sum").
		Describe("Adds numbers").
		Usage("!sum 1 2 3.5").
		Process(func(c *commands.Context) commands.Result[float64] {
			raw := c.Args().Raw()
			if len(raw) == 0 {
				return commands.Failure[float64]("Give me some numbers to add.")
			}
			var total float64
			for _, r := range raw {
				n, err := strconv.ParseFloat(commands.Unquote(r), 64)
				if err != nil {
					return commands.Failure[float64](fmt.Sprintf("`%s` is not a number.", r))
				}
				total += n
			}
			return commands.Success(total)
		})
}

// Roll throws dice; -count and -sides default to 1 and 6.
func Roll(rng *rand.Rand) *commands.Chained[[]int] {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return commands.NewChained[[]int]("roll").
		Describe("Rolls dice").
		Usage("!roll -count 2 -sides 20 [--total]").
		Default("count", "1").
		Default("sides", "6").
		Require(intBetween("count", 1, maxDice), fmt.Sprintf("`count` must be a whole number from 1 to %d.", maxDice)).
		Require(intBetween("sides", 2, maxSides), fmt.Sprintf("`sides` must be a whole number from 2 to %d.", maxSides)).
		Process(func(c *commands.Context) commands.Result[[]int] {
			count, err := c.Int("count")
			if err != nil {
				return commands.Abort[[]int]()
			}
			sides, err := c.Int("sides")
			if err != nil {
				return commands.Abort[[]int]()
			}
			out := make([]int, count)
			for i := range out {
				out[i] = rng.IntN(sides) + 1
			}
			return commands.Success(out)
		}).
		Completed(func(c *commands.Context, r commands.Result[[]int]) {
			if r.Failed() {
				return
			}
			rolls := r.Value()
			parts := make([]string, len(rolls))
			total := 0
			for i, v := range rolls {
				parts[i] = strconv.Itoa(v)
				total += v
			}
			if c.Args().HasFlag("total") || len(rolls) > 1 {
				c.Reply(fmt.Sprintf("🎲 %s (total %d)", strings.Join(parts, ", "), total))
				return
			}
			c.Reply("🎲 " + parts[0])
		})
}

// intBetween accepts an absent parameter; defaults are applied after checks.
func intBetween(name string, lo, hi int) commands.Predicate {
	return func(c *commands.Context) bool {
		if !c.Args().HasPair(name) {
			return true
		}
		n, err := c.Int(name)
		return err == nil && n >= lo && n <= hi
	}
}

// UUID replies with a fresh random UUID.
func UUID() *commands.Chained[string] {
	return commands.NewChained[string]("uuid").
		Describe("Generates a random UUID").
		Process(func(*commands.Context) commands.Result[string] {
			return commands.Success(uuid.NewString())
		})
}
