package commands

import (
	"slices"
)

const defaultConditionMessage = "An error occurred."

// Handler runs a command once validation has passed. A returned error is
// reported to the user through the failure channel.
type Handler func(c *Context) error

// Predicate is a precondition evaluated before the handler runs.
type Predicate func(c *Context) bool

type condition struct {
	check   Predicate
	message string
}

// Descriptor is anything the Dispatcher can route to.
type Descriptor interface {
	Identifier() string
	Description() string
	Invoke(c *Context) Outcome
	Err() error
}

// Outcome summarizes one invocation of a descriptor.
type Outcome struct {
	Identifier string
	// Ran is true when the handler was called.
	Ran bool
	// Failures holds the validation messages reported, in order.
	Failures []string
	// Err is the handler's error, if any.
	Err error
}

// Command declares a command: its identifier, preconditions, required and
// default parameters, and handler. Build it before registering; the builder
// methods record the first misuse and Err reports it.
type Command struct {
	identifier  string
	description string
	usage       string
	handler     Handler
	conditions  []condition
	required    []string
	defaults    []paramDefault
	err         error
}

type paramDefault struct {
	name  string
	value string
}

// New starts a command triggered by identifier.
func New(identifier string) *Command {
	c := &Command{identifier: identifier}
	if identifier == "" {
		c.fail(invalidf("identifier cannot be empty"))
	}
	return c
}

func (c *Command) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first configuration error recorded by the builder, or
// ErrInvalidConfiguration if no handler was set.
func (c *Command) Err() error {
	if c == nil {
		return invalidf("nil command")
	}
	if c.err != nil {
		return c.err
	}
	if c.handler == nil {
		return invalidf("command %q has no handler", c.identifier)
	}
	return nil
}

// Identifier returns the routing key.
func (c *Command) Identifier() string { return c.identifier }

// Description returns the one-line help text.
func (c *Command) Description() string { return c.description }

// UsageText returns the usage line set with Usage.
func (c *Command) UsageText() string { return c.usage }

// Do sets the handler.
func (c *Command) Do(h Handler) *Command {
	if h == nil {
		c.fail(invalidf("command %q: handler cannot be nil", c.identifier))
		return c
	}
	c.handler = h
	return c
}

// Require adds a precondition. An empty message becomes a generic one.
func (c *Command) Require(p Predicate, message string) *Command {
	if p == nil {
		c.fail(invalidf("command %q: predicate cannot be nil", c.identifier))
		return c
	}
	if message == "" {
		message = defaultConditionMessage
	}
	c.conditions = append(c.conditions, condition{check: p, message: message})
	return c
}

// RequireParams adds parameters that must be present as pairs.
func (c *Command) RequireParams(names ...string) *Command {
	for _, n := range names {
		if n == "" {
			c.fail(invalidf("command %q: parameter name cannot be empty", c.identifier))
			continue
		}
		if !slices.Contains(c.required, n) {
			c.required = append(c.required, n)
		}
	}
	return c
}

// Default sets the value injected for name when the input omits it.
func (c *Command) Default(name, value string) *Command {
	if name == "" {
		c.fail(invalidf("command %q: parameter name cannot be empty", c.identifier))
		return c
	}
	for i := range c.defaults {
		if c.defaults[i].name == name {
			c.defaults[i].value = value
			return c
		}
	}
	c.defaults = append(c.defaults, paramDefault{name: name, value: value})
	return c
}

// Describe sets the one-line help text.
func (c *Command) Describe(text string) *Command {
	c.description = text
	return c
}

// Usage sets a usage example shown by help.
func (c *Command) Usage(text string) *Command {
	c.usage = text
	return c
}

// Invoke validates ctx against the command and runs the handler if nothing
// failed. Every check runs; all failures are reported before deciding.
// Defaults are injected even when the attempt is rejected.
func (c *Command) Invoke(ctx *Context) Outcome {
	out := Outcome{Identifier: c.identifier}

	for _, cond := range c.conditions {
		if !cond.check(ctx) {
			ctx.Complain(cond.message)
			out.Failures = append(out.Failures, cond.message)
		}
	}

	for _, name := range c.required {
		if !ctx.args.HasPair(name) {
			msg := ctx.missingParam(name)
			ctx.Complain(msg)
			out.Failures = append(out.Failures, msg)
		}
	}

	for _, d := range c.defaults {
		ctx.args.setDefault(d.name, d.value)
	}

	if len(out.Failures) > 0 || c.handler == nil {
		return out
	}

	out.Ran = true
	if err := c.handler(ctx); err != nil {
		ctx.Complain(err.Error())
		out.Err = err
	}
	return out
}
