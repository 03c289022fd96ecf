package commands

// Result is either a value or a failure. Build it with Success, Failure or
// Abort.
type Result[T any] struct {
	value   T
	failed  bool
	message string
}

// Success wraps a computed value.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure is a failed result whose message is shown to the user.
func Failure[T any](message string) Result[T] {
	return Result[T]{failed: true, message: message}
}

// Abort is a failed result without a message. Nothing is reported; only a
// completion function sees it.
func Abort[T any]() Result[T] {
	return Result[T]{failed: true}
}

// Value returns the computed value; it is the zero value for failures.
func (r Result[T]) Value() T { return r.value }

// Failed reports whether r is a failure.
func (r Result[T]) Failed() bool { return r.failed }

// Message returns the failure message, if any.
func (r Result[T]) Message() (string, bool) {
	return r.message, r.failed && r.message != ""
}

// Chained is a command that first computes a Result and then presents it.
// Without a completion function a successful value is stringified and sent
// to the channel. A failure with a message is complained about and stops.
type Chained[T any] struct {
	cmd      *Command
	process  func(*Context) Result[T]
	complete func(*Context, Result[T])
}

// NewChained starts a typed-result command triggered by identifier.
func NewChained[T any](identifier string) *Chained[T] {
	ch := &Chained[T]{cmd: New(identifier)}
	ch.cmd.Do(ch.run)
	return ch
}

// Process sets the function computing the result. It is required.
func (ch *Chained[T]) Process(fn func(*Context) Result[T]) *Chained[T] {
	if fn == nil {
		ch.cmd.fail(invalidf("command %q: process function cannot be nil", ch.cmd.identifier))
		return ch
	}
	ch.process = fn
	return ch
}

// Completed sets the function presenting the result. It also sees failures
// that carry no message.
func (ch *Chained[T]) Completed(fn func(*Context, Result[T])) *Chained[T] {
	ch.complete = fn
	return ch
}

// Require adds a precondition.
func (ch *Chained[T]) Require(p Predicate, message string) *Chained[T] {
	ch.cmd.Require(p, message)
	return ch
}

// RequireParams adds required pair parameters.
func (ch *Chained[T]) RequireParams(names ...string) *Chained[T] {
	ch.cmd.RequireParams(names...)
	return ch
}

// Default sets a default pair value.
func (ch *Chained[T]) Default(name, value string) *Chained[T] {
	ch.cmd.Default(name, value)
	return ch
}

// Describe sets the one-line help text.
func (ch *Chained[T]) Describe(text string) *Chained[T] {
	ch.cmd.Describe(text)
	return ch
}

// Usage sets a usage example.
func (ch *Chained[T]) Usage(text string) *Chained[T] {
	ch.cmd.Usage(text)
	return ch
}

// Identifier returns the routing key.
func (ch *Chained[T]) Identifier() string { return ch.cmd.Identifier() }

// Description returns the one-line help text.
func (ch *Chained[T]) Description() string { return ch.cmd.Description() }

// Err reports builder misuse, including a missing process function.
func (ch *Chained[T]) Err() error {
	if ch == nil {
		return invalidf("nil command")
	}
	if err := ch.cmd.Err(); err != nil {
		return err
	}
	if ch.process == nil {
		return invalidf("command %q has no process function", ch.cmd.identifier)
	}
	return nil
}

// Invoke validates and, if valid, runs the pipeline.
func (ch *Chained[T]) Invoke(c *Context) Outcome {
	return ch.cmd.Invoke(c)
}

func (ch *Chained[T]) run(c *Context) error {
	if ch.process == nil {
		return nil
	}
	res := ch.process(c)
	if msg, ok := res.Message(); ok {
		c.Complain(msg)
		return nil
	}
	if ch.complete != nil {
		ch.complete(c, res)
		return nil
	}
	if !res.Failed() {
		c.Send(res.Value())
	}
	return nil
}
