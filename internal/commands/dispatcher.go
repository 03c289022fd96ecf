package commands

import (
	"fmt"
	"slices"
)

// Dispatcher holds descriptors in registration order and routes input to
// them.
//
// Identifiers are not unique: Dispatch invokes every descriptor whose
// identifier matches, in registration order, and does not stop at the first.
// Registering two descriptors under one identifier therefore chains them.
//
// Add may be called after traffic has started, but concurrent Add and
// Dispatch calls need external synchronization.
type Dispatcher struct {
	descs []Descriptor
}

// NewDispatcher returns a dispatcher holding descs.
func NewDispatcher(descs ...Descriptor) (*Dispatcher, error) {
	d := &Dispatcher{}
	if err := d.Add(descs...); err != nil {
		return nil, err
	}
	return d, nil
}

// Add appends descriptors. If any is misconfigured nothing is added.
func (d *Dispatcher) Add(descs ...Descriptor) error {
	for _, desc := range descs {
		if desc == nil {
			return invalidf("nil descriptor")
		}
		if err := desc.Err(); err != nil {
			return err
		}
	}
	d.descs = append(d.descs, descs...)
	return nil
}

// MustAdd is Add that panics on misconfiguration.
func (d *Dispatcher) MustAdd(descs ...Descriptor) *Dispatcher {
	if err := d.Add(descs...); err != nil {
		panic(err)
	}
	return d
}

// Descriptors returns the registered descriptors in registration order.
func (d *Dispatcher) Descriptors() []Descriptor { return slices.Clone(d.descs) }

// Lookup returns every descriptor registered under identifier.
func (d *Dispatcher) Lookup(identifier string) []Descriptor {
	var out []Descriptor
	for _, desc := range d.descs {
		if desc.Identifier() == identifier {
			out = append(out, desc)
		}
	}
	return out
}

// Dispatch invokes every matching descriptor. Each one gets its own copy of
// the arguments. A panicking handler is reported and does not stop the
// remaining descriptors.
func (d *Dispatcher) Dispatch(c *Context) []Outcome {
	var outcomes []Outcome
	id := c.Args().Identifier()
	for _, desc := range d.descs {
		if desc.Identifier() != id {
			continue
		}
		outcomes = append(outcomes, invokeSafely(desc, c.withArgs(c.Args().Clone())))
	}
	return outcomes
}

func invokeSafely(desc Descriptor, c *Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("command %s panicked: %v", desc.Identifier(), r)
			c.Complain("Something went wrong while running this command.")
			out = Outcome{Identifier: desc.Identifier(), Ran: true, Err: err}
		}
	}()
	return desc.Invoke(c)
}
