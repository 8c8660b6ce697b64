package stackgraph

import (
	"fmt"

	"github.com/tapstack/tapstack/pkg/multierr"
)

// Outputs records the exported values of already-deployed stacks.
type Outputs map[OutputKey]any

// Record stores one stack output, overwriting any previous value.
func (o Outputs) Record(stack, name string, value any) {
	o[OutputKey{Stack: stack, Name: name}] = value
}

// Wire resolves every binding against the recorded outputs and returns the
// input map of each consumer stack. All missing outputs are reported, not
// just the first.
func (p *Plan) Wire(outputs Outputs) (map[string]map[string]any, error) {
	var errs multierr.Error

	inputs := make(map[string]map[string]any, len(p.stacks))
	for stack := range p.stacks {
		inputs[stack] = make(map[string]any)
	}

	for _, b := range p.bindings {
		value, ok := outputs[b.Source]
		if !ok {
			errs.Append(fmt.Errorf("input %s.%s: stack %q never exported output %q", b.Consumer, b.Input, b.Source.Stack, b.Source.Name))
			continue
		}
		inputs[b.Consumer][b.Input] = value
	}

	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}
	return inputs, nil
}
