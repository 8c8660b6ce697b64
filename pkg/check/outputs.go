// Package check asserts that a deployed environment matches its definition:
// read the stack's exported outputs, then describe each resource and compare.
package check

import (
	"encoding/json"
	"fmt"
	"os"
)

// StackOutputs is the decoded form of `pulumi stack output --json`.
type StackOutputs map[string]any

func ReadOutputs(fpath string) (StackOutputs, error) {
	buf, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	var out StackOutputs
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("could not parse stack outputs %s: %w", fpath, err)
	}
	return out, nil
}

func (o StackOutputs) String(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("stack output %q not found", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("stack output %q is not a string", key)
	}
	return s, nil
}

func (o StackOutputs) Strings(key string) ([]string, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("stack output %q not found", key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("stack output %q is not a list", key)
	}
	out := make([]string, 0, len(list))
	for i, entry := range list {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("stack output %q[%d] is not a string", key, i)
		}
		out = append(out, s)
	}
	return out, nil
}

// StringMap reads outputs like TableNames that map a logical name to the
// deployed physical name.
func (o StackOutputs) StringMap(key string) (map[string]string, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("stack output %q not found", key)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stack output %q is not a map", key)
	}
	out := make(map[string]string, len(m))
	for name, entry := range m {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("stack output %q[%s] is not a string", key, name)
		}
		out[name] = s
	}
	return out, nil
}
