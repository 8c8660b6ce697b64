package template

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LogicalResource pairs a resource with its logical ID for reporting.
type LogicalResource struct {
	LogicalID string
	Resource
}

// ResourcesOfType returns resources of the given CloudFormation type sorted
// by logical ID.
func (d *Document) ResourcesOfType(cfnType string) []LogicalResource {
	var out []LogicalResource
	for id, r := range d.Resources {
		if r.Type == cfnType {
			out = append(out, LogicalResource{LogicalID: id, Resource: r})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalID < out[j].LogicalID })
	return out
}

// CountOfType counts resources of the given CloudFormation type.
func (d *Document) CountOfType(cfnType string) int {
	n := 0
	for _, r := range d.Resources {
		if r.Type == cfnType {
			n++
		}
	}
	return n
}

// SortedLogicalIDs returns every logical ID in the template, sorted.
func (d *Document) SortedLogicalIDs() []string {
	ids := make([]string, 0, len(d.Resources))
	for id := range d.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Property looks up a dotted property path on a resource, with list indices
// written as name[i], e.g. "PolicyDocument.Statement[0].Effect".
func Property(r Resource, path string) (any, bool) {
	return lookup(any(r.Properties), path)
}

func lookup(root any, path string) (any, bool) {
	current := root
	for _, part := range strings.Split(path, ".") {
		key, indices, err := splitIndices(part)
		if err != nil {
			return nil, false
		}
		if key != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = m[key]
			if !ok {
				return nil, false
			}
		}
		for _, idx := range indices {
			list, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(list) {
				return nil, false
			}
			current = list[idx]
		}
	}
	return current, true
}

// splitIndices splits "name[1][2]" into "name" and [1, 2].
func splitIndices(part string) (string, []int, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		return part, nil, nil
	}
	key := part[:open]
	var indices []int
	rest := part[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed index in path segment %q", part)
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return "", nil, fmt.Errorf("unterminated index in path segment %q", part)
		}
		idx, err := strconv.Atoi(rest[1:close])
		if err != nil {
			return "", nil, fmt.Errorf("non-numeric index in path segment %q", part)
		}
		indices = append(indices, idx)
		rest = rest[close+1:]
	}
	return key, indices, nil
}
