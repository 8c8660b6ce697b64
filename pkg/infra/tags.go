package infra

import (
	"sort"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// resourceTags merges the environment's base tags with a Name tag for one
// resource. The resource name wins over a Name key in the base set.
func resourceTags(base map[string]string, name string) pulumi.StringMap {
	tags := pulumi.StringMap{}
	keys := make([]string, 0, len(base))
	for k := range base {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags[k] = pulumi.String(base[k])
	}
	tags["Name"] = pulumi.String(name)
	return tags
}
