package envspec

import (
	"fmt"
	"net"
	"strings"

	"github.com/tapstack/tapstack/pkg/multierr"
)

var httpMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {}, "HEAD": {}, "OPTIONS": {}, "ANY": {},
}

// Validate reports every problem with the environment at once rather than
// stopping at the first, so a bad file can be fixed in one pass.
func (e *Environment) Validate() error {
	var errs multierr.Error

	if e.AppName == "" {
		errs.Append(fmt.Errorf("app name is required"))
	}
	if e.Stage == "" {
		errs.Append(fmt.Errorf("stage is required"))
	}
	if e.Region == "" {
		errs.Append(fmt.Errorf("region is required"))
	}

	errs.Append(e.Network.validate())
	errs.Append(e.Storage.validate())
	errs.Append(e.Compute.validate())
	errs.Append(e.Monitoring.validate())
	errs.Append(e.Api.validate(e.FunctionNames()))

	return errs.ErrOrNil()
}

func (n Network) validate() error {
	var errs multierr.Error

	if n.CidrBlock == "" {
		errs.Append(fmt.Errorf("network: cidr_block is required"))
		return errs.ErrOrNil()
	}
	_, ipnet, err := net.ParseCIDR(n.CidrBlock)
	if err != nil {
		errs.Append(fmt.Errorf("network: invalid cidr_block %q: %w", n.CidrBlock, err))
		return errs.ErrOrNil()
	}
	prefix, _ := ipnet.Mask.Size()
	if n.SubnetBits <= prefix {
		errs.Append(fmt.Errorf("network: subnet_bits %d must be larger than the vpc prefix /%d", n.SubnetBits, prefix))
	}
	if n.SubnetBits > 28 {
		errs.Append(fmt.Errorf("network: subnet_bits %d exceeds the smallest usable aws subnet (/28)", n.SubnetBits))
	}
	if n.MaxAZs < 1 {
		errs.Append(fmt.Errorf("network: max_azs must be at least 1"))
	}
	for _, port := range n.PublicIngressPorts {
		if port < 1 || port > 65535 {
			errs.Append(fmt.Errorf("network: ingress port %d out of range", port))
		}
	}
	return errs.ErrOrNil()
}

func (s Storage) validate() error {
	var errs multierr.Error

	for _, b := range s.Buckets {
		if b.Name == "" {
			errs.Append(fmt.Errorf("storage: bucket with empty name"))
		}
		if b.ExpirationDays < 0 {
			errs.Append(fmt.Errorf("storage: bucket %q has negative expiration_days", b.Name))
		}
	}

	for _, t := range s.Tables {
		if t.Name == "" {
			errs.Append(fmt.Errorf("storage: table with empty name"))
			continue
		}
		if t.HashKey == "" {
			errs.Append(fmt.Errorf("storage: table %q is missing hash_key", t.Name))
		}
		switch t.BillingMode {
		case BillingPayPerRequest:
			if t.ReadCapacity != 0 || t.WriteCapacity != 0 {
				errs.Append(fmt.Errorf("storage: table %q sets capacity but uses %s billing", t.Name, BillingPayPerRequest))
			}
		case BillingProvisioned:
			if t.ReadCapacity < 1 || t.WriteCapacity < 1 {
				errs.Append(fmt.Errorf("storage: table %q uses %s billing but is missing read/write capacity", t.Name, BillingProvisioned))
			}
		default:
			errs.Append(fmt.Errorf("storage: table %q has unknown billing_mode %q", t.Name, t.BillingMode))
		}
		for _, gsi := range t.GlobalIndexes {
			if gsi.Name == "" || gsi.HashKey == "" {
				errs.Append(fmt.Errorf("storage: table %q has a global index missing name or hash_key", t.Name))
			}
		}
	}

	if s.Queue != nil && s.Queue.Name == "" {
		errs.Append(fmt.Errorf("storage: queue with empty name"))
	}
	return errs.ErrOrNil()
}

func (c Compute) validate() error {
	var errs multierr.Error

	seen := make(map[string]struct{}, len(c.Functions))
	for _, fn := range c.Functions {
		if fn.Name == "" {
			errs.Append(fmt.Errorf("compute: function with empty name"))
			continue
		}
		if _, ok := seen[fn.Name]; ok {
			errs.Append(fmt.Errorf("compute: duplicate function %q", fn.Name))
		}
		seen[fn.Name] = struct{}{}
		if fn.CodePath == "" {
			errs.Append(fmt.Errorf("compute: function %q is missing code_path", fn.Name))
		}
		if fn.MemoryMB < 128 || fn.MemoryMB > 10240 {
			errs.Append(fmt.Errorf("compute: function %q memory_mb %d out of the lambda range [128, 10240]", fn.Name, fn.MemoryMB))
		}
		if fn.TimeoutSec < 1 || fn.TimeoutSec > 900 {
			errs.Append(fmt.Errorf("compute: function %q timeout_sec %d out of the lambda range [1, 900]", fn.Name, fn.TimeoutSec))
		}
	}
	return errs.ErrOrNil()
}

func (m Monitoring) validate() error {
	var errs multierr.Error

	if m.LogRetentionDays < 0 {
		errs.Append(fmt.Errorf("monitoring: log_retention_days %d must not be negative", m.LogRetentionDays))
	}
	if m.ErrorThreshold < 0 {
		errs.Append(fmt.Errorf("monitoring: error_threshold %g must not be negative", m.ErrorThreshold))
	}
	return errs.ErrOrNil()
}

func (a Api) validate(functionNames []string) error {
	var errs multierr.Error

	known := make(map[string]struct{}, len(functionNames))
	for _, name := range functionNames {
		known[name] = struct{}{}
	}

	for _, r := range a.Routes {
		if _, ok := httpMethods[strings.ToUpper(r.Method)]; !ok {
			errs.Append(fmt.Errorf("api: route %s %s has unknown method", r.Method, r.Path))
		}
		if !strings.HasPrefix(r.Path, "/") {
			errs.Append(fmt.Errorf("api: route path %q must start with /", r.Path))
		}
		if _, ok := known[r.Function]; !ok {
			errs.Append(fmt.Errorf("api: route %s %s references undefined function %q", r.Method, r.Path, r.Function))
		}
	}
	return errs.ErrOrNil()
}
