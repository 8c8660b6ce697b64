// Package validate checks synthesized templates against the guardrails the
// archive's per-PR validator scripts used to hand-roll: required tags, Deny
// statements in IAM policies, resource counts, and property pins.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tapstack/tapstack/pkg/multierr"
	"github.com/tapstack/tapstack/pkg/template"
)

// Rule checks one template document. Check returns nil when the document
// complies, otherwise an error describing every offending resource.
type Rule interface {
	Name() string
	Check(doc *template.Document) error
}

// taggableTypes are the resource types the archive's environments stamp out
// that accept a Tags property.
var taggableTypes = map[string]struct{}{
	"AWS::EC2::VPC":             {},
	"AWS::EC2::Subnet":          {},
	"AWS::EC2::RouteTable":      {},
	"AWS::EC2::InternetGateway": {},
	"AWS::EC2::SecurityGroup":   {},
	"AWS::EC2::Instance":        {},
	"AWS::S3::Bucket":           {},
	"AWS::DynamoDB::Table":      {},
	"AWS::Lambda::Function":     {},
	"AWS::SQS::Queue":           {},
	"AWS::SNS::Topic":           {},
	"AWS::Logs::LogGroup":       {},
	"AWS::IAM::Role":            {},
}

// RequiredTags requires every taggable resource to carry all of Keys.
type RequiredTags struct {
	Keys []string
	// ExtraTypes extends the built-in set of taggable resource types.
	ExtraTypes []string
}

func (RequiredTags) Name() string { return "required-tags" }

func (r RequiredTags) Check(doc *template.Document) error {
	var errs multierr.Error

	extra := make(map[string]struct{}, len(r.ExtraTypes))
	for _, t := range r.ExtraTypes {
		extra[t] = struct{}{}
	}

	for _, id := range doc.SortedLogicalIDs() {
		res := doc.Resources[id]
		_, builtin := taggableTypes[res.Type]
		_, added := extra[res.Type]
		if !builtin && !added {
			continue
		}

		present := tagKeys(res)
		for _, key := range r.Keys {
			if _, ok := present[key]; !ok {
				errs.Append(fmt.Errorf("%s (%s) is missing required tag %q", id, res.Type, key))
			}
		}
	}
	return errs.ErrOrNil()
}

// tagKeys collects the tag keys of a resource, handling both the list shape
// ([{Key, Value}]) and the map shape some types use.
func tagKeys(res template.Resource) map[string]struct{} {
	keys := make(map[string]struct{})
	tags, ok := template.Property(res, "Tags")
	if !ok {
		return keys
	}
	switch tagged := tags.(type) {
	case []any:
		for _, entry := range tagged {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if key, ok := m["Key"].(string); ok {
				keys[key] = struct{}{}
			}
		}
	case map[string]any:
		for key := range tagged {
			keys[key] = struct{}{}
		}
	}
	return keys
}

// RequireDenyStatement requires at least one explicit Deny statement across
// the template's IAM policy documents, the guardrail shape the archive's
// validators looked for.
type RequireDenyStatement struct{}

func (RequireDenyStatement) Name() string { return "require-deny-statement" }

func (RequireDenyStatement) Check(doc *template.Document) error {
	policyDocs := 0
	for _, id := range doc.SortedLogicalIDs() {
		res := doc.Resources[id]
		for _, pdoc := range policyDocuments(res) {
			policyDocs++
			if hasDenyStatement(pdoc) {
				return nil
			}
		}
	}
	if policyDocs == 0 {
		return fmt.Errorf("template declares no IAM policy documents")
	}
	return fmt.Errorf("no IAM policy document contains a Deny statement")
}

func policyDocuments(res template.Resource) []any {
	var docs []any
	switch res.Type {
	case "AWS::IAM::Policy", "AWS::IAM::ManagedPolicy":
		if doc, ok := template.Property(res, "PolicyDocument"); ok {
			docs = append(docs, doc)
		}
	case "AWS::IAM::Role":
		if doc, ok := template.Property(res, "AssumeRolePolicyDocument"); ok {
			docs = append(docs, doc)
		}
		if policies, ok := template.Property(res, "Policies"); ok {
			if list, ok := policies.([]any); ok {
				for _, p := range list {
					if m, ok := p.(map[string]any); ok {
						if doc, ok := m["PolicyDocument"]; ok {
							docs = append(docs, doc)
						}
					}
				}
			}
		}
	}
	return docs
}

func hasDenyStatement(policyDoc any) bool {
	m, ok := policyDoc.(map[string]any)
	if !ok {
		return false
	}
	statements, ok := m["Statement"].([]any)
	if !ok {
		return false
	}
	for _, s := range statements {
		stmt, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if effect, ok := stmt["Effect"].(string); ok && effect == "Deny" {
			return true
		}
	}
	return false
}

// ResourceCount pins how many resources of Type a template may declare.
// Exact wins when set; otherwise Min/Max bound the count (zero means
// unbounded for Max).
type ResourceCount struct {
	Type  string
	Exact *int
	Min   int
	Max   int
}

func (ResourceCount) Name() string { return "resource-count" }

func (r ResourceCount) Check(doc *template.Document) error {
	n := doc.CountOfType(r.Type)
	if r.Exact != nil {
		if n != *r.Exact {
			return fmt.Errorf("expected exactly %d %s, found %d", *r.Exact, r.Type, n)
		}
		return nil
	}
	if n < r.Min {
		return fmt.Errorf("expected at least %d %s, found %d", r.Min, r.Type, n)
	}
	if r.Max > 0 && n > r.Max {
		return fmt.Errorf("expected at most %d %s, found %d", r.Max, r.Type, n)
	}
	return nil
}

// PropertyEquals requires every resource of Type to have Path equal to
// Expected, e.g. BillingMode == PAY_PER_REQUEST on every DynamoDB table.
type PropertyEquals struct {
	Type     string
	Path     string
	Expected any
}

func (PropertyEquals) Name() string { return "property-equals" }

func (r PropertyEquals) Check(doc *template.Document) error {
	var errs multierr.Error

	for _, res := range doc.ResourcesOfType(r.Type) {
		actual, ok := template.Property(res.Resource, r.Path)
		if !ok {
			errs.Append(fmt.Errorf("%s is missing property %s", res.LogicalID, r.Path))
			continue
		}
		if !looselyEqual(actual, r.Expected) {
			errs.Append(fmt.Errorf("%s property %s is %v, expected %v", res.LogicalID, r.Path, actual, r.Expected))
		}
	}
	return errs.ErrOrNil()
}

// looselyEqual tolerates the numeric type drift between JSON (float64) and
// YAML (int) decoding.
func looselyEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// NoPublicBuckets requires every S3 bucket to block all public access.
type NoPublicBuckets struct{}

func (NoPublicBuckets) Name() string { return "no-public-buckets" }

var publicAccessFlags = []string{
	"BlockPublicAcls",
	"BlockPublicPolicy",
	"IgnorePublicAcls",
	"RestrictPublicBuckets",
}

func (NoPublicBuckets) Check(doc *template.Document) error {
	var errs multierr.Error

	for _, res := range doc.ResourcesOfType("AWS::S3::Bucket") {
		var disabled []string
		for _, flag := range publicAccessFlags {
			v, ok := template.Property(res.Resource, "PublicAccessBlockConfiguration."+flag)
			if !ok || v != true {
				disabled = append(disabled, flag)
			}
		}
		if len(disabled) > 0 {
			errs.Append(fmt.Errorf("%s does not block public access (%s)", res.LogicalID, strings.Join(disabled, ", ")))
		}
	}
	return errs.ErrOrNil()
}
