package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapstack/tapstack/pkg/template"
)

func docFromJSON(t *testing.T, raw string) *template.Document {
	t.Helper()
	doc := &template.Document{}
	require.NoError(t, json.Unmarshal([]byte(raw), doc))
	return doc
}

func TestRequiredTags(t *testing.T) {
	doc := docFromJSON(t, `{
	  "Resources": {
	    "Vpc": {
	      "Type": "AWS::EC2::VPC",
	      "Properties": {"Tags": [{"Key": "app", "Value": "tap"}, {"Key": "stage", "Value": "dev"}]}
	    },
	    "Table": {
	      "Type": "AWS::DynamoDB::Table",
	      "Properties": {"Tags": [{"Key": "app", "Value": "tap"}]}
	    },
	    "UntaggableWait": {
	      "Type": "AWS::CloudFormation::WaitConditionHandle",
	      "Properties": {}
	    }
	  }
	}`)

	tests := []struct {
		name    string
		rule    RequiredTags
		wantErr []string
	}{
		{
			name: "all present",
			rule: RequiredTags{Keys: []string{"app"}},
		},
		{
			name:    "missing on one resource",
			rule:    RequiredTags{Keys: []string{"app", "stage"}},
			wantErr: []string{`Table (AWS::DynamoDB::Table) is missing required tag "stage"`},
		},
		{
			name: "untaggable types are skipped",
			rule: RequiredTags{Keys: []string{"app", "stage", "owner"}},
			wantErr: []string{
				`Table (AWS::DynamoDB::Table) is missing required tag "stage"`,
				`missing required tag "owner"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			err := tt.rule.Check(doc)
			if len(tt.wantErr) == 0 {
				assert.NoError(err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(err.Error(), want)
			}
			assert.NotContains(err.Error(), "UntaggableWait")
		})
	}
}

func TestRequireDenyStatement(t *testing.T) {
	assert := assert.New(t)

	withDeny := docFromJSON(t, `{
	  "Resources": {
	    "Guardrail": {
	      "Type": "AWS::IAM::ManagedPolicy",
	      "Properties": {
	        "PolicyDocument": {
	          "Statement": [
	            {"Effect": "Allow", "Action": "s3:GetObject"},
	            {"Effect": "Deny", "Action": "s3:DeleteBucket"}
	          ]
	        }
	      }
	    }
	  }
	}`)
	assert.NoError(RequireDenyStatement{}.Check(withDeny))

	allowOnly := docFromJSON(t, `{
	  "Resources": {
	    "Role": {
	      "Type": "AWS::IAM::Role",
	      "Properties": {
	        "Policies": [
	          {"PolicyName": "rw", "PolicyDocument": {"Statement": [{"Effect": "Allow", "Action": "dynamodb:PutItem"}]}}
	        ]
	      }
	    }
	  }
	}`)
	assert.ErrorContains(RequireDenyStatement{}.Check(allowOnly), "no IAM policy document contains a Deny")

	noPolicies := docFromJSON(t, `{
	  "Resources": {"Bucket": {"Type": "AWS::S3::Bucket", "Properties": {}}}
	}`)
	assert.ErrorContains(RequireDenyStatement{}.Check(noPolicies), "declares no IAM policy documents")
}

func TestResourceCount(t *testing.T) {
	doc := docFromJSON(t, `{
	  "Resources": {
	    "A": {"Type": "AWS::EC2::Subnet", "Properties": {}},
	    "B": {"Type": "AWS::EC2::Subnet", "Properties": {}},
	    "C": {"Type": "AWS::EC2::Subnet", "Properties": {}}
	  }
	}`)

	exactly := func(n int) *int { return &n }

	tests := []struct {
		name    string
		rule    ResourceCount
		wantErr string
	}{
		{name: "exact match", rule: ResourceCount{Type: "AWS::EC2::Subnet", Exact: exactly(3)}},
		{name: "exact mismatch", rule: ResourceCount{Type: "AWS::EC2::Subnet", Exact: exactly(6)}, wantErr: "expected exactly 6"},
		{name: "within bounds", rule: ResourceCount{Type: "AWS::EC2::Subnet", Min: 1, Max: 3}},
		{name: "below min", rule: ResourceCount{Type: "AWS::EC2::VPC", Min: 1}, wantErr: "expected at least 1"},
		{name: "above max", rule: ResourceCount{Type: "AWS::EC2::Subnet", Max: 2}, wantErr: "expected at most 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Check(doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestPropertyEquals(t *testing.T) {
	assert := assert.New(t)

	doc := docFromJSON(t, `{
	  "Resources": {
	    "Items": {"Type": "AWS::DynamoDB::Table", "Properties": {"BillingMode": "PAY_PER_REQUEST"}},
	    "Orders": {"Type": "AWS::DynamoDB::Table", "Properties": {"BillingMode": "PROVISIONED"}},
	    "Fn": {"Type": "AWS::Lambda::Function", "Properties": {"MemorySize": 256}}
	  }
	}`)

	rule := PropertyEquals{Type: "AWS::DynamoDB::Table", Path: "BillingMode", Expected: "PAY_PER_REQUEST"}
	err := rule.Check(doc)
	require.Error(t, err)
	assert.Contains(err.Error(), "Orders property BillingMode is PROVISIONED")
	assert.NotContains(err.Error(), "Items")

	// Numeric drift between JSON float64 and a Go int expectation.
	memory := PropertyEquals{Type: "AWS::Lambda::Function", Path: "MemorySize", Expected: 256}
	assert.NoError(memory.Check(doc))

	missing := PropertyEquals{Type: "AWS::Lambda::Function", Path: "Timeout", Expected: 30}
	assert.ErrorContains(missing.Check(doc), "Fn is missing property Timeout")
}

func TestNoPublicBuckets(t *testing.T) {
	assert := assert.New(t)

	doc := docFromJSON(t, `{
	  "Resources": {
	    "Safe": {
	      "Type": "AWS::S3::Bucket",
	      "Properties": {
	        "PublicAccessBlockConfiguration": {
	          "BlockPublicAcls": true,
	          "BlockPublicPolicy": true,
	          "IgnorePublicAcls": true,
	          "RestrictPublicBuckets": true
	        }
	      }
	    },
	    "Open": {"Type": "AWS::S3::Bucket", "Properties": {}}
	  }
	}`)

	err := NoPublicBuckets{}.Check(doc)
	require.Error(t, err)
	assert.Contains(err.Error(), "Open does not block public access")
	assert.NotContains(err.Error(), "Safe does not")
}
