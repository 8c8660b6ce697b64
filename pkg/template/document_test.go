package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonTemplate = `{
  "AWSTemplateFormatVersion": "2010-09-09",
  "Resources": {
    "ItemsTable": {
      "Type": "AWS::DynamoDB::Table",
      "Properties": {
        "BillingMode": "PAY_PER_REQUEST",
        "Tags": [{"Key": "app", "Value": "tap"}]
      }
    },
    "AssetsBucket": {
      "Type": "AWS::S3::Bucket",
      "DependsOn": "ItemsTable",
      "Properties": {
        "VersioningConfiguration": {"Status": "Enabled"}
      }
    },
    "WorkerRole": {
      "Type": "AWS::IAM::Role",
      "DependsOn": ["ItemsTable", "AssetsBucket"],
      "Properties": {
        "AssumeRolePolicyDocument": {
          "Statement": [
            {"Effect": "Allow", "Principal": {"Service": "lambda.amazonaws.com"}}
          ]
        }
      }
    }
  },
  "Outputs": {
    "TableName": {"Value": {"Ref": "ItemsTable"}, "Export": {"Name": "tap-table"}}
  }
}`

const yamlTemplate = `AWSTemplateFormatVersion: "2010-09-09"
Resources:
  QueueA:
    Type: AWS::SQS::Queue
    Properties:
      VisibilityTimeout: 30
  QueueB:
    Type: AWS::SQS::Queue
    DependsOn: QueueA
    Properties:
      VisibilityTimeout: 60
`

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "json", file: "stack.json", content: jsonTemplate},
		{name: "yaml", file: "stack.yaml", content: yamlTemplate},
		{name: "unsupported extension", file: "stack.txt", content: jsonTemplate, wantErr: "unsupported template extension"},
		{name: "no resources", file: "stack.yaml", content: "Description: empty\n", wantErr: "declares no resources"},
		{name: "malformed", file: "stack.json", content: "{", wantErr: "could not parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			doc, err := Read(writeTemplate(t, tt.file, tt.content))
			if tt.wantErr != "" {
				assert.ErrorContains(err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(doc.Resources)
			assert.NotEmpty(doc.Path)
		})
	}
}

func TestDependsOnSpellings(t *testing.T) {
	assert := assert.New(t)

	doc, err := Read(writeTemplate(t, "stack.json", jsonTemplate))
	require.NoError(t, err)

	assert.Equal(StringList{"ItemsTable"}, doc.Resources["AssetsBucket"].DependsOn)
	assert.Equal(StringList{"ItemsTable", "AssetsBucket"}, doc.Resources["WorkerRole"].DependsOn)

	ydoc, err := Read(writeTemplate(t, "stack.yaml", yamlTemplate))
	require.NoError(t, err)
	assert.Equal(StringList{"QueueA"}, ydoc.Resources["QueueB"].DependsOn)
}

func TestQueries(t *testing.T) {
	assert := assert.New(t)

	doc, err := Read(writeTemplate(t, "stack.json", jsonTemplate))
	require.NoError(t, err)

	assert.Equal(1, doc.CountOfType("AWS::DynamoDB::Table"))
	assert.Equal(0, doc.CountOfType("AWS::EC2::VPC"))

	tables := doc.ResourcesOfType("AWS::DynamoDB::Table")
	require.Len(t, tables, 1)
	assert.Equal("ItemsTable", tables[0].LogicalID)

	assert.Equal([]string{"AssetsBucket", "ItemsTable", "WorkerRole"}, doc.SortedLogicalIDs())
}

func TestProperty(t *testing.T) {
	assert := assert.New(t)

	doc, err := Read(writeTemplate(t, "stack.json", jsonTemplate))
	require.NoError(t, err)

	role := doc.Resources["WorkerRole"]

	effect, ok := Property(role, "AssumeRolePolicyDocument.Statement[0].Effect")
	assert.True(ok)
	assert.Equal("Allow", effect)

	service, ok := Property(role, "AssumeRolePolicyDocument.Statement[0].Principal.Service")
	assert.True(ok)
	assert.Equal("lambda.amazonaws.com", service)

	_, ok = Property(role, "AssumeRolePolicyDocument.Statement[4].Effect")
	assert.False(ok)

	_, ok = Property(role, "NoSuchProperty")
	assert.False(ok)

	table := doc.Resources["ItemsTable"]
	mode, ok := Property(table, "BillingMode")
	assert.True(ok)
	assert.Equal("PAY_PER_REQUEST", mode)

	key, ok := Property(table, "Tags[0].Key")
	assert.True(ok)
	assert.Equal("app", key)
}

func TestDecodeProperties(t *testing.T) {
	assert := assert.New(t)

	doc, err := Read(writeTemplate(t, "stack.json", jsonTemplate))
	require.NoError(t, err)

	var view struct {
		BillingMode string
		Tags        []struct {
			Key   string
			Value string
		}
	}
	require.NoError(t, DecodeProperties(doc.Resources["ItemsTable"], &view))
	assert.Equal("PAY_PER_REQUEST", view.BillingMode)
	require.Len(t, view.Tags, 1)
	assert.Equal("app", view.Tags[0].Key)
}
