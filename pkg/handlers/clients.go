// Package handlers implements the environments' Lambda entry points: parse
// the API Gateway proxy event, validate the JSON body, make one SDK call, and
// return the fixed {statusCode, headers, body} shape.
package handlers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Narrow client interfaces keep the handlers testable with in-memory fakes.
type (
	DynamoDBClient interface {
		PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
		GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	}

	SQSClient interface {
		SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	}
)

var (
	_ DynamoDBClient = (*dynamodb.Client)(nil)
	_ SQSClient      = (*sqs.Client)(nil)
)

// LoadAWSConfig builds the SDK config used at cold start. Retries stay with
// the SDK's standard retryer, only the attempt ceiling is raised.
func LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(10))
}
