package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/tapstack/tapstack/pkg/handlers"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	queueURL := os.Getenv("QUEUE_URL")
	if queueURL == "" {
		log.Fatal("QUEUE_URL is not set")
	}

	cfg, err := handlers.LoadAWSConfig(context.Background())
	if err != nil {
		log.Fatal("could not load AWS config", zap.Error(err))
	}

	h := handlers.NewEnqueueHandler(queueURL, sqs.NewFromConfig(cfg), log)
	lambda.Start(h.Handle)
}
