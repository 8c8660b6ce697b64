package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Event struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Detail any    `json:"detail,omitempty"`
}

func (e Event) missingFields() []string {
	var missing []string
	if e.Source == "" {
		missing = append(missing, "source")
	}
	if e.Kind == "" {
		missing = append(missing, "kind")
	}
	return missing
}

// EnqueueHandler accepts events over POST and forwards them to SQS.
type EnqueueHandler struct {
	QueueURL string
	SQS      SQSClient
	Log      *zap.Logger
}

func NewEnqueueHandler(queueURL string, client SQSClient, log *zap.Logger) *EnqueueHandler {
	return &EnqueueHandler{QueueURL: queueURL, SQS: client, Log: log}
}

func (h *EnqueueHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log := h.Log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", req.HTTPMethod),
		zap.String("path", req.Path),
	)

	if req.HTTPMethod != http.MethodPost {
		log.Info("method not allowed")
		return methodNotAllowed(req.HTTPMethod), nil
	}

	var event Event
	if err := json.Unmarshal([]byte(req.Body), &event); err != nil {
		log.Info("malformed request body", zap.Error(err))
		return message(http.StatusBadRequest, "request body must be valid JSON"), nil
	}
	if missing := event.missingFields(); len(missing) > 0 {
		log.Info("validation failed", zap.Strings("fields", missing))
		return validationError(missing), nil
	}

	out, err := h.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(h.QueueURL),
		MessageBody: aws.String(req.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"source": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Source),
			},
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Kind),
			},
		},
	})
	if err != nil {
		log.Error("send message failed", zap.Error(err))
		return internalError(), nil
	}

	log.Info("event enqueued", zap.String("message_id", aws.ToString(out.MessageId)))
	return respond(http.StatusAccepted, map[string]string{
		"message_id": aws.ToString(out.MessageId),
	}), nil
}
