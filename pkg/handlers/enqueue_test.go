package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSQS struct {
	sent []*sqs.SendMessageInput
	err  error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func postEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/events",
		Body:       body,
	}
}

func TestEnqueueHandler(t *testing.T) {
	assert := assert.New(t)
	queue := &fakeSQS{}
	h := NewEnqueueHandler("https://sqs.us-east-2.amazonaws.com/123/events", queue, zap.NewNop())

	resp, err := h.Handle(context.Background(), postEvent(`{"source": "api", "kind": "created", "detail": {"id": "1"}}`))
	require.NoError(t, err)
	assert.Equal(http.StatusAccepted, resp.StatusCode)

	var body struct {
		MessageID string `json:"message_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal("msg-1", body.MessageID)

	require.Len(t, queue.sent, 1)
	in := queue.sent[0]
	assert.Equal("https://sqs.us-east-2.amazonaws.com/123/events", aws.ToString(in.QueueUrl))
	assert.Equal("api", aws.ToString(in.MessageAttributes["source"].StringValue))
	assert.Equal("created", aws.ToString(in.MessageAttributes["kind"].StringValue))
}

func TestEnqueueHandler_Validation(t *testing.T) {
	tests := []struct {
		name       string
		request    events.APIGatewayProxyRequest
		wantStatus int
	}{
		{name: "wrong method", request: events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/events"}, wantStatus: http.StatusMethodNotAllowed},
		{name: "malformed body", request: postEvent(`{`), wantStatus: http.StatusBadRequest},
		{name: "missing fields", request: postEvent(`{"detail": {}}`), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			queue := &fakeSQS{}
			h := NewEnqueueHandler("https://example/queue", queue, zap.NewNop())

			resp, err := h.Handle(context.Background(), tt.request)
			require.NoError(t, err)
			assert.Equal(tt.wantStatus, resp.StatusCode)
			assert.Empty(queue.sent)
		})
	}
}

func TestEnqueueHandler_GatewayEventDispatch(t *testing.T) {
	assert := assert.New(t)

	raw := `{
	  "httpMethod": "POST",
	  "path": "/events",
	  "body": "{\"source\": \"api\", \"kind\": \"created\"}"
	}`
	var req events.APIGatewayProxyRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	queue := &fakeSQS{}
	h := NewEnqueueHandler("https://example/queue", queue, zap.NewNop())
	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(http.StatusAccepted, resp.StatusCode)
	assert.Len(queue.sent, 1)
}

func TestEnqueueHandler_SendFailure(t *testing.T) {
	assert := assert.New(t)
	h := NewEnqueueHandler("https://example/queue", &fakeSQS{err: errors.New("throttled")}, zap.NewNop())

	resp, err := h.Handle(context.Background(), postEvent(`{"source": "api", "kind": "created"}`))
	require.NoError(t, err)
	assert.Equal(http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(`{"message":"internal error"}`, resp.Body)
}
