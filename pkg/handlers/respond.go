package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

var defaultHeaders = map[string]string{
	"Content-Type": "application/json",
}

func respond(status int, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		// The bodies we marshal are maps and small structs; failure here is a
		// programming error, answered like any other internal one.
		return internalError()
	}
	headers := make(map[string]string, len(defaultHeaders))
	for k, v := range defaultHeaders {
		headers[k] = v
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(buf),
	}
}

func message(status int, msg string) events.APIGatewayProxyResponse {
	return respond(status, map[string]string{"message": msg})
}

// internalError is the fixed 500 shape. Details go to the log, never to the
// caller.
func internalError() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusInternalServerError,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"message":"internal error"}`,
	}
}

func validationError(fields []string) events.APIGatewayProxyResponse {
	return respond(http.StatusBadRequest, map[string]any{
		"message": "validation failed",
		"fields":  fields,
	})
}

func methodNotAllowed(method string) events.APIGatewayProxyResponse {
	return message(http.StatusMethodNotAllowed, "method "+method+" not allowed")
}
