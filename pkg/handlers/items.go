package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Item struct {
	ID          string  `json:"id" dynamodbav:"id"`
	Name        string  `json:"name" dynamodbav:"name"`
	Price       float64 `json:"price" dynamodbav:"price"`
	Description string  `json:"description,omitempty" dynamodbav:"description,omitempty"`
}

func (it Item) missingFields() []string {
	var missing []string
	if it.ID == "" {
		missing = append(missing, "id")
	}
	if it.Name == "" {
		missing = append(missing, "name")
	}
	if it.Price <= 0 {
		missing = append(missing, "price")
	}
	return missing
}

// ItemsHandler stores and retrieves items in a DynamoDB table through the
// API Gateway proxy contract.
type ItemsHandler struct {
	Table string
	DB    DynamoDBClient
	Log   *zap.Logger
}

func NewItemsHandler(table string, db DynamoDBClient, log *zap.Logger) *ItemsHandler {
	return &ItemsHandler{Table: table, DB: db, Log: log}
}

func (h *ItemsHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log := h.Log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", req.HTTPMethod),
		zap.String("path", req.Path),
	)

	switch req.HTTPMethod {
	case http.MethodPost:
		return h.create(ctx, req, log), nil
	case http.MethodGet:
		return h.get(ctx, req, log), nil
	default:
		log.Info("method not allowed")
		return methodNotAllowed(req.HTTPMethod), nil
	}
}

func (h *ItemsHandler) create(ctx context.Context, req events.APIGatewayProxyRequest, log *zap.Logger) events.APIGatewayProxyResponse {
	var item Item
	if err := json.Unmarshal([]byte(req.Body), &item); err != nil {
		log.Info("malformed request body", zap.Error(err))
		return message(http.StatusBadRequest, "request body must be valid JSON")
	}
	if missing := item.missingFields(); len(missing) > 0 {
		log.Info("validation failed", zap.Strings("fields", missing))
		return validationError(missing)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		log.Error("could not marshal item", zap.Error(err))
		return internalError()
	}

	_, err = h.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(h.Table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			log.Info("duplicate item", zap.String("id", item.ID))
			return message(http.StatusConflict, "item already exists")
		}
		log.Error("put item failed", zap.Error(err))
		return internalError()
	}

	log.Info("item stored", zap.String("id", item.ID))
	return respond(http.StatusCreated, item)
}

func (h *ItemsHandler) get(ctx context.Context, req events.APIGatewayProxyRequest, log *zap.Logger) events.APIGatewayProxyResponse {
	id := req.PathParameters["id"]
	if id == "" {
		log.Info("missing id path parameter")
		return validationError([]string{"id"})
	}

	out, err := h.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(h.Table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		log.Error("get item failed", zap.Error(err))
		return internalError()
	}
	if len(out.Item) == 0 {
		return message(http.StatusNotFound, "item not found")
	}

	var item Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		log.Error("could not unmarshal item", zap.Error(err))
		return internalError()
	}
	return respond(http.StatusOK, item)
}
