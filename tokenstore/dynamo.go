// file: tokenstore/dynamo.go

package tokenstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps tokens as items keyed PK=TOKEN#<namespace>, SK=<key>.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	namespace string
}

func NewDynamoStore(client DynamoAPI, tableName, namespace string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, namespace: namespace}
}

func (s *DynamoStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("TOKEN#%s", s.namespace)},
		"SK": &types.AttributeValueMemberS{Value: key},
	}
}

func (s *DynamoStore) Get(ctx context.Context, key string) (string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	if result.Item == nil {
		return "", ErrNotFound
	}

	value, ok := result.Item["Value"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("token item %q has no string value", key)
	}
	return value.Value, nil
}

func (s *DynamoStore) Set(ctx context.Context, key, value string) error {
	item := s.itemKey(key)
	item["Value"] = &types.AttributeValueMemberS{Value: value}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *DynamoStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
