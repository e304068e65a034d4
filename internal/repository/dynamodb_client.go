package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkPrefixKV = "KV#"
	// DynamoDB caps a transaction at 100 items.
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoClient.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoClient stores each key as one item of a DynamoDB table keyed by PK.
type DynamoClient struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoClient creates a key-value store backed by the given table.
func NewDynamoClient(api dynamodbAPI, tableName string) (*DynamoClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoClient{api: api, tableName: tableName, now: time.Now}, nil
}

// kvPK returns the partition key for a store key.
func kvPK(key string) string {
	return pkPrefixKV + key
}

func (c *DynamoClient) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: kvPK(key)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: Get %q: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	value, err := strAttr(out.Item, "value")
	if err != nil {
		return "", false, fmt.Errorf("repository: Get %q decode: %w", key, err)
	}
	return value, true, nil
}

// MultiGet issues one consistent read per key; the key sets used by the
// client are tiny.
func (c *DynamoClient) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		value, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

// MultiSet writes all items in one transaction.
func (c *DynamoClient) MultiSet(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if len(values) > maxTransactItems {
		return fmt.Errorf("repository: MultiSet: %d items exceeds transaction limit", len(values))
	}
	updatedAt := strconv.FormatInt(c.now().UTC().UnixMilli(), 10)
	items := make([]types.TransactWriteItem, 0, len(values))
	for _, key := range sortedKeys(values) {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(c.tableName),
				Item:      kvItem(key, values[key], updatedAt),
			},
		})
	}
	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: MultiSet: %w", err)
	}
	return nil
}

// MultiRemove deletes all items in one transaction. Repeated keys are
// collapsed; a transaction may touch each item only once.
func (c *DynamoClient) MultiRemove(ctx context.Context, keys ...string) error {
	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > maxTransactItems {
		return fmt.Errorf("repository: MultiRemove: %d items exceeds transaction limit", len(keys))
	}
	items := make([]types.TransactWriteItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(c.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: kvPK(key)},
				},
			},
		})
	}
	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: MultiRemove: %w", err)
	}
	return nil
}

func (c *DynamoClient) Close() error {
	return nil
}

func kvItem(key, value, updatedAt string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: kvPK(key)},
		"key":       &types.AttributeValueMemberS{Value: key},
		"value":     &types.AttributeValueMemberS{Value: value},
		"updatedAt": &types.AttributeValueMemberN{Value: updatedAt},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
