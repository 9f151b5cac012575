package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoConfig configures the wide-column backend.
type DynamoConfig struct {
	TableName string
	Region    string
	Endpoint  string // for DynamoDB-compatible services (local stacks, etc.)
	// AccessKeyID for authentication. Prefer IAM roles or environment
	// variables over setting these directly.
	AccessKeyID     string
	SecretAccessKey string
}

// DynamoHandle wraps the wide-column backend used for session data
// and activity history.
type DynamoHandle struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoHandle wraps an existing client.
func NewDynamoHandle(client *dynamodb.Client, table string) *DynamoHandle {
	return &DynamoHandle{client: client, table: table}
}

// OpenDynamo creates a client and verifies the table exists.
func OpenDynamo(ctx context.Context, cfg DynamoConfig) (*DynamoHandle, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	h := &DynamoHandle{
		client: dynamodb.NewFromConfig(awsCfg, clientOpts...),
		table:  cfg.TableName,
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Probe(probeCtx); err != nil {
		return nil, err
	}

	return h, nil
}

type sessionItem struct {
	ID        string `dynamodbav:"id"`
	Timestamp int64  `dynamodbav:"timestamp"`
	Data      string `dynamodbav:"data"`
	TTL       int64  `dynamodbav:"ttl"`
}

// Activity is one entry of a user's activity history.
type Activity struct {
	ID           string `dynamodbav:"id" json:"id"`
	UserID       string `dynamodbav:"userId" json:"user_id"`
	ActivityType string `dynamodbav:"activityType" json:"activity_type"`
	Description  string `dynamodbav:"description" json:"description"`
	Timestamp    int64  `dynamodbav:"timestamp" json:"timestamp"`
}

// StoreSession writes session data with a TTL. The expiry is stored as
// an absolute epoch timestamp in the table's ttl attribute; the backend
// enforces it.
func (h *DynamoHandle) StoreSession(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	item, err := attributevalue.MarshalMap(sessionItem{
		ID:        sessionID,
		Timestamp: now.Unix(),
		Data:      string(data),
		TTL:       now.Add(ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session item: %w", err)
	}

	_, err = h.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(h.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", sessionID, err)
	}
	return nil
}

// GetSession reads session data by session ID. Returns ErrNotFound if absent.
func (h *DynamoHandle) GetSession(ctx context.Context, sessionID string) ([]byte, error) {
	resp, err := h.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(h.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	if resp.Item == nil {
		return nil, ErrNotFound
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session item: %w", err)
	}
	return []byte(item.Data), nil
}

// GetUserActivity queries the user-index GSI, newest first.
func (h *DynamoHandle) GetUserActivity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 10
	}

	resp, err := h.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(h.table),
		IndexName:              aws.String("user-index"),
		KeyConditionExpression: aws.String("userId = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user activity: %w", err)
	}

	var activities []Activity
	if err := attributevalue.UnmarshalListOfMaps(resp.Items, &activities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity items: %w", err)
	}
	return activities, nil
}

// Probe executes a metadata describe call against the table.
func (h *DynamoHandle) Probe(ctx context.Context) error {
	_, err := h.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(h.table),
	})
	if err != nil {
		return fmt.Errorf("dynamodb probe failed: %w", err)
	}
	return nil
}

// Close releases the handle. The SDK client holds no persistent
// connections that need explicit teardown.
func (h *DynamoHandle) Close() error {
	return nil
}
