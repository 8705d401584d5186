package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// dynamoAPI is the subset of the DynamoDB client the store uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// snapshotItem is the single-table item layout.
type snapshotItem struct {
	PK        string    `dynamodbav:"pk"`
	Payload   string    `dynamodbav:"payload"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// DynamoStore implements Store with one DynamoDB item per storage key.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	key       string
}

// NewDynamoStore loads the default AWS config for region and returns a
// store writing to tableName.
func NewDynamoStore(ctx context.Context, region, tableName, key string) (*DynamoStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newDynamoStore(dynamodb.NewFromConfig(cfg), tableName, key), nil
}

func newDynamoStore(client dynamoAPI, tableName, key string) *DynamoStore {
	if key == "" {
		key = DefaultKey
	}
	return &DynamoStore{client: client, tableName: tableName, key: key}
}

func (s *DynamoStore) Load(ctx context.Context) (*model.Snapshot, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]dynamodbtypes.AttributeValue{
			"pk": &dynamodbtypes.AttributeValueMemberS{Value: s.key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", s.key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s: %w", s.key, err)
	}
	return decode([]byte(item.Payload))
}

func (s *DynamoStore) Save(ctx context.Context, snap model.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(snapshotItem{
		PK:        s.key,
		Payload:   string(data),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}
