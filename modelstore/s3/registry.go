package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentPublish is returned when another writer published the same
// version first.
var ErrConcurrentPublish = errors.New("concurrent publish detected")

// ErrNoVersions is returned by Latest when nothing has been published.
var ErrNoVersions = errors.New("no published versions")

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Registry tracks published snapshot versions for one model in DynamoDB.
//
// S3 offers no compare-and-swap, so a "latest snapshot" pointer kept as an
// object is unsafe with concurrent writers. The registry instead records
// versions as DynamoDB items and relies on conditional writes for the
// atomic increment.
//
// Table schema:
//   - Partition key: model (string)
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name svdgo-models \
//	  --attribute-definitions AttributeName=model,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=model,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Registry struct {
	client    DDBClient
	tableName string
	model     string
}

// NewRegistry creates a registry for the named model.
func NewRegistry(client DDBClient, tableName, model string) *Registry {
	return &Registry{
		client:    client,
		tableName: tableName,
		model:     model,
	}
}

// Publish records snapshotName as the next version of the model and
// returns the assigned version number. If another writer claims the same
// version concurrently, ErrConcurrentPublish is returned and the caller
// may retry.
func (r *Registry) Publish(ctx context.Context, snapshotName string) (uint64, error) {
	current, _, err := r.latest(ctx)
	if err != nil && !errors.Is(err, ErrNoVersions) {
		return 0, err
	}
	next := current + 1

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"model":    &types.AttributeValueMemberS{Value: r.model},
			"version":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
			"snapshot": &types.AttributeValueMemberS{Value: snapshotName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentPublish
		}
		return 0, fmt.Errorf("failed to publish version: %w", err)
	}
	return next, nil
}

// Latest returns the most recently published version number and snapshot
// name for the model.
func (r *Registry) Latest(ctx context.Context) (uint64, string, error) {
	return r.latest(ctx)
}

func (r *Registry) latest(ctx context.Context) (uint64, string, error) {
	resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("model = :model"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":model": &types.AttributeValueMemberS{Value: r.model},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to query registry: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", ErrNoVersions
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute")
	}
	snapshotAttr, ok := item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot attribute")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}
	return version, snapshotAttr.Value, nil
}

// Forget removes the record for a version. The snapshot object itself is
// not deleted.
func (r *Registry) Forget(ctx context.Context, version uint64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"model":   &types.AttributeValueMemberS{Value: r.model},
			"version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", version)},
		},
	})
	return err
}
