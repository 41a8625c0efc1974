package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentCommit is returned when another publisher committed the same
// version first. Callers should re-read Latest and retry.
var ErrConcurrentCommit = errors.New("concurrent commit detected")

// ErrNoVersions is returned by Latest when nothing has been committed yet.
var ErrNoVersions = errors.New("catalog has no committed versions")

// DDBClient is the subset of the DynamoDB API the catalog uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Version is one committed catalog entry: a monotonically increasing
// version number pointing at an immutable index object.
type Version struct {
	Version   uint64
	ObjectKey string
}

// Catalog is a DynamoDB-backed version log for published indexes.
//
// S3 objects are immutable and S3 offers no compare-and-swap on standard
// buckets, so concurrent publishers need an external commit point. The
// catalog provides it: each Commit writes a new (base_uri, version) item
// with a conditional put, and readers resolve the current index object
// through Latest.
//
// Table schema:
//   - Partition key: base_uri (string), the logical index location
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name rangebitmap-catalog \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client  DDBClient
	table   string
	baseURI string
}

// NewCatalog creates a version catalog. baseURI is the partition key,
// conventionally "s3://bucket/prefix".
func NewCatalog(client DDBClient, table, baseURI string) *Catalog {
	return &Catalog{
		client:  client,
		table:   table,
		baseURI: baseURI,
	}
}

// Latest returns the most recently committed version, or ErrNoVersions.
func (c *Catalog) Latest(ctx context.Context) (Version, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return Version{}, fmt.Errorf("query catalog: %w", err)
	}

	if len(resp.Items) == 0 {
		return Version{}, ErrNoVersions
	}

	return decodeVersion(resp.Items[0])
}

// Commit records objectKey as the next version. The conditional put fails
// with ErrConcurrentCommit if another publisher claimed the version number
// first; the committed version is returned on success.
func (c *Catalog) Commit(ctx context.Context, objectKey string) (uint64, error) {
	current := uint64(0)

	latest, err := c.Latest(ctx)
	switch {
	case err == nil:
		current = latest.Version
	case errors.Is(err, ErrNoVersions):
	default:
		return 0, err
	}

	next := current + 1

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			"base_uri":   &types.AttributeValueMemberS{Value: c.baseURI},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"object_key": &types.AttributeValueMemberS{Value: objectKey},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}

		return 0, fmt.Errorf("commit version %d: %w", next, err)
	}

	return next, nil
}

// History returns up to limit committed versions, newest first.
func (c *Catalog) History(ctx context.Context, limit int32) ([]Version, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	versions := make([]Version, 0, len(resp.Items))

	for _, item := range resp.Items {
		v, err := decodeVersion(item)
		if err != nil {
			return nil, err
		}

		versions = append(versions, v)
	}

	return versions, nil
}

// Prune deletes catalog entries older than keepVersion. The objects they
// point at are not touched; callers garbage-collect those separately.
func (c *Catalog) Prune(ctx context.Context, keepVersion uint64) error {
	versions, err := c.History(ctx, 1000)
	if err != nil {
		return err
	}

	for _, v := range versions {
		if v.Version >= keepVersion {
			continue
		}

		_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.table),
			Key: map[string]types.AttributeValue{
				"base_uri": &types.AttributeValueMemberS{Value: c.baseURI},
				"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(v.Version, 10)},
			},
		})
		if err != nil {
			return fmt.Errorf("prune version %d: %w", v.Version, err)
		}
	}

	return nil
}

func decodeVersion(item map[string]types.AttributeValue) (Version, error) {
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return Version{}, errors.New("catalog item missing version attribute")
	}

	keyAttr, ok := item["object_key"].(*types.AttributeValueMemberS)
	if !ok {
		return Version{}, errors.New("catalog item missing object_key attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return Version{}, fmt.Errorf("parse version: %w", err)
	}

	return Version{Version: version, ObjectKey: keyAttr.Value}, nil
}
