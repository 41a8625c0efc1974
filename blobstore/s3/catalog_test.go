package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDDBClient mocks the DDBClient interface.
type MockDDBClient struct {
	mock.Mock
}

func (m *MockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *MockDDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *MockDDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

func catalogItem(version, objectKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"base_uri":   &types.AttributeValueMemberS{Value: "s3://bucket/idx"},
		"version":    &types.AttributeValueMemberN{Value: version},
		"object_key": &types.AttributeValueMemberS{Value: objectKey},
	}
}

func TestCatalog_Latest(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		ddb := new(MockDDBClient)
		catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

		ddb.On("Query", mock.Anything, mock.Anything).
			Return(&dynamodb.QueryOutput{}, nil).Once()

		_, err := catalog.Latest(context.Background())
		assert.ErrorIs(t, err, ErrNoVersions)
	})

	t.Run("ReturnsNewest", func(t *testing.T) {
		ddb := new(MockDDBClient)
		catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

		ddb.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
			return *input.TableName == "catalog" && !*input.ScanIndexForward
		})).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{catalogItem("7", "idx/v7.rbx")},
		}, nil).Once()

		v, err := catalog.Latest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(7), v.Version)
		assert.Equal(t, "idx/v7.rbx", v.ObjectKey)
	})
}

func TestCatalog_Commit(t *testing.T) {
	t.Run("FirstVersion", func(t *testing.T) {
		ddb := new(MockDDBClient)
		catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

		ddb.On("Query", mock.Anything, mock.Anything).
			Return(&dynamodb.QueryOutput{}, nil).Once()
		ddb.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
			version := input.Item["version"].(*types.AttributeValueMemberN)
			return version.Value == "1" && *input.ConditionExpression == "attribute_not_exists(version)"
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		v, err := catalog.Commit(context.Background(), "idx/v1.rbx")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)
	})

	t.Run("Increments", func(t *testing.T) {
		ddb := new(MockDDBClient)
		catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

		ddb.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{catalogItem("4", "idx/v4.rbx")},
		}, nil).Once()
		ddb.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
			version := input.Item["version"].(*types.AttributeValueMemberN)
			return version.Value == "5"
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		v, err := catalog.Commit(context.Background(), "idx/v5.rbx")
		require.NoError(t, err)
		assert.Equal(t, uint64(5), v)
	})

	t.Run("ConcurrentCommit", func(t *testing.T) {
		ddb := new(MockDDBClient)
		catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

		ddb.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{catalogItem("4", "idx/v4.rbx")},
		}, nil).Once()
		ddb.On("PutItem", mock.Anything, mock.Anything).
			Return(nil, &types.ConditionalCheckFailedException{}).Once()

		_, err := catalog.Commit(context.Background(), "idx/v5.rbx")
		assert.ErrorIs(t, err, ErrConcurrentCommit)
	})
}

func TestCatalog_History(t *testing.T) {
	ddb := new(MockDDBClient)
	catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

	ddb.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
		return *input.Limit == 10
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			catalogItem("3", "idx/v3.rbx"),
			catalogItem("2", "idx/v2.rbx"),
		},
	}, nil).Once()

	versions, err := catalog.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, uint64(3), versions[0].Version)
	assert.Equal(t, uint64(2), versions[1].Version)
}

func TestCatalog_Prune(t *testing.T) {
	ddb := new(MockDDBClient)
	catalog := NewCatalog(ddb, "catalog", "s3://bucket/idx")

	ddb.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			catalogItem("3", "idx/v3.rbx"),
			catalogItem("2", "idx/v2.rbx"),
			catalogItem("1", "idx/v1.rbx"),
		},
	}, nil).Once()

	deleted := map[string]bool{}
	ddb.On("DeleteItem", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		input := args.Get(1).(*dynamodb.DeleteItemInput)
		version := input.Key["version"].(*types.AttributeValueMemberN)
		deleted[version.Value] = true
	}).Return(&dynamodb.DeleteItemOutput{}, nil).Times(2)

	err := catalog.Prune(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"1": true, "2": true}, deleted)
}
