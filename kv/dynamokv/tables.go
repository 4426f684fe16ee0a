package dynamokv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableAPI is the subset of the DynamoDB client used to manage tables.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	dynamodb.DescribeTableAPIClient
}

var _ TableAPI = (*dynamodb.Client)(nil)

// CreateTables creates the counter table and one table per kind, then waits
// for all of them to become active. Existing tables are left untouched.
//
// Kind tables carry a NEW_AND_OLD_IMAGES stream so changes can be consumed
// by a stream handler.
func CreateTables(ctx context.Context, client TableAPI, cfg Config, kinds []string, wait time.Duration) error {
	cfg.validate()

	err := createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName: aws.String(cfg.CounterTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return err
	}

	tables := []string{cfg.CounterTable}
	for _, kind := range kinds {
		name := cfg.TableName(kind)
		err := createTable(ctx, client, &dynamodb.CreateTableInput{
			TableName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(idAttr), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(idAttr), AttributeType: types.ScalarAttributeTypeN},
			},
			BillingMode: types.BillingModePayPerRequest,
			StreamSpecification: &types.StreamSpecification{
				StreamEnabled:  aws.Bool(true),
				StreamViewType: types.StreamViewTypeNewAndOldImages,
			},
		})
		if err != nil {
			return err
		}
		tables = append(tables, name)
	}

	if wait <= 0 {
		return nil
	}
	for _, name := range tables {
		waiter := dynamodb.NewTableExistsWaiter(client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		}, wait); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
	}
	return nil
}

func createTable(ctx context.Context, client TableAPI, input *dynamodb.CreateTableInput) error {
	_, err := client.CreateTable(ctx, input)
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create table %s: %w", aws.ToString(input.TableName), err)
	}
	return nil
}

// DeleteTables drops the counter table and the tables of kinds. Missing
// tables are ignored.
func DeleteTables(ctx context.Context, client TableAPI, cfg Config, kinds []string) error {
	cfg.validate()

	tables := []string{cfg.CounterTable}
	for _, kind := range kinds {
		tables = append(tables, cfg.TableName(kind))
	}
	var errs []error
	for _, name := range tables {
		_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
		var notFound *types.ResourceNotFoundException
		if err != nil && !errors.As(err, &notFound) {
			errs = append(errs, fmt.Errorf("delete table %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
