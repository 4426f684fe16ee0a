// Package dynamokv provides a kv.Store backed by DynamoDB.
//
// Each kind lives in its own table (Config.TablePrefix + kind) keyed by a
// numeric "id" hash key. Identities come from sharded atomic counters in
// Config.CounterTable. Properties are stored as top-level attributes; the
// names of unindexed properties are listed in the "_unindexed" string set so
// scans never match them.
//
// Tables are provisioned with CreateTables.
package dynamokv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/arbor/internal/shard"
	"github.com/jacentio/arbor/kv"
)

// API is the subset of the DynamoDB client the Store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	dynamodb.ScanAPIClient
}

var _ API = (*dynamodb.Client)(nil)

// Store is a kv.Store on DynamoDB tables.
type Store struct {
	client API
	config Config
	picker *shard.Picker
	logger *slog.Logger
}

var _ kv.Store = (*Store)(nil)

// New creates a Store. A nil logger uses slog.Default().
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		picker: shard.NewPicker(config.CounterShards, uuid.NewString()),
		logger: logger,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Get returns the record for key.
func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Record, error) {
	if !key.Complete() {
		return nil, kv.ErrIncompleteKey
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.TableName(key.Kind)),
		Key:            itemKey(key.ID),
		ConsistentRead: aws.Bool(s.config.ConsistentRead),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if result.Item == nil {
		return nil, kv.ErrNotFound
	}
	return decodeItem(key.Kind, result.Item)
}

// Put writes rec, drawing a new id from the counter table for incomplete keys.
func (s *Store) Put(ctx context.Context, rec *kv.Record) (kv.Key, error) {
	if err := rec.Validate(); err != nil {
		return kv.Key{}, err
	}
	key := rec.Key
	if key.Kind == "" {
		return kv.Key{}, fmt.Errorf("put: empty kind: %w", kv.ErrIncompleteKey)
	}
	if !key.Complete() {
		id, err := s.nextID(ctx, key.Kind)
		if err != nil {
			return kv.Key{}, fmt.Errorf("allocate %s id: %w", key.Kind, err)
		}
		key.ID = id
	}
	item, err := encodeItem(key, rec)
	if err != nil {
		return kv.Key{}, err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName(key.Kind)),
		Item:      item,
	})
	if err != nil {
		return kv.Key{}, fmt.Errorf("put %s: %w", key, mapError(err))
	}
	return key, nil
}

// nextID increments one counter shard for kind and maps its value to an id.
func (s *Store) nextID(ctx context.Context, kind string) (int64, error) {
	shardNum := s.picker.Pick()
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.CounterTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: shard.CounterPK(kind, shardNum)},
		},
		UpdateExpression:         aws.String("ADD #n :one"),
		ExpressionAttributeNames: map[string]string{"#n": "n"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, mapError(err)
	}
	var n int64
	if err := attributevalue.Unmarshal(result.Attributes["n"], &n); err != nil {
		return 0, fmt.Errorf("counter %s: %w", shard.CounterPK(kind, shardNum), err)
	}
	return shard.ID(n, shardNum, s.picker.NumShards()), nil
}

// Delete removes the records for keys. Absent keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...kv.Key) error {
	for _, key := range keys {
		if !key.Complete() {
			return fmt.Errorf("delete %s: %w", key, kv.ErrIncompleteKey)
		}
	}
	for _, key := range keys {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.config.TableName(key.Kind)),
			Key:       itemKey(key.ID),
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, mapError(err))
		}
	}
	return nil
}

// ErrTableNotFound is returned when a kind's table has not been created.
var ErrTableNotFound = errors.New("dynamokv: table not found")

// mapError converts DynamoDB exceptions to package errors.
func mapError(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, aws.ToString(notFound.Message))
	}
	return err
}
