package dynamokv_test

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo keeps tables in memory. Scans ignore FilterExpression and
// return every item of the requested segment, pageSize items per page.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[int64]map[string]types.AttributeValue
	counters map[string]int64
	missing  map[string]bool
	scans    []dynamodb.ScanInput
	pageSize int
}

func newFake() *fakeDynamo {
	return &fakeDynamo{
		tables:   make(map[string]map[int64]map[string]types.AttributeValue),
		counters: make(map[string]int64),
		missing:  make(map[string]bool),
		pageSize: 2,
	}
}

func (f *fakeDynamo) table(name string) (map[int64]map[string]types.AttributeValue, error) {
	if f.missing[name] {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table " + name + " not found")}
	}
	t, ok := f.tables[name]
	if !ok {
		t = make(map[int64]map[string]types.AttributeValue)
		f.tables[name] = t
	}
	return t, nil
}

func itemID(key map[string]types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(key["id"].(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: t[itemID(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	t[itemID(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	delete(t, itemID(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.Key["pk"].(*types.AttributeValueMemberS).Value
	f.counters[pk]++
	return &dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"n": &types.AttributeValueMemberN{Value: strconv.FormatInt(f.counters[pk], 10)},
		},
	}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, *in)
	t, err := f.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}

	var ids []int64
	for id := range t {
		if in.TotalSegments != nil && id%int64(*in.TotalSegments) != int64(*in.Segment) {
			continue
		}
		if in.ExclusiveStartKey != nil && id <= itemID(in.ExclusiveStartKey) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := &dynamodb.ScanOutput{}
	for _, id := range ids {
		if len(out.Items) == f.pageSize {
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				"id": out.Items[len(out.Items)-1]["id"],
			}
			break
		}
		out.Items = append(out.Items, t[id])
	}
	return out, nil
}
