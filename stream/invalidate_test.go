package stream_test

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/arbor/config"
	"github.com/jacentio/arbor/kv"
	"github.com/jacentio/arbor/kv/memkv"
	"github.com/jacentio/arbor/store"
	"github.com/jacentio/arbor/stream"
)

const configARN = "arn:aws:dynamodb:eu-west-1:123456789012:table/arbor_config/stream/2024-01-01T00:00:00.000"

func newConfig(t *testing.T, backend kv.Store) *config.Config {
	t.Helper()
	es := store.NewEntities(backend, store.DefaultConfig())
	cfg, err := config.New(es, config.DefaultOptions())
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if err := es.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func changeEvent(eventName, arn, name string) events.DynamoDBEvent {
	image := map[string]events.DynamoDBAttributeValue{
		"id":   events.NewNumberAttribute("1"),
		"name": events.NewStringAttribute(name),
	}
	change := events.DynamoDBStreamRecord{
		Keys: map[string]events.DynamoDBAttributeValue{"id": events.NewNumberAttribute("1")},
	}
	if eventName == "REMOVE" {
		change.OldImage = image
	} else {
		change.NewImage = image
	}
	return events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{{
			EventID:        "1",
			EventName:      eventName,
			EventSourceArn: arn,
			Change:         change,
		}},
	}
}

func TestNewHandler(t *testing.T) {
	// Test with nil cache and logger (should not panic)
	h := stream.NewHandler(nil, "", nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
	if err := h.HandleConfigChange(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestHandleConfigChange_EvictsStaleValue(t *testing.T) {
	ctx := context.Background()
	backend := memkv.New()
	reader := newConfig(t, backend)
	writer := newConfig(t, backend)

	if _, err := writer.Set(ctx, config.Env, "dev"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if env, _ := reader.Environment(ctx); env != "dev" {
		t.Fatalf("expected dev, got %q", env)
	}
	if _, err := writer.Set(ctx, config.Env, "live"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if env, _ := reader.Environment(ctx); env != "dev" {
		t.Fatalf("expected cached dev before the change event, got %q", env)
	}

	h := stream.NewHandler(reader, "arbor_config", nil)
	if err := h.HandleConfigChange(ctx, changeEvent("MODIFY", configARN, config.Env)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env, _ := reader.Environment(ctx); env != "live" {
		t.Errorf("expected live after the change event, got %q", env)
	}
}

func TestHandleConfigChange_Remove(t *testing.T) {
	ctx := context.Background()
	backend := memkv.New()
	reader := newConfig(t, backend)
	writer := newConfig(t, backend)

	if _, err := writer.Set(ctx, config.BaseURL, "https://x"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := reader.BaseURL(ctx); err != nil {
		t.Fatalf("base url: %v", err)
	}
	if _, err := writer.Unset(ctx, config.BaseURL); err != nil {
		t.Fatalf("unset: %v", err)
	}

	h := stream.NewHandler(reader, "arbor_config", nil)
	if err := h.HandleConfigChange(ctx, changeEvent("REMOVE", configARN, config.BaseURL)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if v, _ := reader.Value(ctx, config.BaseURL); v != nil {
		t.Errorf("expected nil after removal, got %v", v)
	}
}

type recordingCache struct {
	evicted []string
	purged  int
}

func (c *recordingCache) Invalidate(name string) { c.evicted = append(c.evicted, name) }
func (c *recordingCache) Purge()                 { c.purged++ }

func TestHandleConfigChange_Filtering(t *testing.T) {
	tests := []struct {
		name        string
		table       string
		event       events.DynamoDBEvent
		wantEvicted int
		wantPurged  int
	}{
		{"insert", "arbor_config", changeEvent("INSERT", configARN, "env"), 1, 0},
		{"modify", "arbor_config", changeEvent("MODIFY", configARN, "env"), 1, 0},
		{"remove", "arbor_config", changeEvent("REMOVE", configARN, "env"), 1, 0},
		{"other table", "arbor_config", changeEvent("MODIFY", "arn:aws:dynamodb:eu-west-1:1:table/arbor_user/stream/x", "env"), 0, 0},
		{"any table", "", changeEvent("MODIFY", "arn:aws:dynamodb:eu-west-1:1:table/other/stream/x", "env"), 1, 0},
		{"keys only", "", events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				Keys: map[string]events.DynamoDBAttributeValue{"id": events.NewNumberAttribute("3")},
			},
		}}}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &recordingCache{}
			h := stream.NewHandler(cache, tt.table, nil)
			if err := h.HandleConfigChange(context.Background(), tt.event); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cache.evicted) != tt.wantEvicted {
				t.Errorf("expected %d evictions, got %v", tt.wantEvicted, cache.evicted)
			}
			if cache.purged != tt.wantPurged {
				t.Errorf("expected %d purges, got %d", tt.wantPurged, cache.purged)
			}
		})
	}
}

func TestHandleConfigChange_BadImageStopsBatch(t *testing.T) {
	cache := &recordingCache{}
	h := stream.NewHandler(cache, "", nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		{
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				NewImage: map[string]events.DynamoDBAttributeValue{"name": events.NewBooleanAttribute(true)},
			},
		},
		changeEvent("MODIFY", configARN, "env").Records[0],
	}}

	if err := h.HandleConfigChange(context.Background(), event); err == nil {
		t.Fatal("expected error for non-string name")
	}
	if len(cache.evicted) != 0 {
		t.Errorf("expected batch to stop at the failing record, got %v", cache.evicted)
	}
}

func TestConvertStreamKey(t *testing.T) {
	tests := []struct {
		name   string
		key    map[string]events.DynamoDBAttributeValue
		wantID int64
		wantOK bool
	}{
		{"number id", map[string]events.DynamoDBAttributeValue{"id": events.NewNumberAttribute("42")}, 42, true},
		{"large id", map[string]events.DynamoDBAttributeValue{"id": events.NewNumberAttribute("9223372036854775807")}, 9223372036854775807, true},
		{"zero id", map[string]events.DynamoDBAttributeValue{"id": events.NewNumberAttribute("0")}, 0, false},
		{"string id", map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("42")}, 0, false},
		{"empty", map[string]events.DynamoDBAttributeValue{}, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := stream.ConvertStreamKey("config", tt.key)
			if ok != tt.wantOK || key.ID != tt.wantID || key.Kind != "config" {
				t.Errorf("expected config#%d (%v), got %s (%v)", tt.wantID, tt.wantOK, key, ok)
			}
		})
	}
}
