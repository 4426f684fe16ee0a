// Package stream provides DynamoDB Streams handlers that keep in-process
// caches in step with table changes.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/arbor/config"
	"github.com/jacentio/arbor/kv"
)

// Cache is the cache a Handler evicts from. *config.Config satisfies it.
type Cache interface {
	Invalidate(name string)
	Purge()
}

var _ Cache = (*config.Config)(nil)

// Handler processes DynamoDB stream events of the config table.
type Handler struct {
	cache  Cache
	table  string
	logger *slog.Logger
}

// NewHandler creates a stream handler evicting from cache. Records from tables
// other than table are ignored; an empty table accepts every record.
func NewHandler(cache Cache, table string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cache:  cache,
		table:  table,
		logger: logger,
	}
}

// HandleConfigChange evicts the cached setting of every changed config record.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleConfigChange(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(_ context.Context, record events.DynamoDBEventRecord) error {
	switch record.EventName {
	case "INSERT", "MODIFY", "REMOVE":
	default:
		return nil
	}
	if h.table != "" && tableFromARN(record.EventSourceArn) != h.table {
		return nil
	}
	if h.cache == nil {
		return nil
	}

	key, _ := ConvertStreamKey(config.EntityName, record.Change.Keys)
	names, err := changedNames(record.Change)
	if err != nil {
		return fmt.Errorf("%s %s: %w", record.EventName, key, err)
	}

	// KEYS_ONLY streams carry no images, so the name is unknown.
	if len(names) == 0 {
		h.logger.Warn("config record without name, purging cache",
			"key", key.String(),
			"event", record.EventName,
		)
		h.cache.Purge()
		return nil
	}

	for _, name := range names {
		h.cache.Invalidate(name)
	}
	h.logger.Info("config change processed",
		"key", key.String(),
		"event", record.EventName,
		"names", names,
		"timeUpdated", timeAttr(record.Change.NewImage, "timeUpdated"),
	)
	return nil
}

// changedNames returns the distinct setting names in the old and new images.
func changedNames(change events.DynamoDBStreamRecord) ([]string, error) {
	var names []string
	for _, image := range []map[string]events.DynamoDBAttributeValue{change.NewImage, change.OldImage} {
		v, ok := image["name"]
		if !ok {
			continue
		}
		if v.DataType() != events.DataTypeString {
			return nil, fmt.Errorf("name attribute has data type %d", v.DataType())
		}
		if name := getStringAttr(image, "name"); len(names) == 0 || names[0] != name {
			names = append(names, name)
		}
	}
	return names, nil
}

// tableFromARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:region:account:table/NAME/stream/LABEL.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// timeAttr reads a time field stored as unix nanoseconds. It returns the zero
// time when the attribute is absent.
func timeAttr(image map[string]events.DynamoDBAttributeValue, key string) time.Time {
	n := getNumberAttr(image, key)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// ConvertStreamKey converts a DynamoDB stream key of a kind's table to a
// kv.Key. It reports false when the key has no numeric id.
func ConvertStreamKey(kind string, streamKey map[string]events.DynamoDBAttributeValue) (kv.Key, bool) {
	key := kv.Key{Kind: kind, ID: getNumberAttr(streamKey, "id")}
	return key, key.Complete()
}
