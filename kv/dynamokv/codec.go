package dynamokv

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/kv"
)

const (
	// idAttr is the hash key of every record table.
	idAttr = "id"

	// unindexedAttr lists the properties scans must not match.
	unindexedAttr = "_unindexed"
)

// ErrReservedName is returned when a property uses an attribute name the
// store needs for itself.
var ErrReservedName = errors.New("dynamokv: reserved property name")

func idValue(id int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)}
}

func itemKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{idAttr: idValue(id)}
}

func encodeValue(v any) (types.AttributeValue, error) {
	switch x := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: x}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(x, 10)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case string:
		return &types.AttributeValueMemberS{Value: x}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: append([]byte{}, x...)}, nil
	case []string:
		if len(x) == 0 {
			return &types.AttributeValueMemberL{Value: []types.AttributeValue{}}, nil
		}
		list, err := attributevalue.MarshalList(x)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	}
	return nil, fmt.Errorf("%T: %w", v, kv.ErrUnsupportedValue)
}

func decodeValue(av types.AttributeValue) (any, error) {
	switch x := av.(type) {
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberBOOL:
		return x.Value, nil
	case *types.AttributeValueMemberN:
		return parseNumber(x.Value)
	case *types.AttributeValueMemberS:
		return x.Value, nil
	case *types.AttributeValueMemberB:
		return append([]byte{}, x.Value...), nil
	case *types.AttributeValueMemberL:
		list := []string{}
		if err := attributevalue.Unmarshal(x, &list); err != nil {
			return nil, fmt.Errorf("string list: %w", err)
		}
		if list == nil {
			list = []string{}
		}
		return list, nil
	}
	return nil, fmt.Errorf("attribute %T: %w", av, kv.ErrUnsupportedValue)
}

// parseNumber reads integral numbers back as int64 and the rest as float64.
func parseNumber(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("number %q: %w", s, err)
	}
	return f, nil
}

func encodeItem(key kv.Key, rec *kv.Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(rec.Properties)+2)
	item[idAttr] = idValue(key.ID)
	var unindexed []string
	for name, p := range rec.Properties {
		if name == idAttr || name == unindexedAttr {
			return nil, fmt.Errorf("%s: %q: %w", key, name, ErrReservedName)
		}
		av, err := encodeValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: property %q: %w", key, name, err)
		}
		item[name] = av
		if !p.Indexed {
			unindexed = append(unindexed, name)
		}
	}
	if len(unindexed) > 0 {
		sort.Strings(unindexed)
		item[unindexedAttr] = &types.AttributeValueMemberSS{Value: unindexed}
	}
	return item, nil
}

func decodeItem(kind string, item map[string]types.AttributeValue) (*kv.Record, error) {
	n, ok := item[idAttr].(*types.AttributeValueMemberN)
	if !ok {
		return nil, fmt.Errorf("%s item without numeric %s", kind, idAttr)
	}
	id, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s item id %q: %w", kind, n.Value, err)
	}
	unindexed := make(map[string]bool)
	if ss, ok := item[unindexedAttr].(*types.AttributeValueMemberSS); ok {
		for _, name := range ss.Value {
			unindexed[name] = true
		}
	}

	rec := kv.NewRecord(kind)
	rec.Key.ID = id
	for name, av := range item {
		if name == idAttr || name == unindexedAttr {
			continue
		}
		v, err := decodeValue(av)
		if err != nil {
			return nil, fmt.Errorf("%s property %q: %w", rec.Key, name, err)
		}
		rec.Set(name, v, !unindexed[name])
	}
	return rec, nil
}
