package dynamokv

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/kv"
)

// filter is a scan FilterExpression with its placeholders.
type filter struct {
	expr   string
	names  map[string]string
	values map[string]types.AttributeValue
}

// buildFilter translates predicates to a FilterExpression. Each predicate also
// excludes records where the property is unindexed. It returns ok=false when
// no record can match, so the scan can be skipped.
func buildFilter(preds []kv.Predicate) (f *filter, ok bool, err error) {
	if len(preds) == 0 {
		return nil, true, nil
	}
	names := map[string]string{"#unidx": unindexedAttr}
	values := map[string]types.AttributeValue{
		":null": &types.AttributeValueMemberS{Value: "NULL"},
	}
	clauses := make([]string, 0, len(preds))

	for i, p := range preds {
		if !p.Op.Valid() {
			return nil, false, fmt.Errorf("predicate %s: unknown operator", p)
		}
		name := fmt.Sprintf("#p%d", i)
		value := fmt.Sprintf(":v%d", i)
		label := fmt.Sprintf(":n%d", i)

		var cond string
		switch {
		case p.Value == nil && p.Op == kv.OpEqual:
			cond = fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, :null))", name, name)
		case p.Value == nil && p.Op == kv.OpNotEqual:
			cond = fmt.Sprintf("(attribute_exists(%s) AND NOT attribute_type(%s, :null))", name, name)
		case p.Value == nil:
			return nil, false, nil
		case p.Op == kv.OpNotEqual:
			cond = fmt.Sprintf("(attribute_not_exists(%s) OR %s <> %s)", name, name, value)
		default:
			cond = fmt.Sprintf("%s %s %s", name, comparator(p.Op), value)
		}
		if p.Value != nil {
			av, err := encodeValue(p.Value)
			if err != nil {
				return nil, false, fmt.Errorf("predicate %s: %w", p, err)
			}
			values = mergeExprValues(values, map[string]types.AttributeValue{value: av})
		}
		names = mergeExprNames(names, map[string]string{name: p.Name})
		values = mergeExprValues(values, map[string]types.AttributeValue{
			label: &types.AttributeValueMemberS{Value: p.Name},
		})
		clauses = append(clauses, fmt.Sprintf("%s AND (attribute_not_exists(#unidx) OR NOT contains(#unidx, %s))", cond, label))
	}

	return &filter{
		expr:   "(" + strings.Join(clauses, ") AND (") + ")",
		names:  names,
		values: values,
	}, true, nil
}

func comparator(op kv.Operator) string {
	switch op {
	case kv.OpEqual:
		return "="
	case kv.OpLessThan:
		return "<"
	case kv.OpLessOrEqual:
		return "<="
	case kv.OpGreaterThan:
		return ">"
	case kv.OpGreaterOrEqual:
		return ">="
	}
	return "<>"
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
