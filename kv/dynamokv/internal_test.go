package dynamokv

import (
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/kv"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"1.5", 1.5},
		{"1e3", 1000.0},
	}
	for _, tt := range tests {
		got, err := parseNumber(tt.in)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %v (%T), got %v (%T)", tt.in, tt.want, tt.want, got, got)
		}
	}
	if _, err := parseNumber("abc"); err == nil {
		t.Error("expected error for non-number")
	}
}

func TestEncodeValue_Types(t *testing.T) {
	tests := []struct {
		in   any
		want types.AttributeValue
	}{
		{nil, &types.AttributeValueMemberNULL{}},
		{true, &types.AttributeValueMemberBOOL{}},
		{int64(1), &types.AttributeValueMemberN{}},
		{2.5, &types.AttributeValueMemberN{}},
		{"s", &types.AttributeValueMemberS{}},
		{[]byte("b"), &types.AttributeValueMemberB{}},
		{[]string{"x"}, &types.AttributeValueMemberL{}},
	}
	for _, tt := range tests {
		got, err := encodeValue(tt.in)
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tt.in, err)
			continue
		}
		if gotT, wantT := typeName(got), typeName(tt.want); gotT != wantT {
			t.Errorf("%v: expected %s, got %s", tt.in, wantT, gotT)
		}
	}
	if _, err := encodeValue(struct{}{}); !errors.Is(err, kv.ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
}

func typeName(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberL:
		return "L"
	}
	return "?"
}

func TestEncodeItem_UnindexedSet(t *testing.T) {
	rec := kv.NewRecord("user")
	rec.Set("b", "x", false)
	rec.Set("a", "y", false)
	rec.Set("c", "z", true)

	item, err := encodeItem(kv.Key{Kind: "user", ID: 3}, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ss, ok := item[unindexedAttr].(*types.AttributeValueMemberSS)
	if !ok {
		t.Fatalf("expected string set, got %T", item[unindexedAttr])
	}
	if got := strings.Join(ss.Value, ","); got != "a,b" {
		t.Errorf("expected a,b, got %s", got)
	}
	if n := item[idAttr].(*types.AttributeValueMemberN).Value; n != "3" {
		t.Errorf("expected id 3, got %s", n)
	}

	all := kv.NewRecord("user")
	all.Set("c", "z", true)
	item, _ = encodeItem(kv.Key{Kind: "user", ID: 1}, all)
	if _, ok := item[unindexedAttr]; ok {
		t.Error("expected no unindexed set when every property is indexed")
	}
}

func TestDecodeItem_MissingID(t *testing.T) {
	_, err := decodeItem("user", map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: "x"},
	})
	if err == nil {
		t.Error("expected error for item without id")
	}
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name     string
		preds    []kv.Predicate
		wantOK   bool
		contains []string
	}{
		{"none", nil, true, nil},
		{"equal", []kv.Predicate{{Name: "n", Op: kv.OpEqual, Value: "x"}}, true, []string{"#p0 = :v0", "NOT contains(#unidx, :n0)"}},
		{"not equal", []kv.Predicate{{Name: "n", Op: kv.OpNotEqual, Value: "x"}}, true, []string{"attribute_not_exists(#p0) OR #p0 <> :v0"}},
		{"nil equal", []kv.Predicate{{Name: "n", Op: kv.OpEqual}}, true, []string{"attribute_type(#p0, :null)"}},
		{"nil not equal", []kv.Predicate{{Name: "n", Op: kv.OpNotEqual}}, true, []string{"attribute_exists(#p0)"}},
		{"nil ordering", []kv.Predicate{{Name: "n", Op: kv.OpLessThan}}, false, nil},
		{"two clauses", []kv.Predicate{
			{Name: "a", Op: kv.OpGreaterOrEqual, Value: int64(1)},
			{Name: "b", Op: kv.OpLessOrEqual, Value: int64(2)},
		}, true, []string{"#p0 >= :v0", ") AND (", "#p1 <= :v1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok, err := buildFilter(tt.preds)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if len(tt.contains) == 0 {
				return
			}
			for _, s := range tt.contains {
				if !strings.Contains(f.expr, s) {
					t.Errorf("expected %q in %q", s, f.expr)
				}
			}
			for i, p := range tt.preds {
				if f.names["#p"+string(rune('0'+i))] != p.Name {
					t.Errorf("expected #p%d to name %s", i, p.Name)
				}
			}
		})
	}

	if _, _, err := buildFilter([]kv.Predicate{{Name: "n", Op: kv.Operator(42), Value: 1}}); err == nil {
		t.Error("expected error for unknown operator")
	}
}
