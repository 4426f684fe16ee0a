package boltkv

import (
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jacentio/arbor/kv"
)

// document is the BSON layout of a stored record. Properties are kept as a
// list so that names are free-form.
type document struct {
	Props []property `bson:"props"`
}

type property struct {
	Name    string `bson:"n"`
	Value   any    `bson:"v"`
	Indexed bool   `bson:"i,omitempty"`
}

type rawDocument struct {
	Props []rawProperty `bson:"props"`
}

type rawProperty struct {
	Name    string        `bson:"n"`
	Value   bson.RawValue `bson:"v"`
	Indexed bool          `bson:"i,omitempty"`
}

func idKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func keyID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func encode(rec *kv.Record) ([]byte, error) {
	doc := document{Props: make([]property, 0, len(rec.Properties))}
	for _, name := range rec.Names() {
		p := rec.Properties[name]
		v := p.Value
		// bson writes nil slices as null.
		switch s := v.(type) {
		case []string:
			if s == nil {
				v = []string{}
			}
		case []byte:
			if s == nil {
				v = []byte{}
			}
		}
		doc.Props = append(doc.Props, property{Name: name, Value: v, Indexed: p.Indexed})
	}
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.Key, err)
	}
	return b, nil
}

func decode(key kv.Key, data []byte) (*kv.Record, error) {
	var doc rawDocument
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	rec := kv.NewRecord(key.Kind)
	rec.Key = key
	for _, p := range doc.Props {
		v, err := decodeValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("decode %s property %q: %w", key, p.Name, err)
		}
		rec.Set(p.Name, v, p.Indexed)
	}
	return rec, nil
}

// decodeValue maps a BSON value back to a kv native value.
func decodeValue(rv bson.RawValue) (any, error) {
	switch rv.Type {
	case bson.TypeNull, bson.TypeUndefined, 0:
		return nil, nil
	case bson.TypeBoolean:
		return rv.Boolean(), nil
	case bson.TypeInt32:
		return int64(rv.Int32()), nil
	case bson.TypeInt64:
		return rv.Int64(), nil
	case bson.TypeDouble:
		return rv.Double(), nil
	case bson.TypeString:
		return rv.StringValue(), nil
	case bson.TypeBinary:
		_, data := rv.Binary()
		return append([]byte{}, data...), nil
	case bson.TypeArray:
		values, err := rv.Array().Values()
		if err != nil {
			return nil, err
		}
		list := make([]string, len(values))
		for i, item := range values {
			s, ok := item.StringValueOK()
			if !ok {
				return nil, fmt.Errorf("list element %d is %s: %w", i, item.Type, kv.ErrUnsupportedValue)
			}
			list[i] = s
		}
		return list, nil
	}
	return nil, fmt.Errorf("bson %s: %w", rv.Type, kv.ErrUnsupportedValue)
}
