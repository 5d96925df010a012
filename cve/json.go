package cve

import (
	"encoding/hex"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// ToJSON renders an encoded value as JSON for inspection. Dates become
// RFC 3339 strings, data becomes hex. table resolves external string
// references and may be nil. This is a debugging surface; the encoding
// itself is the interchange format.
func ToJSON(v Value, table *StringTable) ([]byte, error) {
	obj, err := decodeAny(v, table)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func decodeAny(v Value, table *StringTable) (any, error) {
	code, err := v.code()
	if err != nil {
		return nil, err
	}
	switch code {
	case NullCode:
		return nil, nil
	case FalseCode:
		return false, nil
	case TrueCode:
		return true, nil
	case UInt64Code:
		return v.AsUInt()
	case Float32Code, Float64Code, RawNumberCode:
		return v.AsFloat64()
	case Int8Code, Int16Code, Int32Code, Int64Code:
		return v.AsInt()
	case DateCode:
		t, err := v.AsTime()
		if err != nil {
			return nil, err
		}
		return t.Format(time.RFC3339), nil
	case StringCode, SharedStringCode, SharedStringRefCode, ExternStringCode, ExternStringRefCode:
		s, err := v.AsStringInTable(table)
		if err != nil {
			return nil, err
		}
		return string(s), nil
	case DataCode:
		data, err := v.AsData()
		if err != nil {
			return nil, err
		}
		return hex.EncodeToString(data), nil
	case ArrayCode:
		arr, err := v.AsArray()
		if err != nil {
			return nil, err
		}
		count, err := arr.Count()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, count)
		it := arr.Iter()
		for it.Next() {
			item, err := decodeAny(it.Value(), table)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, it.Err()
	case DictCode:
		dict, err := v.AsDict()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any)
		it := dict.Iter()
		for it.Next() {
			key, err := it.Key().AsStringInTable(table)
			if err != nil {
				return nil, err
			}
			val, err := decodeAny(it.Value(), table)
			if err != nil {
				return nil, err
			}
			out[string(key)] = val
		}
		return out, it.Err()
	}
	return nil, fmt.Errorf("cve: cannot render type code 0x%02X as JSON", code)
}
