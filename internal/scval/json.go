package scval

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"ammclient/internal/strkey"
)

// wireValue is the JSON form exchanged with the ledger node.
//
// Integers of 64 bits and wider travel as decimal strings, bytes as 0x-hex.
type wireValue struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type wireEntry struct {
	Key json.RawMessage `json:"key"`
	Val json.RawMessage `json:"val"`
}

// Marshal encodes a value to its JSON wire form.
func Marshal(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("marshal nil value")
	}

	var payload interface{}
	switch val := v.(type) {
	case Void:
		return json.Marshal(wireValue{Type: KindVoid})
	case Bool:
		payload = bool(val)
	case U32:
		payload = uint32(val)
	case I32:
		payload = int32(val)
	case U64:
		payload = strconv.FormatUint(uint64(val), 10)
	case I64:
		payload = strconv.FormatInt(int64(val), 10)
	case U128:
		payload = val.String()
	case I128:
		payload = val.String()
	case U256:
		payload = val.String()
	case Symbol:
		payload = string(val)
	case String:
		payload = string(val)
	case Bytes:
		payload = hexutil.Encode(val.b)
	case Address:
		payload = val.addr.String()
	case Vec:
		items := make([]json.RawMessage, 0, len(val.items))
		for i, item := range val.items {
			raw, err := Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("vec[%d]: %w", i, err)
			}
			items = append(items, raw)
		}
		payload = items
	case Map:
		entries := make([]wireEntry, 0, len(val.entries))
		for i, entry := range val.entries {
			key, err := Marshal(entry.Key)
			if err != nil {
				return nil, fmt.Errorf("map[%d] key: %w", i, err)
			}
			value, err := Marshal(entry.Val)
			if err != nil {
				return nil, fmt.Errorf("map[%d] val: %w", i, err)
			}
			entries = append(entries, wireEntry{Key: key, Val: value})
		}
		payload = entries
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", v.Kind(), err)
	}
	return json.Marshal(wireValue{Type: v.Kind(), Value: raw})
}

// Unmarshal decodes a value from its JSON wire form.
func Unmarshal(data []byte) (Value, error) {
	var wire wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode wire value: %w", err)
	}

	switch wire.Type {
	case KindVoid:
		return Void{}, nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return nil, fmt.Errorf("bool: %w", err)
		}
		return Bool(b), nil
	case KindU32:
		var n uint32
		if err := json.Unmarshal(wire.Value, &n); err != nil {
			return nil, fmt.Errorf("u32: %w", err)
		}
		return U32(n), nil
	case KindI32:
		var n int32
		if err := json.Unmarshal(wire.Value, &n); err != nil {
			return nil, fmt.Errorf("i32: %w", err)
		}
		return I32(n), nil
	case KindU64:
		s, err := decodeString(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("u64: %w", err)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("u64: %w", err)
		}
		return U64(n), nil
	case KindI64:
		s, err := decodeString(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("i64: %w", err)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("i64: %w", err)
		}
		return I64(n), nil
	case KindU128:
		n, err := decodeBig(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("u128: %w", err)
		}
		return NewU128(n)
	case KindI128:
		n, err := decodeBig(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("i128: %w", err)
		}
		return NewI128(n)
	case KindU256:
		n, err := decodeBig(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("u256: %w", err)
		}
		return NewU256(n)
	case KindSymbol:
		s, err := decodeString(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("symbol: %w", err)
		}
		return NewSymbol(s)
	case KindString:
		s, err := decodeString(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("string: %w", err)
		}
		return String(s), nil
	case KindBytes:
		s, err := decodeString(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("bytes: %w", err)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("bytes: %w", err)
		}
		return Bytes{b: b}, nil
	case KindAddress:
		s, err := decodeString(wire.Value)
		if err != nil {
			return nil, fmt.Errorf("address: %w", err)
		}
		addr, err := strkey.Decode(s)
		if err != nil {
			return nil, err
		}
		return NewAddress(addr), nil
	case KindVec:
		var raws []json.RawMessage
		if err := json.Unmarshal(wire.Value, &raws); err != nil {
			return nil, fmt.Errorf("vec: %w", err)
		}
		items := make([]Value, 0, len(raws))
		for i, raw := range raws {
			item, err := Unmarshal(raw)
			if err != nil {
				return nil, fmt.Errorf("vec[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return Vec{items: items}, nil
	case KindMap:
		var raws []wireEntry
		if err := json.Unmarshal(wire.Value, &raws); err != nil {
			return nil, fmt.Errorf("map: %w", err)
		}
		entries := make([]MapEntry, 0, len(raws))
		for i, raw := range raws {
			key, err := Unmarshal(raw.Key)
			if err != nil {
				return nil, fmt.Errorf("map[%d] key: %w", i, err)
			}
			val, err := Unmarshal(raw.Val)
			if err != nil {
				return nil, fmt.Errorf("map[%d] val: %w", i, err)
			}
			entries = append(entries, MapEntry{Key: key, Val: val})
		}
		return Map{entries: entries}, nil
	default:
		return nil, fmt.Errorf("unsupported wire type %q", wire.Type)
	}
}

// Raw wraps a Value so it can be embedded in JSON documents.
type Raw struct {
	Value Value
}

// MarshalJSON implements json.Marshaler.
func (r Raw) MarshalJSON() ([]byte, error) {
	if r.Value == nil {
		return []byte("null"), nil
	}
	return Marshal(r.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Raw) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		r.Value = nil
		return nil
	}
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	r.Value = v
	return nil
}

// List wraps a slice of values for JSON embedding.
func List(values []Value) []Raw {
	out := make([]Raw, 0, len(values))
	for _, v := range values {
		out = append(out, Raw{Value: v})
	}
	return out
}

// Values unwraps a slice produced by List.
func Values(raws []Raw) []Value {
	out := make([]Value, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.Value)
	}
	return out
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func decodeBig(raw json.RawMessage) (*big.Int, error) {
	s, err := decodeString(raw)
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}
