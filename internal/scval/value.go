// Package scval defines the ledger's tagged wire values used as contract call
// arguments and return values.
//
// Value is a closed sum type: only the variants declared in this package
// implement it, so every switch over a Value can enumerate the full set.
package scval

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/holiman/uint256"

	"ammclient/internal/strkey"
)

// Kind is the wire tag of a Value.
type Kind string

const (
	KindVoid    Kind = "void"
	KindBool    Kind = "bool"
	KindU32     Kind = "u32"
	KindI32     Kind = "i32"
	KindU64     Kind = "u64"
	KindI64     Kind = "i64"
	KindU128    Kind = "u128"
	KindI128    Kind = "i128"
	KindU256    Kind = "u256"
	KindSymbol  Kind = "symbol"
	KindString  Kind = "string"
	KindBytes   Kind = "bytes"
	KindAddress Kind = "address"
	KindVec     Kind = "vec"
	KindMap     Kind = "map"
)

// MaxSymbolLen is the longest symbol the ledger accepts.
const MaxSymbolLen = 32

var symbolPattern = regexp.MustCompile(`^[a-zA-Z0-9_]*$`)

var (
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// Value is a tagged ledger value.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	Void   struct{}
	Bool   bool
	U32    uint32
	I32    int32
	U64    uint64
	I64    int64
	Symbol string
	String string
)

// U128 is an unsigned 128-bit integer.
type U128 struct{ v uint256.Int }

// I128 is a signed 128-bit integer.
type I128 struct{ v big.Int }

// U256 is an unsigned 256-bit integer.
type U256 struct{ v uint256.Int }

// Bytes is an opaque byte string. The constructor copies its input.
type Bytes struct{ b []byte }

// Address wraps an account or contract identity.
type Address struct{ addr strkey.Address }

// Vec is an ordered list of values. The constructor copies its input.
type Vec struct{ items []Value }

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key Value
	Val Value
}

// Map is an ordered list of entries. The constructor copies its input.
type Map struct{ entries []MapEntry }

func (Void) Kind() Kind    { return KindVoid }
func (Bool) Kind() Kind    { return KindBool }
func (U32) Kind() Kind     { return KindU32 }
func (I32) Kind() Kind     { return KindI32 }
func (U64) Kind() Kind     { return KindU64 }
func (I64) Kind() Kind     { return KindI64 }
func (U128) Kind() Kind    { return KindU128 }
func (I128) Kind() Kind    { return KindI128 }
func (U256) Kind() Kind    { return KindU256 }
func (Symbol) Kind() Kind  { return KindSymbol }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }
func (Address) Kind() Kind { return KindAddress }
func (Vec) Kind() Kind     { return KindVec }
func (Map) Kind() Kind     { return KindMap }

func (Void) sealed()    {}
func (Bool) sealed()    {}
func (U32) sealed()     {}
func (I32) sealed()     {}
func (U64) sealed()     {}
func (I64) sealed()     {}
func (U128) sealed()    {}
func (I128) sealed()    {}
func (U256) sealed()    {}
func (Symbol) sealed()  {}
func (String) sealed()  {}
func (Bytes) sealed()   {}
func (Address) sealed() {}
func (Vec) sealed()     {}
func (Map) sealed()     {}

// NewU128 returns a U128, failing if value needs more than 128 bits.
func NewU128(value *big.Int) (U128, error) {
	if value == nil || value.Sign() < 0 {
		return U128{}, fmt.Errorf("u128: negative or nil value")
	}
	v, overflow := uint256.FromBig(value)
	if overflow || v.BitLen() > 128 {
		return U128{}, fmt.Errorf("u128: %s overflows 128 bits", value)
	}
	return U128{v: *v}, nil
}

// U128FromUint64 is a convenience constructor for small values.
func U128FromUint64(value uint64) U128 {
	var u U128
	u.v.SetUint64(value)
	return u
}

// BigInt returns a copy of the value.
func (u U128) BigInt() *big.Int { return u.v.ToBig() }

// Uint256 returns a copy of the value.
func (u U128) Uint256() *uint256.Int { return new(uint256.Int).Set(&u.v) }

func (u U128) String() string { return u.v.Dec() }

// NewI128 returns an I128, failing if value does not fit in 128 signed bits.
func NewI128(value *big.Int) (I128, error) {
	if value == nil {
		return I128{}, fmt.Errorf("i128: nil value")
	}
	if value.Cmp(minI128) < 0 || value.Cmp(maxI128) > 0 {
		return I128{}, fmt.Errorf("i128: %s out of range", value)
	}
	var i I128
	i.v.Set(value)
	return i, nil
}

// BigInt returns a copy of the value.
func (i I128) BigInt() *big.Int { return new(big.Int).Set(&i.v) }

func (i I128) String() string { return i.v.String() }

// NewU256 returns a U256, failing on negative or overflowing input.
func NewU256(value *big.Int) (U256, error) {
	if value == nil || value.Sign() < 0 {
		return U256{}, fmt.Errorf("u256: negative or nil value")
	}
	v, overflow := uint256.FromBig(value)
	if overflow {
		return U256{}, fmt.Errorf("u256: %s overflows 256 bits", value)
	}
	return U256{v: *v}, nil
}

// BigInt returns a copy of the value.
func (u U256) BigInt() *big.Int { return u.v.ToBig() }

func (u U256) String() string { return u.v.Dec() }

// NewSymbol validates the ledger's symbol alphabet and length.
func NewSymbol(s string) (Symbol, error) {
	if len(s) > MaxSymbolLen {
		return "", fmt.Errorf("symbol %q longer than %d", s, MaxSymbolLen)
	}
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("symbol %q has invalid characters", s)
	}
	return Symbol(s), nil
}

// NewBytes copies b.
func NewBytes(b []byte) Bytes {
	return Bytes{b: append([]byte(nil), b...)}
}

// Bytes returns a copy of the payload.
func (b Bytes) Bytes() []byte { return append([]byte(nil), b.b...) }

func (b Bytes) Len() int { return len(b.b) }

// NewAddress wraps a validated identity.
func NewAddress(addr strkey.Address) Address {
	return Address{addr: addr}
}

// Identity returns the wrapped identity.
func (a Address) Identity() strkey.Address { return a.addr }

func (a Address) String() string { return a.addr.String() }

// NewVec copies items.
func NewVec(items ...Value) Vec {
	return Vec{items: append([]Value(nil), items...)}
}

// Items returns a copy of the list.
func (v Vec) Items() []Value { return append([]Value(nil), v.items...) }

func (v Vec) Len() int { return len(v.items) }

// At returns the i-th item.
func (v Vec) At(i int) Value { return v.items[i] }

// NewMap copies entries.
func NewMap(entries ...MapEntry) Map {
	return Map{entries: append([]MapEntry(nil), entries...)}
}

// Entries returns a copy of the entries.
func (m Map) Entries() []MapEntry { return append([]MapEntry(nil), m.entries...) }

// Lookup returns the value stored under a symbol key.
func (m Map) Lookup(key string) (Value, bool) {
	for _, entry := range m.entries {
		if sym, ok := entry.Key.(Symbol); ok && string(sym) == key {
			return entry.Val, true
		}
	}
	return nil, false
}

// Equal reports whether two values have the same tag and payload.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Void:
		return true
	case Bool, U32, I32, U64, I64, Symbol, String:
		return a == b
	case U128:
		bv := b.(U128)
		return av.v.Eq(&bv.v)
	case I128:
		bv := b.(I128)
		return av.v.Cmp(&bv.v) == 0
	case U256:
		bv := b.(U256)
		return av.v.Eq(&bv.v)
	case Bytes:
		bv := b.(Bytes)
		return string(av.b) == string(bv.b)
	case Address:
		return av.addr == b.(Address).addr
	case Vec:
		bv := b.(Vec)
		if len(av.items) != len(bv.items) {
			return false
		}
		for i := range av.items {
			if !Equal(av.items[i], bv.items[i]) {
				return false
			}
		}
		return true
	case Map:
		bv := b.(Map)
		if len(av.entries) != len(bv.entries) {
			return false
		}
		for i := range av.entries {
			if !Equal(av.entries[i].Key, bv.entries[i].Key) || !Equal(av.entries[i].Val, bv.entries[i].Val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
