// Package codec converts native amounts and identities to ledger wire values.
//
// Amount scaling is done with arbitrary-precision decimals and always
// truncates toward zero, so an encoded amount never exceeds what the caller
// asked for.
package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// MaxDecimals bounds per-asset precision.
const MaxDecimals = 38

// EncodingError is returned when a native value cannot be represented at the
// required precision or wire tag.
type EncodingError struct {
	Field  string
	Reason string
	Err    error
}

func (e EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("encoding: %s", e.Reason)
	}
	return fmt.Sprintf("encoding %s: %s", e.Field, e.Reason)
}

func (e EncodingError) Unwrap() error { return e.Err }

// IsEncodingError reports whether err is or wraps an EncodingError.
func IsEncodingError(err error) bool {
	var target EncodingError
	return errors.As(err, &target)
}

// ScaleAmount converts a human amount to its integer ledger representation,
// truncating digits beyond the asset precision.
func ScaleAmount(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if decimals > MaxDecimals {
		return nil, EncodingError{Field: "amount", Reason: fmt.Sprintf("decimals %d exceed %d", decimals, MaxDecimals)}
	}
	if amount.IsNegative() {
		return nil, EncodingError{Field: "amount", Reason: fmt.Sprintf("negative amount %s", amount)}
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// UnscaleAmount converts an integer ledger amount back to a human amount.
func UnscaleAmount(raw *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// EncodeAmount scales a human amount to an unsigned 128-bit wire integer.
func EncodeAmount(amount decimal.Decimal, decimals uint8) (scval.U128, error) {
	raw, err := ScaleAmount(amount, decimals)
	if err != nil {
		return scval.U128{}, err
	}
	v, err := scval.NewU128(raw)
	if err != nil {
		return scval.U128{}, EncodingError{Field: "amount", Reason: "exceeds u128", Err: err}
	}
	return v, nil
}

// EncodeSignedAmount scales a human amount to a signed 128-bit wire integer,
// the width token transfers use. Negative amounts are still rejected.
func EncodeSignedAmount(amount decimal.Decimal, decimals uint8) (scval.I128, error) {
	raw, err := ScaleAmount(amount, decimals)
	if err != nil {
		return scval.I128{}, err
	}
	v, err := scval.NewI128(raw)
	if err != nil {
		return scval.I128{}, EncodingError{Field: "amount", Reason: "exceeds i128", Err: err}
	}
	return v, nil
}

// EncodeAmountString parses and encodes a textual amount.
func EncodeAmountString(amount string, decimals uint8) (scval.U128, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return scval.U128{}, EncodingError{Field: "amount", Reason: fmt.Sprintf("invalid decimal %q", amount), Err: err}
	}
	return EncodeAmount(d, decimals)
}

// EncodeAmountVec encodes a list of amounts, each with its own precision.
// Callers pass amounts already in the pool's canonical token order.
func EncodeAmountVec(amounts []decimal.Decimal, decimals []uint8) (scval.Vec, error) {
	if len(amounts) != len(decimals) {
		return scval.Vec{}, EncodingError{Field: "amounts", Reason: fmt.Sprintf("%d amounts for %d decimals", len(amounts), len(decimals))}
	}
	items := make([]scval.Value, 0, len(amounts))
	for i, amount := range amounts {
		v, err := EncodeAmount(amount, decimals[i])
		if err != nil {
			return scval.Vec{}, fmt.Errorf("amounts[%d]: %w", i, err)
		}
		items = append(items, v)
	}
	return scval.NewVec(items...), nil
}

// DecodeAmount is the inverse of EncodeAmount. It accepts any integer tag.
func DecodeAmount(v scval.Value, decimals uint8) (decimal.Decimal, error) {
	raw, err := DecodeInteger(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return UnscaleAmount(raw, decimals), nil
}

// DecodeAmountVec decodes a vector of integer amounts.
func DecodeAmountVec(v scval.Value, decimals []uint8) ([]decimal.Decimal, error) {
	vec, ok := v.(scval.Vec)
	if !ok {
		return nil, EncodingError{Field: "amounts", Reason: fmt.Sprintf("expected vec, got %s", kindOf(v))}
	}
	if vec.Len() != len(decimals) {
		return nil, EncodingError{Field: "amounts", Reason: fmt.Sprintf("%d amounts for %d decimals", vec.Len(), len(decimals))}
	}
	out := make([]decimal.Decimal, 0, vec.Len())
	for i, item := range vec.Items() {
		amount, err := DecodeAmount(item, decimals[i])
		if err != nil {
			return nil, fmt.Errorf("amounts[%d]: %w", i, err)
		}
		out = append(out, amount)
	}
	return out, nil
}

// DecodeInteger extracts an integer of any width.
func DecodeInteger(v scval.Value) (*big.Int, error) {
	switch val := v.(type) {
	case scval.U32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case scval.I32:
		return big.NewInt(int64(val)), nil
	case scval.U64:
		return new(big.Int).SetUint64(uint64(val)), nil
	case scval.I64:
		return big.NewInt(int64(val)), nil
	case scval.U128:
		return val.BigInt(), nil
	case scval.I128:
		return val.BigInt(), nil
	case scval.U256:
		return val.BigInt(), nil
	default:
		return nil, EncodingError{Field: "integer", Reason: fmt.Sprintf("expected integer, got %s", kindOf(v))}
	}
}

// EncodeIdentity validates an account or contract identity.
func EncodeIdentity(identity string) (scval.Address, error) {
	addr, err := strkey.Decode(identity)
	if err != nil {
		return scval.Address{}, EncodingError{Field: "identity", Reason: err.Error(), Err: err}
	}
	return scval.NewAddress(addr), nil
}

// DecodeIdentity returns the text form of an address value.
func DecodeIdentity(v scval.Value) (string, error) {
	addr, ok := v.(scval.Address)
	if !ok {
		return "", EncodingError{Field: "identity", Reason: fmt.Sprintf("expected address, got %s", kindOf(v))}
	}
	return addr.String(), nil
}

// EncodeTick encodes a tick index as the ledger's signed 32-bit integer.
func EncodeTick(tick int32) scval.I32 {
	return scval.I32(tick)
}

// DecodeTick extracts a tick from an i32 value.
func DecodeTick(v scval.Value) (int32, error) {
	tick, ok := v.(scval.I32)
	if !ok {
		return 0, EncodingError{Field: "tick", Reason: fmt.Sprintf("expected i32, got %s", kindOf(v))}
	}
	return int32(tick), nil
}

// EncodeU32 encodes an unsigned 32-bit integer, e.g. a fee fraction.
func EncodeU32(n uint32) scval.U32 {
	return scval.U32(n)
}

// EncodeBool encodes a boolean.
func EncodeBool(b bool) scval.Bool {
	return scval.Bool(b)
}

// DecodeBool extracts a boolean.
func DecodeBool(v scval.Value) (bool, error) {
	b, ok := v.(scval.Bool)
	if !ok {
		return false, EncodingError{Field: "bool", Reason: fmt.Sprintf("expected bool, got %s", kindOf(v))}
	}
	return bool(b), nil
}

// EncodeHash encodes a 32-byte hash, e.g. a pool index.
func EncodeHash(hash []byte) (scval.Bytes, error) {
	if len(hash) != 32 {
		return scval.Bytes{}, EncodingError{Field: "hash", Reason: fmt.Sprintf("length %d, want 32", len(hash))}
	}
	return scval.NewBytes(hash), nil
}

// DecodeHash extracts a 32-byte hash.
func DecodeHash(v scval.Value) ([32]byte, error) {
	var out [32]byte
	b, ok := v.(scval.Bytes)
	if !ok {
		return out, EncodingError{Field: "hash", Reason: fmt.Sprintf("expected bytes, got %s", kindOf(v))}
	}
	if b.Len() != 32 {
		return out, EncodingError{Field: "hash", Reason: fmt.Sprintf("length %d, want 32", b.Len())}
	}
	copy(out[:], b.Bytes())
	return out, nil
}

// EncodeSymbol encodes a method or enum name as a symbol.
func EncodeSymbol(s string) (scval.Symbol, error) {
	sym, err := scval.NewSymbol(s)
	if err != nil {
		return "", EncodingError{Field: "symbol", Reason: err.Error(), Err: err}
	}
	return sym, nil
}

// EncodeString encodes free text. Method names use EncodeSymbol instead.
func EncodeString(s string) scval.String {
	return scval.String(s)
}

// DecodeString accepts either a string or a symbol.
func DecodeString(v scval.Value) (string, error) {
	switch val := v.(type) {
	case scval.String:
		return string(val), nil
	case scval.Symbol:
		return string(val), nil
	default:
		return "", EncodingError{Field: "string", Reason: fmt.Sprintf("expected string, got %s", kindOf(v))}
	}
}

func kindOf(v scval.Value) scval.Kind {
	if v == nil {
		return "nil"
	}
	return v.Kind()
}
