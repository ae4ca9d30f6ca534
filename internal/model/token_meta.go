package model

// NativeTokenID marks the ledger's native asset in token lists.
const NativeTokenID = "native"

// Token captures a resolved asset. Two tokens are equal iff their IDs match.
type Token struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Decimals uint8  `json:"decimals"`
}

// Equal compares tokens by identifier only.
func (t Token) Equal(other Token) bool {
	return t.ID == other.ID
}

// DecimalsOf returns the precision of each token, preserving order.
func DecimalsOf(tokens []Token) []uint8 {
	out := make([]uint8, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, token.Decimals)
	}
	return out
}
