package auth

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"ammclient/internal/codec"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// TransferMethod is the token interface method that moves funds.
const TransferMethod = "transfer"

// Transfer is one asset movement a contract call pulls from the signer.
type Transfer struct {
	Token    strkey.Address
	Decimals uint8
	Amount   decimal.Decimal
}

// BuildTransferAuthorization builds a leaf authorizing token.transfer(signer, to, amount).
// The amount is truncated to the token's precision, never rounded up.
func BuildTransferAuthorization(signer, token, to strkey.Address, amount decimal.Decimal, decimals uint8) (Node, error) {
	if signer.IsZero() || to.IsZero() {
		return Node{}, codec.EncodingError{Field: "transfer", Reason: "missing signer or recipient"}
	}
	encoded, err := codec.EncodeSignedAmount(amount, decimals)
	if err != nil {
		return Node{}, fmt.Errorf("transfer amount: %w", err)
	}
	call, err := NewCall(token, TransferMethod,
		scval.NewAddress(signer),
		scval.NewAddress(to),
		encoded,
	)
	if err != nil {
		return Node{}, err
	}
	return NewNode(call, CredentialSourceAccount), nil
}

// BuildRootAuthorization builds the root node for a top-level call, carrying
// the sub-invocations the call triggers on the signer's behalf.
func BuildRootAuthorization(top Call, credential CredentialKind, subs ...Node) Node {
	return NewNode(top, credential, subs...)
}

// BuildDepositAuthorization builds the root for a call that pulls each
// transfer from signer into pool. Zero amounts get no leaf.
func BuildDepositAuthorization(signer, pool strkey.Address, top Call, credential CredentialKind, transfers []Transfer) (Node, error) {
	subs := make([]Node, 0, len(transfers))
	for i, transfer := range transfers {
		if transfer.Amount.IsNegative() {
			return Node{}, codec.EncodingError{Field: fmt.Sprintf("transfers[%d]", i), Reason: "negative amount"}
		}
		if transfer.Amount.IsZero() {
			continue
		}
		leaf, err := BuildTransferAuthorization(signer, transfer.Token, pool, transfer.Amount, transfer.Decimals)
		if err != nil {
			return Node{}, fmt.Errorf("transfers[%d]: %w", i, err)
		}
		// A positive amount below the token's precision truncates to zero.
		if amount, _ := transferAmount(leaf); amount.Sign() == 0 {
			continue
		}
		subs = append(subs, leaf)
	}
	return BuildRootAuthorization(top, credential, subs...), nil
}

// AuthorizedTransfers sums the amounts authorized by transfer leaves, per token contract.
func AuthorizedTransfers(root Node) map[strkey.Address]*big.Int {
	totals := make(map[strkey.Address]*big.Int)
	root.Walk(func(_ int, node Node) bool {
		amount, ok := transferAmount(node)
		if !ok {
			return true
		}
		total, exists := totals[node.Contract()]
		if !exists {
			total = new(big.Int)
			totals[node.Contract()] = total
		}
		total.Add(total, amount)
		return true
	})
	return totals
}

// Covers reports whether the tree authorizes at least required raw units of token.
func Covers(root Node, token strkey.Address, required *big.Int) bool {
	if required == nil || required.Sign() <= 0 {
		return true
	}
	total, ok := AuthorizedTransfers(root)[token]
	return ok && total.Cmp(required) >= 0
}

func transferAmount(node Node) (*big.Int, bool) {
	if node.Method() != TransferMethod {
		return nil, false
	}
	args := node.call.Args
	if len(args) != 3 {
		return nil, false
	}
	amount, err := codec.DecodeInteger(args[2])
	if err != nil {
		return nil, false
	}
	return amount, true
}
