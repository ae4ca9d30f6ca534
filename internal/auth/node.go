// Package auth builds the invocation trees the ledger uses to check which
// contract calls a signature permits.
//
// Nodes are immutable values built bottom-up: leaves first, then the root
// that carries them as sub-invocations.
package auth

import (
	"encoding/json"
	"fmt"

	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// CredentialKind says how the signer proves authorization for a tree.
type CredentialKind string

const (
	// CredentialSourceAccount reuses the transaction source account's signature.
	CredentialSourceAccount CredentialKind = "source_account"
	// CredentialSignature requires a separate signature over the tree.
	CredentialSignature CredentialKind = "signature"
)

// CredentialFor picks the credential kind for a signer on a transaction sent
// from source.
func CredentialFor(signer, source strkey.Address) CredentialKind {
	if signer == source {
		return CredentialSourceAccount
	}
	return CredentialSignature
}

// Call is a single contract invocation.
type Call struct {
	Contract strkey.Address
	Method   string
	Args     []scval.Value
}

// NewCall validates the method name and copies args.
func NewCall(contract strkey.Address, method string, args ...scval.Value) (Call, error) {
	if !contract.IsContract() {
		return Call{}, fmt.Errorf("call target %q is not a contract", contract)
	}
	if _, err := scval.NewSymbol(method); err != nil || method == "" {
		return Call{}, fmt.Errorf("invalid method name %q", method)
	}
	return Call{Contract: contract, Method: method, Args: append([]scval.Value(nil), args...)}, nil
}

// Clone returns a copy that shares no slices with c.
func (c Call) Clone() Call {
	return Call{Contract: c.Contract, Method: c.Method, Args: append([]scval.Value(nil), c.Args...)}
}

// Node is one invocation in an authorization tree.
type Node struct {
	call       Call
	credential CredentialKind
	subs       []Node
}

// NewNode builds a node. Slices are copied.
func NewNode(call Call, credential CredentialKind, subs ...Node) Node {
	return Node{
		call:       call.Clone(),
		credential: credential,
		subs:       append([]Node(nil), subs...),
	}
}

func (n Node) Call() Call                 { return n.call.Clone() }
func (n Node) Contract() strkey.Address   { return n.call.Contract }
func (n Node) Method() string             { return n.call.Method }
func (n Node) Args() []scval.Value        { return append([]scval.Value(nil), n.call.Args...) }
func (n Node) Credential() CredentialKind { return n.credential }

// SubInvocations returns a copy of the child nodes.
func (n Node) SubInvocations() []Node { return append([]Node(nil), n.subs...) }

// Walk visits the tree depth-first, parents before children. Returning false
// from fn skips the node's children.
func (n Node) Walk(fn func(depth int, node Node) bool) {
	n.walk(0, fn)
}

func (n Node) walk(depth int, fn func(int, Node) bool) {
	if !fn(depth, n) {
		return
	}
	for _, sub := range n.subs {
		sub.walk(depth+1, fn)
	}
}

// Size counts the nodes in the tree.
func (n Node) Size() int {
	count := 0
	n.Walk(func(int, Node) bool {
		count++
		return true
	})
	return count
}

type wireNode struct {
	Contract       strkey.Address `json:"contract"`
	Function       string         `json:"function"`
	Args           []scval.Raw    `json:"args"`
	Credential     CredentialKind `json:"credential"`
	SubInvocations []Node         `json:"sub_invocations"`
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	subs := n.subs
	if subs == nil {
		subs = []Node{}
	}
	return json.Marshal(wireNode{
		Contract:       n.call.Contract,
		Function:       n.call.Method,
		Args:           scval.List(n.call.Args),
		Credential:     n.credential,
		SubInvocations: subs,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var wire wireNode
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode auth node: %w", err)
	}
	*n = Node{
		call: Call{
			Contract: wire.Contract,
			Method:   wire.Function,
			Args:     scval.Values(wire.Args),
		},
		credential: wire.Credential,
		subs:       wire.SubInvocations,
	}
	return nil
}
