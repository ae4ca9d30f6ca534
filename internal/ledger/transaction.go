// Package ledger holds the transaction and RPC result shapes exchanged with
// the ledger node.
package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ammclient/internal/auth"
	"ammclient/internal/strkey"
)

// OperationKind is the single host operation a contract transaction carries.
type OperationKind string

const (
	OpInvokeContract   OperationKind = "invoke_contract"
	OpRestoreFootprint OperationKind = "restore_footprint"
)

// Footprint lists the ledger keys a transaction reads and writes.
type Footprint struct {
	ReadOnly  []string `json:"readOnly"`
	ReadWrite []string `json:"readWrite"`
}

// Keys returns every key in the footprint, read-write first.
func (f Footprint) Keys() []string {
	keys := make([]string, 0, len(f.ReadOnly)+len(f.ReadWrite))
	keys = append(keys, f.ReadWrite...)
	return append(keys, f.ReadOnly...)
}

// Resources is the resource declaration attached after simulation.
type Resources struct {
	Footprint    Footprint `json:"footprint"`
	Instructions uint32    `json:"instructions"`
	ReadBytes    uint32    `json:"readBytes"`
	WriteBytes   uint32    `json:"writeBytes"`
	ResourceFee  int64     `json:"resourceFee,string"`
}

// Transaction is an unsigned contract transaction. Invoke is set for
// OpInvokeContract; Resources is set once simulated, or up front for a
// restore.
type Transaction struct {
	Source    strkey.Address
	Sequence  int64
	Fee       int64
	Kind      OperationKind
	Invoke    *auth.Call
	Auth      []auth.Node
	Resources *Resources
}

// NewInvoke builds a transaction invoking call. sequence is the account's
// next sequence number.
func NewInvoke(source strkey.Address, sequence, baseFee int64, call auth.Call) (Transaction, error) {
	if !source.IsAccount() {
		return Transaction{}, fmt.Errorf("transaction source %q is not an account", source)
	}
	c := call.Clone()
	return Transaction{
		Source:   source,
		Sequence: sequence,
		Fee:      baseFee,
		Kind:     OpInvokeContract,
		Invoke:   &c,
	}, nil
}

// NewRestore builds the transaction that re-admits the archived entries
// named by preamble.
func NewRestore(source strkey.Address, sequence, baseFee int64, preamble RestorePreamble) (Transaction, error) {
	if !source.IsAccount() {
		return Transaction{}, fmt.Errorf("transaction source %q is not an account", source)
	}
	res := preamble.Resources
	return Transaction{
		Source:    source,
		Sequence:  sequence,
		Fee:       baseFee + preamble.MinResourceFee,
		Kind:      OpRestoreFootprint,
		Resources: &res,
	}, nil
}

// WithSimulation returns a copy carrying the simulated resources and
// authorization entries, with the fee raised to baseFee plus the minimum
// resource fee. Authorization entries already set on tx are kept.
func (tx Transaction) WithSimulation(sim SimulationResult, baseFee int64) Transaction {
	out := tx
	if sim.Resources != nil {
		res := *sim.Resources
		out.Resources = &res
	}
	if len(out.Auth) == 0 && len(sim.Auth) > 0 {
		out.Auth = append([]auth.Node(nil), sim.Auth...)
	}
	out.Fee = baseFee + sim.MinResourceFee
	return out
}

type wireTransaction struct {
	Source    strkey.Address `json:"source"`
	Sequence  int64          `json:"sequence,string"`
	Fee       int64          `json:"fee,string"`
	Kind      OperationKind  `json:"kind"`
	Invoke    *auth.Node     `json:"invoke,omitempty"`
	Auth      []auth.Node    `json:"auth,omitempty"`
	Resources *Resources     `json:"resources,omitempty"`
}

// MarshalJSON implements json.Marshaler. The invoked call travels as an
// authorization node without credential or children.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	wire := wireTransaction{
		Source:    tx.Source,
		Sequence:  tx.Sequence,
		Fee:       tx.Fee,
		Kind:      tx.Kind,
		Auth:      tx.Auth,
		Resources: tx.Resources,
	}
	if tx.Invoke != nil {
		node := auth.NewNode(*tx.Invoke, "")
		wire.Invoke = &node
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var wire wireTransaction
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}
	*tx = Transaction{
		Source:    wire.Source,
		Sequence:  wire.Sequence,
		Fee:       wire.Fee,
		Kind:      wire.Kind,
		Auth:      wire.Auth,
		Resources: wire.Resources,
	}
	if wire.Invoke != nil {
		call := wire.Invoke.Call()
		tx.Invoke = &call
	}
	return nil
}

// Hash is the signature payload: sha256(sha256(passphrase) || envelope).
func (tx Transaction) Hash(networkPassphrase string) (common.Hash, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode transaction: %w", err)
	}
	network := sha256.Sum256([]byte(networkPassphrase))
	h := sha256.New()
	h.Write(network[:])
	h.Write(body)
	return common.BytesToHash(h.Sum(nil)), nil
}

// Signature is one signer's signature over a transaction hash.
type Signature struct {
	Signer    strkey.Address `json:"signer"`
	Signature hexutil.Bytes  `json:"signature"`
}

// SignedTransaction is a transaction ready to send.
type SignedTransaction struct {
	Tx         Transaction `json:"tx"`
	Hash       common.Hash `json:"hash"`
	Signatures []Signature `json:"signatures"`
}
