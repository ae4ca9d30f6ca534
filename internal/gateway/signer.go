package gateway

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ammclient/internal/ledger"
	"ammclient/internal/strkey"
)

// Signer turns a simulated, fee-populated transaction into a signed one.
// It returns ErrSigningCancelled or a SigningRejectedError when it will not sign.
type Signer interface {
	Address() strkey.Address
	Sign(ctx context.Context, tx ledger.Transaction, hash common.Hash) (ledger.SignedTransaction, error)
}

// KeySigner signs with a local ed25519 key.
type KeySigner struct {
	key  ed25519.PrivateKey
	addr strkey.Address
}

// NewKeySigner derives the signer's account identity from key.
func NewKeySigner(key ed25519.PrivateKey) (*KeySigner, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519 key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	addr, err := strkey.AccountFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeySigner{key: key, addr: addr}, nil
}

// Address returns the signer's account.
func (s *KeySigner) Address() strkey.Address { return s.addr }

// Sign signs hash.
func (s *KeySigner) Sign(ctx context.Context, tx ledger.Transaction, hash common.Hash) (ledger.SignedTransaction, error) {
	if err := ctx.Err(); err != nil {
		return ledger.SignedTransaction{}, err
	}
	return ledger.SignedTransaction{
		Tx:   tx,
		Hash: hash,
		Signatures: []ledger.Signature{{
			Signer:    s.addr,
			Signature: ed25519.Sign(s.key, hash.Bytes()),
		}},
	}, nil
}
