package batch

import (
	"crypto/ed25519"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammclient/internal/auth"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

func contract(seed byte) strkey.Address {
	var id [32]byte
	id[0] = seed
	return strkey.ContractFromID(id)
}

func signer(t *testing.T) strkey.Address {
	t.Helper()
	addr, err := strkey.AccountFromPublicKey(ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)).Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return addr
}

func TestComposePreservesOrderAfterMutation(t *testing.T) {
	user := signer(t)
	pool := contract(1)
	executor := contract(2)

	calls := []Call{
		{Contract: pool, Method: "withdraw", Args: []scval.Value{scval.NewAddress(user), scval.U128FromUint64(100)}},
		{Contract: pool, Method: "claim", Args: []scval.Value{scval.NewAddress(user)}},
	}

	top, root, err := Compose(executor, user, calls, true, auth.CredentialSourceAccount)
	require.NoError(t, err)

	calls[0], calls[1] = calls[1], calls[0]
	calls[1].Args[1] = scval.U128FromUint64(1)

	decoded, atomic, err := Decode(top)
	require.NoError(t, err)
	assert.True(t, atomic)
	require.Len(t, decoded, 2)
	assert.Equal(t, "withdraw", decoded[0].Method)
	assert.Equal(t, "claim", decoded[1].Method)
	assert.True(t, scval.Equal(scval.U128FromUint64(100), decoded[0].Args[1]))

	subs := root.SubInvocations()
	require.Len(t, subs, 2)
	assert.Equal(t, "withdraw", subs[0].Method())
	assert.Equal(t, "claim", subs[1].Method())
	assert.Equal(t, executor, root.Contract())
	assert.Equal(t, ExecutorMethod, root.Method())
}

func TestComposeCarriesSubAuthorizations(t *testing.T) {
	user := signer(t)
	pool := contract(1)
	tokenA, tokenB := contract(3), contract(4)

	leafA, err := auth.BuildTransferAuthorization(user, tokenA, pool, decimal.NewFromInt(2), 7)
	require.NoError(t, err)
	leafB, err := auth.BuildTransferAuthorization(user, tokenB, pool, decimal.NewFromInt(5), 7)
	require.NoError(t, err)

	_, root, err := Compose(contract(2), user, []Call{
		{Contract: pool, Method: "deposit", Args: []scval.Value{scval.NewAddress(user)}, SubAuth: []auth.Node{leafA}},
		{Contract: pool, Method: "deposit", Args: []scval.Value{scval.NewAddress(user)}, SubAuth: []auth.Node{leafB}},
	}, false, auth.CredentialSignature)
	require.NoError(t, err)

	assert.True(t, auth.Covers(root, tokenA, big.NewInt(20000000)))
	assert.True(t, auth.Covers(root, tokenB, big.NewInt(50000000)))
	assert.Equal(t, 5, root.Size())
	assert.Equal(t, auth.CredentialSignature, root.Credential())
}

func TestComposeValidation(t *testing.T) {
	user := signer(t)

	_, _, err := Compose(contract(2), user, nil, true, auth.CredentialSourceAccount)
	assert.True(t, errors.Is(err, ErrEmptyBatch))

	_, _, err = Compose(user, user, []Call{{Contract: contract(1), Method: "claim"}}, true, auth.CredentialSourceAccount)
	require.Error(t, err)

	_, _, err = Compose(contract(2), user, []Call{{Contract: contract(1), Method: "bad method"}}, true, auth.CredentialSourceAccount)
	require.Error(t, err)
}

func TestDecodeRejectsNilArguments(t *testing.T) {
	top := auth.Call{Method: ExecutorMethod, Args: []scval.Value{nil, nil, nil}}
	require.NotPanics(t, func() {
		_, _, err := Decode(top)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "got nil")
	})

	top.Args[1] = scval.NewVec()
	_, _, err := Decode(top)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atomic flag")
}
