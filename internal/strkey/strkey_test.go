package strkey

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T, seedByte byte) Address {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	addr, err := AccountFromPublicKey(pub)
	require.NoError(t, err)
	return addr
}

func TestAccountRoundTrip(t *testing.T) {
	addr := testAccount(t, 7)
	text := addr.String()

	require.Len(t, text, EncodedLen)
	assert.True(t, strings.HasPrefix(text, "G"))

	decoded, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, addr, decoded)
	assert.True(t, decoded.IsAccount())
	assert.False(t, decoded.IsContract())
}

func TestContractRoundTrip(t *testing.T) {
	var id [32]byte
	for i := range id {
		id[i] = byte(i)
	}
	addr := ContractFromID(id)
	text := addr.String()

	assert.True(t, strings.HasPrefix(text, "C"))

	decoded, err := Decode(text)
	require.NoError(t, err)
	assert.True(t, decoded.IsContract())
	assert.Equal(t, id, decoded.Payload())
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	text := testAccount(t, 3).String()

	replacement := byte('A')
	if text[20] == 'A' {
		replacement = 'B'
	}
	corrupted := text[:20] + string(replacement) + text[21:]

	_, err := Decode(corrupted)
	require.Error(t, err)

	var malformed MalformedIdentityError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, corrupted, malformed.Input)
	assert.NotEmpty(t, malformed.Reason)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	valid := testAccount(t, 9).String()

	cases := map[string]string{
		"short":     valid[:EncodedLen-1],
		"long":      valid + "A",
		"lowercase": strings.ToLower(valid),
		"empty":     "",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(input)
			var malformed MalformedIdentityError
			require.True(t, errors.As(err, &malformed), "expected MalformedIdentityError, got %v", err)
		})
	}
}

func TestAccountFromPublicKeyLength(t *testing.T) {
	_, err := AccountFromPublicKey(make([]byte, 31))
	require.Error(t, err)
}

func TestTextMarshalling(t *testing.T) {
	addr := testAccount(t, 1)

	text, err := addr.MarshalText()
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, addr, decoded)
}

func TestDecodeKnownAccount(t *testing.T) {
	const text = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"

	addr, err := Decode(text)
	require.NoError(t, err)
	assert.True(t, addr.IsAccount())
	assert.Equal(t, text, addr.String())

	contract := ContractFromID(addr.Payload())
	decoded, err := Decode(contract.String())
	require.NoError(t, err)
	assert.True(t, decoded.IsContract())
	assert.Equal(t, addr.Payload(), decoded.Payload())
}

func TestDecodeRejectsOtherVersions(t *testing.T) {
	// A secret seed is valid text but not an identity.
	_, err := Decode("SCZANGBA5YHTNYVVV4C3U252E2B6P6F5T3U6MM63WBSBZATAQI3EBTQ4")
	var malformed MalformedIdentityError
	require.True(t, errors.As(err, &malformed), "got %v", err)
}
