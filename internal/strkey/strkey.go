package strkey

import (
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	sdkstrkey "github.com/stellar/go-stellar-sdk/strkey"
)

// VersionByte is the leading byte of an encoded identity. It determines the
// first character of the text form.
type VersionByte = sdkstrkey.VersionByte

const (
	// VersionAccount encodes ed25519 account public keys ("G...").
	VersionAccount = sdkstrkey.VersionByteAccountID
	// VersionContract encodes contract identifiers ("C...").
	VersionContract = sdkstrkey.VersionByteContract
)

const (
	payloadLen = 32
	// EncodedLen is the length of the text form of an account or contract identity.
	EncodedLen = 56
)

// MalformedIdentityError is returned when an identity fails length, alphabet,
// version or checksum validation.
type MalformedIdentityError struct {
	Input  string
	Reason string
}

func (e MalformedIdentityError) Error() string {
	return fmt.Sprintf("malformed identity (%s): %s", e.Input, e.Reason)
}

// Address is a validated account or contract identity.
type Address struct {
	version VersionByte
	payload [payloadLen]byte
}

// Decode parses the text form of an account or contract identity.
func Decode(input string) (Address, error) {
	input = strings.TrimSpace(input)
	if len(input) != EncodedLen {
		return Address{}, MalformedIdentityError{Input: input, Reason: fmt.Sprintf("length %d, want %d", len(input), EncodedLen)}
	}

	version, payload, err := sdkstrkey.DecodeAny(input)
	if err != nil {
		return Address{}, MalformedIdentityError{Input: input, Reason: err.Error()}
	}
	if version != VersionAccount && version != VersionContract {
		return Address{}, MalformedIdentityError{Input: input, Reason: fmt.Sprintf("unsupported version byte %d", byte(version))}
	}
	if len(payload) != payloadLen {
		return Address{}, MalformedIdentityError{Input: input, Reason: fmt.Sprintf("payload length %d", len(payload))}
	}

	var addr Address
	addr.version = version
	copy(addr.payload[:], payload)

	if version == VersionAccount {
		if err := validatePublicKey(addr.payload[:]); err != nil {
			return Address{}, MalformedIdentityError{Input: input, Reason: err.Error()}
		}
	}
	return addr, nil
}

// MustDecode is Decode for package-level constants and tests.
func MustDecode(input string) Address {
	addr, err := Decode(input)
	if err != nil {
		panic(err)
	}
	return addr
}

// AccountFromPublicKey builds an account identity from a 32-byte ed25519 public key.
func AccountFromPublicKey(pub []byte) (Address, error) {
	if len(pub) != payloadLen {
		return Address{}, MalformedIdentityError{Reason: fmt.Sprintf("public key length %d", len(pub))}
	}
	if err := validatePublicKey(pub); err != nil {
		return Address{}, MalformedIdentityError{Reason: err.Error()}
	}
	var addr Address
	addr.version = VersionAccount
	copy(addr.payload[:], pub)
	return addr, nil
}

// ContractFromID builds a contract identity from its 32-byte hash.
func ContractFromID(id [32]byte) Address {
	return Address{version: VersionContract, payload: id}
}

func validatePublicKey(pub []byte) error {
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return nil
}

// String returns the checksummed text form.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return sdkstrkey.MustEncode(a.version, a.payload[:])
}

// Version returns the identity kind.
func (a Address) Version() VersionByte { return a.version }

// Payload returns the raw 32 bytes behind the identity.
func (a Address) Payload() [32]byte { return a.payload }

func (a Address) IsAccount() bool  { return a.version == VersionAccount }
func (a Address) IsContract() bool { return a.version == VersionContract }
func (a Address) IsZero() bool     { return a.version == 0 }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}
