package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ammclient/internal/ledger"
)

// ErrorKind is the stable classification of an on-ledger rejection,
// independent of the node's raw result codes.
type ErrorKind string

const (
	KindInsufficientAuthorization ErrorKind = "insufficient-authorization"
	KindBadSequence               ErrorKind = "bad-sequence"
	KindUnderfunded               ErrorKind = "underfunded"
	KindInsufficientFee           ErrorKind = "insufficient-fee"
	KindExpired                   ErrorKind = "expired"
	KindResourceLimit             ErrorKind = "resource-limit"
	KindContractFailure           ErrorKind = "contract-failure"
	KindMalformed                 ErrorKind = "malformed"
	KindUnknown                   ErrorKind = "unknown"
)

var resultCodeKinds = map[string]ErrorKind{
	"txBAD_AUTH":       KindInsufficientAuthorization,
	"txBAD_AUTH_EXTRA": KindInsufficientAuthorization,
	"opBAD_AUTH":       KindInsufficientAuthorization,

	"txBAD_SEQ":    KindBadSequence,
	"txNO_ACCOUNT": KindBadSequence,

	"txINSUFFICIENT_BALANCE": KindUnderfunded,
	"opUNDERFUNDED":          KindUnderfunded,

	"txINSUFFICIENT_FEE":                               KindInsufficientFee,
	"INVOKE_HOST_FUNCTION_INSUFFICIENT_REFUNDABLE_FEE": KindInsufficientFee,

	"txTOO_LATE":                          KindExpired,
	"txTOO_EARLY":                         KindExpired,
	"INVOKE_HOST_FUNCTION_ENTRY_ARCHIVED": KindExpired,

	"txSOROBAN_INVALID":                            KindResourceLimit,
	"INVOKE_HOST_FUNCTION_RESOURCE_LIMIT_EXCEEDED": KindResourceLimit,

	"txFAILED":                     KindContractFailure,
	"INVOKE_HOST_FUNCTION_TRAPPED": KindContractFailure,

	"txMALFORMED": KindMalformed,
	"opMALFORMED": KindMalformed,
}

// DecodeErrorKind maps a transaction or operation result code to its kind.
// Codes may be joined with "," when the node reports both levels; the first
// recognized code wins.
func DecodeErrorKind(code string) ErrorKind {
	for _, part := range strings.Split(code, ",") {
		if kind, ok := resultCodeKinds[strings.TrimSpace(part)]; ok {
			return kind
		}
	}
	return KindUnknown
}

var (
	// ErrTryAgainLater is returned when the node asks for a later resubmission.
	// Submission is never retried automatically.
	ErrTryAgainLater = errors.New("ledger node asked to try again later")

	// ErrSigningCancelled is returned by a Signer when the user declines.
	ErrSigningCancelled = errors.New("signing cancelled")

	// ErrInvalidTransition is returned when a flow step is called out of order.
	ErrInvalidTransition = errors.New("invalid transaction state transition")
)

// SigningRejectedError is returned by a Signer that refuses a transaction.
type SigningRejectedError struct {
	Reason string
}

func (e SigningRejectedError) Error() string {
	return fmt.Sprintf("signing rejected: %s", e.Reason)
}

// RestoreRequiredError signals that simulation found archived entries. The
// caller restores them with a separately signed transaction, then
// re-simulates.
type RestoreRequiredError struct {
	Preamble ledger.RestorePreamble
}

func (e RestoreRequiredError) Error() string {
	return fmt.Sprintf("restore required for %d ledger entries", len(e.Preamble.Resources.Footprint.Keys()))
}

// SimulationFailedError is a contract-level failure during a dry run.
type SimulationFailedError struct {
	Reason string
}

func (e SimulationFailedError) Error() string {
	return fmt.Sprintf("simulation failed: %s", e.Reason)
}

// SubmissionRejectedError is a decoded on-ledger rejection, either at send
// time or after inclusion.
type SubmissionRejectedError struct {
	Hash common.Hash
	Kind ErrorKind
	Code string
}

func (e SubmissionRejectedError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %s (%s)", e.Hash.Hex(), e.Kind, e.Code)
}

// PollTimeoutError means polling ran out of attempts. The transaction's
// fate is unknown, not negative.
type PollTimeoutError struct {
	Hash     common.Hash
	Attempts int
}

func (e PollTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s still pending after %d polls", e.Hash.Hex(), e.Attempts)
}

// IsRestoreRequired reports whether err is or wraps a RestoreRequiredError.
func IsRestoreRequired(err error) bool {
	var target RestoreRequiredError
	return errors.As(err, &target)
}

// IsPollTimeout reports whether err is or wraps a PollTimeoutError.
func IsPollTimeout(err error) bool {
	var target PollTimeoutError
	return errors.As(err, &target)
}
