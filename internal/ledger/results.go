package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"ammclient/internal/auth"
	"ammclient/internal/scval"
	"ammclient/internal/strkey"
)

// RestorePreamble is returned by simulation when archived entries must be
// restored before the call can run.
type RestorePreamble struct {
	Resources      Resources `json:"transactionData"`
	MinResourceFee int64     `json:"minResourceFee,string"`
}

// SimulationResult is the outcome of a dry run.
type SimulationResult struct {
	LatestLedger    uint32
	Success         bool
	Return          scval.Value
	Auth            []auth.Node
	Resources       *Resources
	MinResourceFee  int64
	RestorePreamble *RestorePreamble
	Error           string
}

type wireSimResult struct {
	Auth   []auth.Node `json:"auth"`
	Retval scval.Raw   `json:"retval"`
}

type wireSimulation struct {
	LatestLedger    uint32           `json:"latestLedger"`
	MinResourceFee  string           `json:"minResourceFee,omitempty"`
	TransactionData *Resources       `json:"transactionData,omitempty"`
	Results         []wireSimResult  `json:"results,omitempty"`
	RestorePreamble *RestorePreamble `json:"restorePreamble,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SimulationResult) UnmarshalJSON(data []byte) error {
	var wire wireSimulation
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode simulation: %w", err)
	}
	out := SimulationResult{
		LatestLedger:    wire.LatestLedger,
		Resources:       wire.TransactionData,
		RestorePreamble: wire.RestorePreamble,
		Error:           wire.Error,
		Success:         wire.Error == "",
	}
	if wire.MinResourceFee != "" {
		fee, err := strconv.ParseInt(wire.MinResourceFee, 10, 64)
		if err != nil {
			return fmt.Errorf("decode simulation fee: %w", err)
		}
		out.MinResourceFee = fee
	}
	if len(wire.Results) > 0 {
		out.Return = wire.Results[0].Retval.Value
		out.Auth = wire.Results[0].Auth
	}
	*r = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r SimulationResult) MarshalJSON() ([]byte, error) {
	wire := wireSimulation{
		LatestLedger:    r.LatestLedger,
		TransactionData: r.Resources,
		RestorePreamble: r.RestorePreamble,
		Error:           r.Error,
	}
	if r.MinResourceFee != 0 {
		wire.MinResourceFee = strconv.FormatInt(r.MinResourceFee, 10)
	}
	if r.Error == "" {
		wire.Results = []wireSimResult{{Auth: r.Auth, Retval: scval.Raw{Value: r.Return}}}
	}
	return json.Marshal(wire)
}

// SubmissionStatus is the node's immediate answer to sendTransaction.
type SubmissionStatus string

const (
	StatusPending       SubmissionStatus = "PENDING"
	StatusDuplicate     SubmissionStatus = "DUPLICATE"
	StatusTryAgainLater SubmissionStatus = "TRY_AGAIN_LATER"
	StatusError         SubmissionStatus = "ERROR"
)

// SendResult is the sendTransaction response.
type SendResult struct {
	Status       SubmissionStatus `json:"status"`
	Hash         common.Hash      `json:"hash"`
	LatestLedger uint32           `json:"latestLedger"`
	// ErrorCode is the transaction result code, set when Status is ERROR.
	ErrorCode string `json:"errorResultCode,omitempty"`
}

// TxStatus is the getTransaction status.
type TxStatus string

const (
	TxSuccess  TxStatus = "SUCCESS"
	TxFailed   TxStatus = "FAILED"
	TxNotFound TxStatus = "NOT_FOUND"
)

// TxResult is the getTransaction response.
type TxResult struct {
	Status       TxStatus    `json:"status"`
	Ledger       uint32      `json:"ledger,omitempty"`
	LatestLedger uint32      `json:"latestLedger"`
	ReturnValue  scval.Raw   `json:"returnValue"`
	ResultCode   string      `json:"resultCode,omitempty"`
	Hash         common.Hash `json:"-"`
}

// LedgerEntry is one getLedgerEntries item. Data is the entry body as the
// node returns it.
type LedgerEntry struct {
	Key                string          `json:"key"`
	Data               json.RawMessage `json:"data"`
	LastModifiedLedger uint32          `json:"lastModifiedLedgerSeq"`
	LiveUntilLedger    *uint32         `json:"liveUntilLedgerSeq,omitempty"`
}

// Live reports whether the entry is readable at ledger seq.
func (e LedgerEntry) Live(seq uint32) bool {
	return e.LiveUntilLedger == nil || *e.LiveUntilLedger >= seq
}

// Account is the sequence state of a source account.
type Account struct {
	ID       strkey.Address `json:"id"`
	Sequence int64          `json:"sequence,string"`
}

// NextSequence is the sequence number the account's next transaction uses.
func (a Account) NextSequence() int64 { return a.Sequence + 1 }

// AccountKey is the ledger key of an account entry.
func AccountKey(id strkey.Address) string { return "account:" + id.String() }
