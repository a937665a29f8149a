package api

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ruteri/vaccine-ledger/interfaces"
)

// Request authentication headers. Every mutating request carries the caller's
// address, a unix timestamp, a single-use nonce and a secp256k1 signature over
// SigningPayload.
const (
	HeaderCaller    = "X-Ledger-Caller"
	HeaderTimestamp = "X-Ledger-Timestamp"
	HeaderNonce     = "X-Ledger-Nonce"
	HeaderSignature = "X-Ledger-Signature"
)

// MaxNonceLength bounds the nonce header.
const MaxNonceLength = 64

// DefaultMaxClockSkew bounds how far a signed timestamp may drift from server time.
const DefaultMaxClockSkew = 5 * time.Minute

// SigningPayload is the message a caller signs: METHOD\nPATH\nTIMESTAMP\nNONCE\nBODY.
// The server accepts each (caller, payload) pair once.
func SigningPayload(method, path string, timestamp int64, nonce string, body []byte) []byte {
	payload := fmt.Sprintf("%s\n%s\n%s\n%s\n", method, path, strconv.FormatInt(timestamp, 10), nonce)
	return append([]byte(payload), body...)
}

// SigningHash is the EIP-191 personal message hash of payload, the digest that
// wallets sign and the server recovers the caller from.
func SigningHash(payload []byte) []byte {
	return accounts.TextHash(payload)
}

// RegisterResearcherRequest is the body of POST /api/v1/researchers.
type RegisterResearcherRequest struct {
	Institution string               `json:"institution"`
	Token       interfaces.Principal `json:"token"`
}

// SubmitGenomeRequest is the body of POST /api/v1/submissions.
type SubmitGenomeRequest struct {
	GenomeID   string               `json:"genome_id"`
	DataHash   string               `json:"data_hash"`
	GenomeType string               `json:"genome_type"`
	Token      interfaces.Principal `json:"token"`
}

// AddValidatorRequest is the body of POST /api/v1/validators.
type AddValidatorRequest struct {
	Validator interfaces.Principal `json:"validator"`
	Weight    uint64               `json:"weight"`
}

type ResearcherResponse struct {
	OK         bool                   `json:"ok"`
	Researcher *interfaces.Researcher `json:"researcher"`
}

type SubmissionResponse struct {
	OK         bool                         `json:"ok"`
	Submission *interfaces.GenomeSubmission `json:"submission"`
}

type ValidatorResponse struct {
	OK        bool                  `json:"ok"`
	Validator *interfaces.Validator `json:"validator"`
}

type ValidatorsResponse struct {
	OK          bool                   `json:"ok"`
	Validators  []interfaces.Validator `json:"validators"`
	TotalWeight *big.Int               `json:"total_weight"`
}

type StatusResponse struct {
	OK bool `json:"ok"`
	interfaces.Status
}

// EventsResponse is one page of the journal. Next is the height to request
// for the following page and is zero when the journal is exhausted.
type EventsResponse struct {
	OK     bool               `json:"ok"`
	Events []interfaces.Event `json:"events"`
	Next   uint64             `json:"next,omitempty"`
}

type SnapshotResponse struct {
	OK bool `json:"ok"`
	interfaces.SnapshotReceipt
}

// ErrorResponse is returned for every failed request. Err is set only for
// rejected ledger operations and carries the numeric error code.
type ErrorResponse struct {
	Err     interfaces.ErrorCode `json:"err,omitempty"`
	Message string               `json:"message"`
}
