// Package interfaces defines the core types and interfaces of the vaccine research ledger.
// It provides the contract between the ledger, its state store, the balance oracle
// and the snapshot storage without implementation details.
package interfaces

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ErrInvalidPrincipal is returned when a principal cannot be parsed from text.
var ErrInvalidPrincipal = errors.New("invalid principal")

// Principal is the 20-byte address identifying a caller, a token contract or a validator.
type Principal [20]byte

// NewPrincipalFromHex parses a hex-encoded address with or without the 0x prefix.
func NewPrincipalFromHex(addr string) (Principal, error) {
	if !common.IsHexAddress(addr) {
		return Principal{}, fmt.Errorf("%w: %q", ErrInvalidPrincipal, addr)
	}
	return Principal(common.HexToAddress(addr)), nil
}

// NewPrincipalFromAddress converts a go-ethereum address.
func NewPrincipalFromAddress(addr common.Address) Principal {
	return Principal(addr)
}

// Address returns the principal as a go-ethereum address.
func (p Principal) Address() common.Address {
	return common.Address(p)
}

// String returns the EIP-55 checksummed hex representation.
func (p Principal) String() string {
	return common.Address(p).Hex()
}

// Bytes returns the raw 20-byte address.
func (p Principal) Bytes() []byte {
	return p[:]
}

// IsZero reports whether the principal is the zero address.
func (p Principal) IsZero() bool {
	return p == Principal{}
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := NewPrincipalFromHex(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Researcher is an admitted member of the network. Records are created once
// by a successful registration and never modified afterwards.
type Researcher struct {
	Principal   Principal `json:"principal"`
	Institution string    `json:"institution"`
	// Token is the fungible token whose balance admitted the researcher.
	Token      Principal `json:"token"`
	Height     uint64    `json:"height"`
	AdmittedAt time.Time `json:"admitted_at"`
}

// GenomeSubmission is an immutable genome-data record keyed by its genome identifier.
type GenomeSubmission struct {
	GenomeID string `json:"genome_id"`
	// DataHash is the 64-character hex digest exactly as submitted.
	DataHash string `json:"data_hash"`
	// DataCID expresses the same digest as a CIDv1 (raw, sha2-256).
	DataCID     string    `json:"data_cid"`
	GenomeType  string    `json:"genome_type"`
	Submitter   Principal `json:"submitter"`
	Token       Principal `json:"token"`
	Height      uint64    `json:"height"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validator is a weighted member of the trust set, maintained by the owner.
type Validator struct {
	Principal Principal `json:"principal"`
	Weight    uint64    `json:"weight"`
	Height    uint64    `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventKind names the state transition recorded by an Event.
type EventKind string

const (
	EventResearcherRegistered EventKind = "researcher-registered"
	EventGenomeSubmitted      EventKind = "genome-submitted"
	EventValidatorUpserted    EventKind = "validator-upserted"
)

// Event is the journal entry appended by every committed mutation.
type Event struct {
	Height uint64    `json:"height"`
	ID     uuid.UUID `json:"id"`
	Kind   EventKind `json:"kind"`
	Caller Principal `json:"caller"`
	// Subject is the key of the record the event touched: a principal or a genome identifier.
	Subject string    `json:"subject"`
	Time    time.Time `json:"time"`
}

// Status summarizes the ledger at a given height.
type Status struct {
	Owner       Principal `json:"owner"`
	Height      uint64    `json:"height"`
	Researchers int       `json:"researchers"`
	Submissions int       `json:"submissions"`
	Validators  int       `json:"validators"`
	// TotalWeight is the exact sum of validator weights; it may exceed uint64.
	TotalWeight *big.Int `json:"total_weight"`
}

// TotalWeight sums the weights of validators. The sum is exact for any number
// of uint64 weights.
func TotalWeight(validators []Validator) *big.Int {
	total := new(big.Int)
	weight := new(big.Int)
	for _, v := range validators {
		total.Add(total, weight.SetUint64(v.Weight))
	}
	return total
}
