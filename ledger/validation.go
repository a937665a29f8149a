package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// Field bounds enforced on every text argument.
const (
	MaxInstitutionLength = 100
	MinGenomeIDLength    = 10
	MaxGenomeIDLength    = 64
	DataHashLength       = 64
	MaxGenomeTypeLength  = 50
)

func validateInstitution(institution string) error {
	return validateText("institution", institution, 1, MaxInstitutionLength)
}

func validateGenomeID(genomeID string) error {
	return validateText("genome id", genomeID, MinGenomeIDLength, MaxGenomeIDLength)
}

func validateGenomeType(genomeType string) error {
	return validateText("genome type", genomeType, 1, MaxGenomeTypeLength)
}

// validateText accepts printable ASCII of min..max characters.
func validateText(field, value string, min, max int) error {
	if len(value) < min || len(value) > max {
		return fmt.Errorf("%w: %s must be %d..%d characters, got %d", interfaces.ErrInvalidSubmission, field, min, max, len(value))
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return fmt.Errorf("%w: %s contains a non-printable or non-ASCII byte at offset %d", interfaces.ErrInvalidSubmission, field, i)
		}
	}
	return nil
}

// parseDataHash decodes a submitted digest. The text must be exactly 64 hex
// characters; a 0x prefix is not accepted.
func parseDataHash(dataHash string) ([]byte, error) {
	if len(dataHash) != DataHashLength {
		return nil, fmt.Errorf("%w: data hash must be %d hex characters, got %d", interfaces.ErrInvalidSubmission, DataHashLength, len(dataHash))
	}
	digest, err := hex.DecodeString(dataHash)
	if err != nil {
		return nil, fmt.Errorf("%w: data hash is not hexadecimal: %v", interfaces.ErrInvalidSubmission, err)
	}
	return digest, nil
}
