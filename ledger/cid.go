package ledger

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DataCID expresses a sha2-256 digest as a CIDv1 with the raw codec, the
// address under which the genome data is retrievable over IPFS.
func DataCID(digest []byte) (string, error) {
	if len(digest) != DataHashLength/2 {
		return "", fmt.Errorf("sha2-256 digest must be %d bytes, got %d", DataHashLength/2, len(digest))
	}
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("failed to encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
