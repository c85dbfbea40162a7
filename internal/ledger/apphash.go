package ledger

import (
	"fmt"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/fxamacker/cbor/v2"
)

// blockCommitment is the deterministic CBOR form of a flushed block that is
// folded into the app hash.
type blockCommitment struct {
	_       struct{} `cbor:",toarray"`
	Prev    []byte
	Height  int64
	Entries []KV
}

var commitEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoding mode: %v", err))
	}
	return em
}()

// nextAppHash computes blake256(cbor(prev, height, sorted writes)). writes
// must already be sorted by key.
func nextAppHash(prev []byte, height int64, writes []KV) ([]byte, error) {
	encoded, err := commitEncMode.Marshal(blockCommitment{
		Prev:    prev,
		Height:  height,
		Entries: writes,
	})
	if err != nil {
		return nil, makeError(ErrCorruption, fmt.Sprintf("encode block commitment: %v", err))
	}
	sum := blake256.Sum256(encoded)
	return sum[:], nil
}
