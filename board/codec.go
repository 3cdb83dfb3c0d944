package board

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// artifactEncMode is the deterministic CBOR encoder every board artifact
// goes through. Determinism matters: the same object must always produce
// the same bytes, or artifact hashes would drift between publishers.
var artifactEncMode = sync.OnceValues(func() (cbor.EncMode, error) {
	return cbor.CoreDetEncOptions().EncMode()
})

// EncodeArtifact encodes an artifact to deterministic CBOR.
func EncodeArtifact(a any) ([]byte, error) {
	em, err := artifactEncMode()
	if err != nil {
		return nil, fmt.Errorf("board: encoder: %w", err)
	}
	data, err := em.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("board: encode artifact: %w", err)
	}
	return data, nil
}

// DecodeArtifact decodes a CBOR artifact into out.
func DecodeArtifact(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("board: decode artifact: %w", err)
	}
	return nil
}
