package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode sorts map keys and uses the shortest encodings so equal values
// always produce equal bytes.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: cbor encoder: %v", err))
	}
	return mode
}

// Marshal encodes v as deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR into v. Undecodable data is reported as ErrCorrupt.
func Unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
