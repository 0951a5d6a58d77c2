package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encoding/decoding options configured for determinism and safety.
var (
	// encMode uses canonical sorting so the same value always produces the
	// same bytes, and nanosecond RFC3339 timestamps so a cached value decodes
	// to exactly what was stored.
	encMode cbor.EncMode

	// decMode caps array elements, map pairs, and nesting depth so a
	// poisoned cache entry cannot exhaust memory or stack during decode.
	decMode cbor.DecMode
)

//nolint:gochecknoinits // CBOR modes are immutable and must exist before first use
func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoding mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		MaxArrayElements: 10000,
		MaxMapPairs:      10000,
		MaxNestedLevels:  16,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoding mode: %v", err))
	}
}

// Marshal serializes a value to CBOR bytes.
//
//	payload, err := cache.Marshal(task)
//	svc.Write(ctx, key, payload, cache.TierMedium)
//
// Struct tags are optional; `cbor:"name,omitempty"` and `cbor:"-"` behave as
// with encoding/json.
func Marshal[T any](v T) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal failed: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes CBOR bytes into a value of type T.
//
//	task, err := cache.Unmarshal[Task](payload)
//
// Decoding enforces the package's DoS limits; corrupted or oversized payloads
// return an error, which the service layer treats as a cache miss.
func Unmarshal[T any](data []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("cbor unmarshal failed: %w", err)
	}
	return v, nil
}

// MustMarshal is like Marshal but panics on error. Intended for tests and
// values known to be serializable.
func MustMarshal[T any](v T) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("MustMarshal failed: %v", err))
	}
	return data
}

// MustUnmarshal is like Unmarshal but panics on error. Intended for tests.
func MustUnmarshal[T any](data []byte) T {
	v, err := Unmarshal[T](data)
	if err != nil {
		panic(fmt.Sprintf("MustUnmarshal failed: %v", err))
	}
	return v
}
