package server

import (
	"bytes"
	"encoding/json"
)

// Nullable distinguishes an absent JSON field from an explicit null in
// partial-update payloads. Set reports whether the field appeared in the
// request at all; Valid reports whether it carried a non-null value. A field
// that is absent leaves the stored value untouched, while an explicit null
// clears it.
type Nullable[T any] struct {
	Value T
	Valid bool
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler. encoding/json invokes it for
// explicit nulls but never for absent fields, which is what makes the
// three-state distinction possible.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		var zero T
		n.Value = zero
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}
