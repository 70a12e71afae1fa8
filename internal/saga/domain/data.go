package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// DataVersion is the current encoding version of the saga data bag.
const DataVersion = 1

// Data is the key/value bag shared by the steps of a saga. Values are kept as JSON and
// decoded through typed keys, so a step reads exactly the type another step wrote.
type Data struct {
	values map[string]json.RawMessage
}

type dataEnvelope struct {
	Version int                        `json:"version"`
	Values  map[string]json.RawMessage `json:"values"`
}

// NewData returns an empty bag.
func NewData() *Data {
	return &Data{values: make(map[string]json.RawMessage)}
}

func (d *Data) init() {
	if d.values == nil {
		d.values = make(map[string]json.RawMessage)
	}
}

// Has reports whether name is present.
func (d *Data) Has(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.values[name]
	return ok
}

// Delete removes name.
func (d *Data) Delete(name string) {
	delete(d.values, name)
}

// Keys returns the keys in sorted order.
func (d *Data) Keys() []string {
	if d == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(d.values))
}

// Len returns the number of entries.
func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.values)
}

// Merge copies every entry of other into d, overwriting existing keys.
func (d *Data) Merge(other *Data) {
	if other == nil {
		return
	}
	d.init()
	for k, v := range other.values {
		d.values[k] = slices.Clone(v)
	}
}

// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	clone := NewData()
	clone.Merge(d)
	return clone
}

// MarshalJSON encodes the bag with its version.
func (d *Data) MarshalJSON() ([]byte, error) {
	values := map[string]json.RawMessage{}
	if d != nil {
		values = d.values
	}
	return json.Marshal(dataEnvelope{Version: DataVersion, Values: values})
}

// UnmarshalJSON decodes a versioned bag.
func (d *Data) UnmarshalJSON(b []byte) error {
	var envelope dataEnvelope
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	if envelope.Version != DataVersion {
		return fmt.Errorf("unsupported saga data version %d", envelope.Version)
	}
	d.values = envelope.Values
	if d.values == nil {
		d.values = make(map[string]json.RawMessage)
	}
	return nil
}

// Key is a typed accessor for one entry of Data.
type Key[T any] struct {
	name string
}

// NewKey declares a typed key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key name.
func (k Key[T]) Name() string {
	return k.name
}

// Lookup returns the value and whether it was present.
func (k Key[T]) Lookup(d *Data) (T, bool, error) {
	var value T
	if d == nil {
		return value, false, nil
	}
	raw, ok := d.values[k.name]
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, true, fmt.Errorf("saga data key %q: %w", k.name, err)
	}
	return value, true, nil
}

// Get returns the value or a *MissingKeyError when absent.
func (k Key[T]) Get(d *Data) (T, error) {
	value, ok, err := k.Lookup(d)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, &MissingKeyError{Key: k.name}
	}
	return value, nil
}

// GetOr returns the value or fallback when absent or undecodable.
func (k Key[T]) GetOr(d *Data, fallback T) T {
	value, ok, err := k.Lookup(d)
	if err != nil || !ok {
		return fallback
	}
	return value
}

// Set stores value under the key.
func (k Key[T]) Set(d *Data, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("saga data key %q: %w", k.name, err)
	}
	d.init()
	d.values[k.name] = raw
	return nil
}
