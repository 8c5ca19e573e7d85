package user

import (
	"bytes"
	"encoding/json"
)

// Optional is a field of a partial update. Set reports whether the field was
// present in the request at all; Null reports an explicit JSON null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON marks the field as present. encoding/json only calls it for keys
// that appear in the document, so absent keys keep Set == false.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON writes null for absent or null values.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Patch is the closed set of user fields that an update may change.
type Patch struct {
	Email    Optional[string]
	FullName Optional[string]
	Bio      Optional[string]
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return !p.Email.Set && !p.FullName.Set && !p.Bio.Set
}

// Apply copies the present fields onto u. A null Bio clears it; Email and
// FullName are expected to be validated as non-null beforehand.
func (p Patch) Apply(u *User) {
	if p.Email.Set && !p.Email.Null {
		u.Email = p.Email.Value
	}
	if p.FullName.Set && !p.FullName.Null {
		u.FullName = p.FullName.Value
	}
	if p.Bio.Set {
		if p.Bio.Null {
			u.Bio = nil
		} else {
			bio := p.Bio.Value
			u.Bio = &bio
		}
	}
}
