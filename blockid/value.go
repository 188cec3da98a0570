// Package blockid defines the opaque byte-string handles the storage
// engine uses for block identifiers. Block bytes themselves are never
// interpreted here; only identity and length matter.
package blockid

import (
	"bytes"
	"encoding/hex"
)

// Value is a cheap-to-clone handle over an immutable byte sequence.
//
// It may be backed by memory owned by the storage engine (a memory-mapped
// permanent-tier segment) or by an owned slice; reads from the volatile
// tier are copied out of the engine into owned slices. Cloning a Value never copies bytes; it shares the
// same backing array, which is what gives callers "borrowed or owned,
// behind one cheap handle" semantics without needing separate types.
type Value struct {
	b []byte
}

// New wraps b. The caller must not mutate b afterwards.
func New(b []byte) Value {
	return Value{b: b}
}

// Bytes returns the underlying slice. Callers must not mutate it.
func (v Value) Bytes() []byte {
	return v.b
}

// Len returns the number of bytes.
func (v Value) Len() int {
	return len(v.b)
}

// IsZero reports whether the Value has no backing bytes at all (as
// opposed to an empty-but-present slice).
func (v Value) IsZero() bool {
	return v.b == nil
}

// Equal reports whether two Values hold identical bytes.
func (v Value) Equal(other Value) bool {
	return bytes.Equal(v.b, other.b)
}

// Clone returns a handle sharing the same backing bytes; it never copies.
func (v Value) Clone() Value {
	return v
}

// IntoOwned returns a Value guaranteed not to alias any engine-owned
// buffer, copying if necessary. Call this before retaining a Value past
// the lifetime of the transaction or iterator item that produced it.
func (v Value) IntoOwned() Value {
	if v.b == nil {
		return v
	}
	cp := make([]byte, len(v.b))
	copy(cp, v.b)
	return Value{b: cp}
}

// String renders the Value as a hex string, for logging and debugging.
func (v Value) String() string {
	return hex.EncodeToString(v.b)
}
