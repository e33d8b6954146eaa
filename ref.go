package fcbfile

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

// RefRole describes how a field participates in the identity graph of a
// level.
type RefRole uint8

const (
	// RoleNone marks a field with no identity semantics.
	RoleNone RefRole = iota

	// RoleID marks a field that defines the identity of its node.
	RoleID

	// RoleRef marks a field that refers to the identity of another node.
	RoleRef
)

// String returns the name of the role.
func (r RefRole) String() string {
	switch r {
	case RoleID:
		return "id"
	case RoleRef:
		return "ref"
	}
	return "none"
}

// RefTable reports the reference roles of fields. The classes package
// provides an implementation backed by the name registry.
type RefTable interface {
	// FieldRole returns the role of the field with hash field on nodes
	// whose class tag is class.
	FieldRole(class, field uint32) RefRole
}

// FieldRef locates a single reference field: an attribute with RoleRef
// whose value names the identity of another node, to be resolved against a
// Level's index.
type FieldRef struct {
	// File is the name of the resource file holding the node.
	File string

	// Node is the node holding the reference field.
	Node *Node

	// Field is the hash of the reference field.
	Field uint32

	// Target is the identity the field refers to. A target of 0 is the
	// null reference and never resolves.
	Target uint64
}

// IsNullID returns whether an identity is the null placeholder, which has
// no referent by convention.
func IsNullID(id uint64) bool {
	return id == 0
}

// GenerateID returns a random 63-bit identity suitable for a RoleID field.
// The result is never 0. Uniqueness within a level is the caller's
// concern; Level.AllocateID retries against its index.
func GenerateID() uint64 {
	var buf [8]byte
	for {
		if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
			panic(err)
		}
		// Engines store these in signed fields, so keep the top bit clear.
		id := binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63)
		if id != 0 {
			return id
		}
	}
}

// idOf extracts the identity carried by an id-kinded value. Reports false
// for any other kind.
func idOf(v Value) (uint64, bool) {
	switch v := v.(type) {
	case ValueId32:
		return uint64(v), true
	case ValueId64:
		return uint64(v), true
	}
	return 0, false
}

// withID returns a value of the same id kind as v holding the given
// identity. Reports false if v is not id-kinded or the identity does not
// fit.
func withID(v Value, id uint64) (Value, bool) {
	switch v.(type) {
	case ValueId32:
		if id > 0xFFFFFFFF {
			return nil, false
		}
		return ValueId32(id), true
	case ValueId64:
		return ValueId64(id), true
	}
	return nil, false
}
