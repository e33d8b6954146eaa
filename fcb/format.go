// Package fcb implements a decoder and encoder for binary resource
// containers.
//
// A container holds one or more node trees prefixed by a small header. Node
// type tags and attribute names appear on the wire as name hashes; the
// classes package maps them back to names. Tags the registry does not know
// are preserved as opaque nodes so that a decode followed by an encode
// reproduces the input byte for byte.
package fcb

// Container signature, "nbCF" when read as little-endian bytes.
const headerMagic uint32 = 0x4643626E

// Container version understood by this package.
const headerVersion uint16 = 2

// Header flag bits.
const (
	// Body is a single LZ4 block prefixed by its decompressed length.
	flagCompressed uint16 = 1 << 0

	// Mask of flag bits with assigned meanings.
	flagKnown = flagCompressed
)
