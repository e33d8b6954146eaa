package fcb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/anaminus/parse"
	lz4 "github.com/bkaradzic/go-lz4"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/errors"
)

// Encoder encodes an fcbfile.ResourceFile into a stream of bytes.
type Encoder struct {
	// Classes resolves which classes carry legacy string encodings. If nil,
	// the builtin registry is used.
	Classes *classes.Registry

	// If NoCompress is true, the body is written uncompressed even when the
	// file records a compressed source.
	NoCompress bool
}

// Encode writes f to w. Every length and count field is recomputed from the
// tree's actual content; opaque nodes are emitted verbatim.
func (e Encoder) Encode(w io.Writer, f *fcbfile.ResourceFile) (warn, err error) {
	if w == nil {
		return nil, errors.New("nil writer")
	}
	if f == nil {
		return nil, errors.New("nil file")
	}
	if e.Classes == nil {
		e.Classes = classes.Builtin()
	}

	var body bytes.Buffer
	bw := parse.NewBinaryWriter(&body)
	for _, root := range f.Roots {
		if e.node(bw, root) {
			break
		}
	}
	if err := bw.Err(); err != nil {
		return nil, err
	}

	compressed := f.Compressed && !e.NoCompress

	fw := parse.NewBinaryWriter(w)
	if fw.Number(headerMagic) {
		return nil, encodeError(fw, nil)
	}
	if fw.Number(headerVersion) {
		return nil, encodeError(fw, nil)
	}
	var flags uint16
	if compressed {
		flags |= flagCompressed
	}
	if fw.Number(flags) {
		return nil, encodeError(fw, nil)
	}
	if fw.Number(uint32(len(f.Roots))) {
		return nil, encodeError(fw, nil)
	}

	if compressed {
		var data []byte
		data, err := lz4.Encode(data, body.Bytes())
		if fw.Add(0, err) {
			return nil, encodeError(fw, nil)
		}

		// lz4 prepends the decompressed length, which is exactly the
		// container's rawLen field, so the block is written as produced.
		if binary.LittleEndian.Uint32(data[:4]) != uint32(body.Len()) {
			panic("lz4 uncompressed length does not match body length")
		}
		if fw.Bytes(data) {
			return nil, encodeError(fw, nil)
		}
	} else {
		if fw.Bytes(body.Bytes()) {
			return nil, encodeError(fw, nil)
		}
	}
	return nil, encodeError(fw, nil)
}

// node writes one node record, recursing into children.
func (e Encoder) node(fw *parse.BinaryWriter, node *fcbfile.Node) bool {
	if fw.Err() != nil {
		return true
	}
	if node == nil {
		return fw.Add(0, errors.New("nil node"))
	}
	if fw.Number(node.Tag) {
		return true
	}
	if node.Raw != nil {
		if fw.Number(uint32(len(node.Raw))) {
			return true
		}
		return fw.Bytes(node.Raw)
	}

	var payload bytes.Buffer
	pw := parse.NewBinaryWriter(&payload)
	if e.nodePayload(pw, node) {
		return fw.Add(0, pw.Err())
	}
	if fw.Number(uint32(payload.Len())) {
		return true
	}
	return fw.Bytes(payload.Bytes())
}

func (e Encoder) nodePayload(pw *parse.BinaryWriter, node *fcbfile.Node) bool {
	if len(node.Attrs) > math.MaxUint16 {
		return pw.Add(0, fmt.Errorf("node %s has %d attributes, limit %d",
			node, len(node.Attrs), math.MaxUint16))
	}
	if pw.Number(uint16(len(node.Attrs))) {
		return true
	}
	legacy := e.Classes.Legacy(node.Tag)
	for _, attr := range node.Attrs {
		if attr.Value == nil {
			return pw.Add(0, fmt.Errorf("attribute %s of node %s has no value",
				fcbfile.FormatHash(attr.Hash), node))
		}
		k := attr.Value.Kind()
		if !k.Valid() {
			return pw.Add(0, fmt.Errorf("attribute %s of node %s has invalid kind %d",
				fcbfile.FormatHash(attr.Hash), node, byte(k)))
		}
		if pw.Number(attr.Hash) {
			return true
		}
		if pw.Number(uint8(k)) {
			return true
		}
		if writeValue(pw, attr.Value, legacy) {
			return true
		}
	}
	children := node.Children()
	if pw.Number(uint32(len(children))) {
		return true
	}
	for _, child := range children {
		if e.node(pw, child) {
			return true
		}
	}
	return false
}

func encodeError(w *parse.BinaryWriter, err error) error {
	w.Add(0, err)
	return w.Err()
}
