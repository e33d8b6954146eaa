package fcb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/anaminus/parse"
	lz4 "github.com/bkaradzic/go-lz4"
	"github.com/rs/zerolog"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/errors"
)

// Decoder decodes a stream of bytes into an fcbfile.ResourceFile.
type Decoder struct {
	// Classes selects which type tags decode structurally. Tags it does not
	// know are preserved as opaque nodes. If nil, the builtin registry is
	// used.
	Classes *classes.Registry

	// If Strict is true, an unrecognized type tag fails the decode instead
	// of producing an opaque node.
	Strict bool

	// Logger receives decode diagnostics. The zero Logger discards them.
	Logger zerolog.Logger
}

// Decode reads data from r and decodes it into a resource file. Warnings
// that do not prevent decoding are returned separately from the error.
//
// The file's Name is left empty. Callers that track files by name set it
// afterward.
func (d Decoder) Decode(r io.Reader) (f *fcbfile.ResourceFile, warn, err error) {
	if r == nil {
		return nil, nil, errors.New("nil reader")
	}
	return d.decode(r)
}

func (d Decoder) decode(r io.Reader) (f *fcbfile.ResourceFile, warn, err error) {
	if d.Classes == nil {
		d.Classes = classes.Builtin()
	}
	f = &fcbfile.ResourceFile{}
	fr := parse.NewBinaryReader(r)

	var magic uint32
	if fr.Number(&magic) {
		return nil, nil, decodeError(fr, nil)
	}
	if magic != headerMagic {
		return nil, nil, decodeError(fr, ErrInvalidMagic)
	}

	var version uint16
	if fr.Number(&version) {
		return nil, nil, decodeError(fr, nil)
	}
	if version != headerVersion {
		return nil, nil, decodeError(fr, ErrUnrecognizedVersion(version))
	}

	var flags uint16
	if fr.Number(&flags) {
		return nil, nil, decodeError(fr, nil)
	}
	var warns errors.Errors
	if unknown := flags &^ flagKnown; unknown != 0 {
		warns = append(warns, errFlags{Offset: fr.N() - 2, Flags: unknown})
	}
	f.Compressed = flags&flagCompressed != 0

	var rootCount uint32
	if fr.Number(&rootCount) {
		return nil, warns.Return(), decodeError(fr, nil)
	}

	br := fr
	if f.Compressed {
		var rawLen uint32
		if fr.Number(&rawLen) {
			return nil, warns.Return(), decodeError(fr, nil)
		}

		block, failed := fr.All()
		if failed {
			return nil, warns.Return(), decodeError(fr, nil)
		}

		// Prepare the block for lz4, which wants the decompressed length
		// before the compressed data.
		src := make([]byte, len(block)+4)
		binary.LittleEndian.PutUint32(src, rawLen)
		copy(src[4:], block)

		body := make([]byte, rawLen)
		if _, err := lz4.Decode(body, src); err != nil {
			return nil, warns.Return(), MalformedError{
				Offset: fr.N(),
				Cause:  fmt.Errorf("lz4: %s", err.Error()),
			}
		}

		// Offsets reported past this point count from the start of the
		// decompressed body.
		br = parse.NewBinaryReader(bytes.NewReader(body))
	}

	for i := uint32(0); i < rootCount; i++ {
		root, err := d.node(br, nil)
		if err != nil {
			return nil, warns.Return(), err
		}
		f.Roots = append(f.Roots, root)
	}

	if rest, failed := br.All(); !failed && len(rest) > 0 {
		warns = append(warns, errTrailing{
			Offset: br.N() - int64(len(rest)),
			Count:  int64(len(rest)),
		})
	}

	if err := decodeError(br, nil); err != nil {
		return nil, warns.Return(), err
	}
	return f, warns.Return(), nil
}

// node reads one node record, recursing into children. The consumed size of
// a structural node must match its declared payload length.
func (d Decoder) node(fr *parse.BinaryReader, parent *fcbfile.Node) (*fcbfile.Node, error) {
	var tag uint32
	if fr.Number(&tag) {
		return nil, decodeError(fr, nil)
	}
	var payloadLen uint32
	if fr.Number(&payloadLen) {
		return nil, decodeError(fr, nil)
	}
	start := fr.N()

	if !d.Classes.Known(tag) {
		if d.Strict {
			return nil, TagError{Offset: start - 8, Tag: tag}
		}
		raw := make([]byte, payloadLen)
		if fr.Bytes(raw) {
			return nil, decodeError(fr, nil)
		}
		d.Logger.Info().
			Str("tag", fcbfile.FormatHash(tag)).
			Int64("offset", start-8).
			Uint32("size", payloadLen).
			Msg("unrecognized type tag preserved")
		node := fcbfile.NewNode(tag, parent)
		node.Raw = raw
		return node, nil
	}

	node := fcbfile.NewNode(tag, parent)
	legacy := d.Classes.Legacy(tag)

	var attrCount uint16
	if fr.Number(&attrCount) {
		return nil, decodeError(fr, nil)
	}
	for i := uint16(0); i < attrCount; i++ {
		var attr fcbfile.Attr
		if fr.Number(&attr.Hash) {
			return nil, decodeError(fr, nil)
		}
		var kind uint8
		if fr.Number(&kind) {
			return nil, decodeError(fr, nil)
		}
		if readValue(fr, fcbfile.Kind(kind), legacy, &attr.Value) {
			return nil, decodeError(fr, nil)
		}
		node.Attrs = append(node.Attrs, attr)
	}

	var childCount uint32
	if fr.Number(&childCount) {
		return nil, decodeError(fr, nil)
	}
	for i := uint32(0); i < childCount; i++ {
		if _, err := d.node(fr, node); err != nil {
			return nil, err
		}
	}

	if consumed := fr.N() - start; consumed != int64(payloadLen) {
		return nil, MalformedError{
			Offset: fr.N(),
			Cause: fmt.Errorf("node %s declares %d payload bytes, has %d",
				fcbfile.FormatHash(tag), payloadLen, consumed),
		}
	}
	return node, nil
}

// decodeError classifies the cursor's error state. Input that ran out maps
// to TruncatedError and anything else to MalformedError, unless a codec
// error was already raised.
func decodeError(r *parse.BinaryReader, err error) error {
	r.Add(0, err)
	err = r.Err()
	if err == nil {
		return nil
	}
	switch err.(type) {
	case TruncatedError, MalformedError, EncodingError, TagError:
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return TruncatedError{Offset: r.N(), Cause: err}
	}
	return MalformedError{Offset: r.N(), Cause: err}
}
