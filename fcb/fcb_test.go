package fcb_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/fcb"
)

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func f32(v float32) []byte {
	return u32(math.Float32bits(v))
}

// app joins strings, byte slices, and small integers as single bytes.
func app(bs ...interface{}) []byte {
	var s []byte
	for _, b := range bs {
		switch b := b.(type) {
		case string:
			s = append(s, b...)
		case []byte:
			s = append(s, b...)
		case byte:
			s = append(s, b)
		case int:
			s = append(s, byte(b))
		}
	}
	return s
}

// str returns the wire form of a string record, NUL included in the length.
func str(s string) []byte {
	return app(u32(uint32(len(s)+1)), s, 0)
}

// rec returns a node record with the payload length filled in.
func rec(tag uint32, payload []byte) []byte {
	return app(u32(tag), u32(uint32(len(payload))), payload)
}

// hdr returns a container header for an uncompressed body.
func hdr(roots uint32) []byte {
	return app("nbCF", u16(2), u16(0), u32(roots))
}

var (
	tagEntity  = fcbfile.HashName("Entity")
	tagUnknown = fcbfile.HashName("NoSuchClass")
	fldId      = fcbfile.HashName("disEntityId")
	fldName    = fcbfile.HashName("hidName")
	fldPos     = fcbfile.HashName("hidPos")
)

// guardRecord is a hand-built Entity node used to pin the wire layout
// independently of the encoder.
func guardRecord() []byte {
	return rec(tagEntity, app(
		u16(3),
		u32(fldId), 15, u64(7700),
		u32(fldName), 16, str("Guard"),
		u32(fldPos), 19, f32(1), f32(2), f32(3),
		u32(0),
	))
}

func decode(t *testing.T, d fcb.Decoder, data []byte) *fcbfile.ResourceFile {
	t.Helper()
	f, warn, err := d.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal("decode:", err)
	}
	if warn != nil {
		t.Fatal("decode warning:", warn)
	}
	return f
}

func encode(t *testing.T, e fcb.Encoder, f *fcbfile.ResourceFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := e.Encode(&buf, f); err != nil {
		t.Fatal("encode:", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := app(hdr(1), guardRecord())
	f := decode(t, fcb.Decoder{}, data)

	if f.Compressed {
		t.Error("expected uncompressed file")
	}
	if len(f.Roots) != 1 {
		t.Fatal("expected 1 root, got:", len(f.Roots))
	}
	root := f.Roots[0]
	if root.Tag != tagEntity {
		t.Errorf("expected tag %08X, got %08X", tagEntity, root.Tag)
	}
	if root.Raw != nil {
		t.Error("expected structural node")
	}
	if len(root.Attrs) != 3 {
		t.Fatal("expected 3 attributes, got:", len(root.Attrs))
	}
	if id, ok := root.Attr(fldId).(fcbfile.ValueId64); !ok || id != 7700 {
		t.Error("unexpected id attribute:", root.Attr(fldId))
	}
	if root.Name() != "Guard" {
		t.Error("unexpected name:", root.Name())
	}
	pos, ok := root.Attr(fldPos).(fcbfile.ValueVector3)
	if !ok || pos != (fcbfile.ValueVector3{X: 1, Y: 2, Z: 3}) {
		t.Error("unexpected position:", root.Attr(fldPos))
	}
	if root.NumChildren() != 0 {
		t.Error("expected no children, got:", root.NumChildren())
	}
}

func TestRoundTrip(t *testing.T) {
	data := app(hdr(2), guardRecord(), guardRecord())
	f := decode(t, fcb.Decoder{}, data)
	out := encode(t, fcb.Encoder{}, f)
	if !bytes.Equal(out, data) {
		t.Errorf("round trip differs\nin:  % 02x\nout: % 02x", data, out)
	}
}

func TestEncodeDecode(t *testing.T) {
	sector := fcbfile.NewNode(fcbfile.HashName("WorldSector"), nil)
	sector.SetAttrNamed("Id", fcbfile.ValueId32(70))
	sector.SetAttrNamed("X", fcbfile.ValueInt32(-3))

	entity := fcbfile.NewNode(tagEntity, sector)
	entity.SetAttrNamed("disEntityId", fcbfile.ValueId64(123456789))
	entity.SetName("Sniper_02")
	entity.SetAttrNamed("hidPos", fcbfile.ValueVector3{X: 450.988, Y: 366.305, Z: 7.62474e-06})
	entity.SetAttrNamed("tplArchetypeId", fcbfile.ValueHash64(0xDEADBEEFCAFE))

	comp := fcbfile.NewNode(fcbfile.HashName("Components"), entity)
	comp.SetAttrNamed("hidBoundMin", fcbfile.ValueVector3{X: -1, Y: -1, Z: -1})
	comp.SetAttrNamed("Size", fcbfile.ValueUInt32(12))

	f := &fcbfile.ResourceFile{Roots: []*fcbfile.Node{sector}}

	data := encode(t, fcb.Encoder{}, f)
	g := decode(t, fcb.Decoder{}, data)
	if diffs := fcbfile.DiffFiles(f, g); len(diffs) > 0 {
		t.Fatal("decoded file differs:", diffs)
	}

	again := encode(t, fcb.Encoder{}, g)
	if !bytes.Equal(data, again) {
		t.Error("second encode differs from first")
	}
}

func TestEncodeRecomputesLengths(t *testing.T) {
	data := app(hdr(1), guardRecord())
	f := decode(t, fcb.Decoder{}, data)

	f.Roots[0].SetName("Guard_With_A_Much_Longer_Name")
	out := encode(t, fcb.Encoder{}, f)
	if bytes.Equal(out, data) {
		t.Fatal("expected output to change after edit")
	}

	g := decode(t, fcb.Decoder{}, out)
	if got := g.Roots[0].Name(); got != "Guard_With_A_Much_Longer_Name" {
		t.Error("unexpected name after reencode:", got)
	}
}

func TestOpaquePreserved(t *testing.T) {
	raw := []byte{0xDE, 0xAD, 0x00, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	data := app(hdr(1), rec(tagUnknown, raw))

	var log bytes.Buffer
	d := fcb.Decoder{Logger: zerolog.New(&log)}
	f := decode(t, d, data)

	root := f.Roots[0]
	if root.Tag != tagUnknown {
		t.Errorf("expected tag %08X, got %08X", tagUnknown, root.Tag)
	}
	if !bytes.Equal(root.Raw, raw) {
		t.Errorf("expected raw payload % 02x, got % 02x", raw, root.Raw)
	}
	if !strings.Contains(log.String(), "unrecognized type tag") {
		t.Error("expected unknown tag to be logged, got:", log.String())
	}

	out := encode(t, fcb.Encoder{}, f)
	if !bytes.Equal(out, data) {
		t.Error("opaque node did not round trip byte for byte")
	}
}

func TestStrict(t *testing.T) {
	data := app(hdr(1), rec(tagUnknown, []byte{1, 2, 3}))
	_, _, err := fcb.Decoder{Strict: true}.Decode(bytes.NewReader(data))
	var tagErr fcb.TagError
	if !errors.As(err, &tagErr) {
		t.Fatal("expected tag error, got:", err)
	}
	if tagErr.Tag != tagUnknown {
		t.Errorf("expected tag %08X, got %08X", tagUnknown, tagErr.Tag)
	}
}

func TestDecodeErrors(t *testing.T) {
	dec := func(b []byte) error {
		_, _, err := fcb.Decoder{}.Decode(bytes.NewReader(b))
		return err
	}
	truncated := func(err error) bool {
		var e fcb.TruncatedError
		return errors.As(err, &e)
	}
	malformed := func(err error) bool {
		var e fcb.MalformedError
		return errors.As(err, &e)
	}
	encoding := func(err error) bool {
		var e fcb.EncodingError
		return errors.As(err, &e)
	}

	if err := dec(nil); !truncated(err) {
		t.Error("expected error (empty input), got:", err)
	}
	if err := dec(app("nbC")); !truncated(err) {
		t.Error("expected error (short magic), got:", err)
	}
	if err := dec(app("XXXX")); !errors.Is(err, fcb.ErrInvalidMagic) {
		t.Error("expected error (bad magic), got:", err)
	}
	if err := dec(app("nbCF", u16(9), u16(0), u32(0))); err == nil {
		t.Error("expected error (bad version)")
	} else {
		var v fcb.ErrUnrecognizedVersion
		if !errors.As(err, &v) || uint16(v) != 9 {
			t.Error("expected version error (9), got:", err)
		}
	}
	if err := dec(hdr(1)); !truncated(err) {
		t.Error("expected error (missing root), got:", err)
	}
	if err := dec(app(hdr(1), u32(tagEntity), u32(100), u16(0))); !truncated(err) {
		t.Error("expected error (truncated node), got:", err)
	}
	if err := dec(app(hdr(1), u32(tagUnknown), u32(50), "short")); !truncated(err) {
		t.Error("expected error (truncated opaque payload), got:", err)
	}
	if err := dec(app(hdr(1), u32(tagEntity), u32(99), u16(0), u32(0))); !malformed(err) {
		t.Error("expected error (payload length mismatch), got:", err)
	}
	if err := dec(app(hdr(1), rec(tagEntity, app(
		u16(1), u32(fldName), 0xEE, u32(0),
	)))); !malformed(err) {
		t.Error("expected error (unknown value kind), got:", err)
	}
	if err := dec(app(hdr(1), rec(tagEntity, app(
		u16(1), u32(fldName), 16, u32(3), "abc", u32(0),
	)))); !encoding(err) {
		t.Error("expected error (unterminated string), got:", err)
	}
	if err := dec(app(hdr(1), rec(tagEntity, app(
		u16(1), u32(fldName), 16, u32(0), u32(0),
	)))); !encoding(err) {
		t.Error("expected error (empty string record), got:", err)
	}
	if err := dec(app(hdr(1), rec(tagEntity, app(
		u16(1), u32(fldName), 16, u32(5), "a", 0, "bc", 0, u32(0),
	)))); !encoding(err) {
		t.Error("expected error (interior NUL), got:", err)
	}
}

func TestDecodeWarnings(t *testing.T) {
	// Trailing bytes after the last root.
	data := app(hdr(1), guardRecord(), "JUNK")
	f, warn, err := fcb.Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal("decode:", err)
	}
	if warn == nil || !strings.Contains(warn.Error(), "trailing") {
		t.Error("expected trailing bytes warning, got:", warn)
	}
	if len(f.Roots) != 1 {
		t.Error("expected 1 root, got:", len(f.Roots))
	}

	// Flag bits with no assigned meaning.
	data = app("nbCF", u16(2), u16(0x8000), u32(1), guardRecord())
	_, warn, err = fcb.Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal("decode:", err)
	}
	if warn == nil || !strings.Contains(warn.Error(), "flags") {
		t.Error("expected flags warning, got:", warn)
	}
}

func TestCompressed(t *testing.T) {
	data := app(hdr(1), guardRecord())
	f := decode(t, fcb.Decoder{}, data)
	f.Compressed = true

	comp := encode(t, fcb.Encoder{}, f)
	if comp[6]&1 == 0 {
		t.Fatal("expected compressed flag in header")
	}

	g := decode(t, fcb.Decoder{}, comp)
	if !g.Compressed {
		t.Error("expected Compressed after decode")
	}
	if diffs := fcbfile.DiffFiles(f, g); len(diffs) > 0 {
		t.Fatal("compressed file differs after decode:", diffs)
	}

	again := encode(t, fcb.Encoder{}, g)
	if !bytes.Equal(comp, again) {
		t.Error("second compressed encode differs from first")
	}

	// NoCompress overrides the file's flag.
	plain := encode(t, fcb.Encoder{NoCompress: true}, f)
	if plain[6]&1 != 0 {
		t.Error("expected uncompressed header with NoCompress")
	}
	h := decode(t, fcb.Decoder{}, plain)
	if h.Compressed {
		t.Error("expected Compressed false after NoCompress encode")
	}
}

func TestLegacyStrings(t *testing.T) {
	// Entity strings are Windows-1252 on the wire; 0xE9 is e-acute.
	data := app(hdr(1), rec(tagEntity, app(
		u16(1),
		u32(fldName), 16, u32(5), "Caf", 0xE9, 0,
		u32(0),
	)))
	f := decode(t, fcb.Decoder{}, data)
	if got := f.Roots[0].Name(); got != "Café" {
		t.Errorf("expected transcoded name %q, got %q", "Café", got)
	}

	out := encode(t, fcb.Encoder{}, f)
	if !bytes.Equal(out, data) {
		t.Error("legacy string did not round trip byte for byte")
	}
}

func TestEncodeErrors(t *testing.T) {
	enc := func(f *fcbfile.ResourceFile) error {
		_, err := fcb.Encoder{}.Encode(&bytes.Buffer{}, f)
		return err
	}

	if err := enc(nil); err == nil {
		t.Error("expected error (nil file)")
	}

	node := fcbfile.NewNode(tagEntity, nil)
	node.SetName("a\x00b")
	f := &fcbfile.ResourceFile{Roots: []*fcbfile.Node{node}}
	var encErr fcb.EncodingError
	if err := enc(f); !errors.As(err, &encErr) {
		t.Error("expected error (interior NUL), got:", err)
	}

	// Entity is a legacy class; the arrow has no Windows-1252 form.
	node.SetName("Guard \u2192 Tower")
	if err := enc(f); !errors.As(err, &encErr) {
		t.Error("expected error (unmappable rune), got:", err)
	}

	node.SetName("Guard")
	node.Attrs = append(node.Attrs, fcbfile.Attr{Hash: fldPos, Value: nil})
	if err := enc(f); err == nil || !strings.Contains(err.Error(), "no value") {
		t.Error("expected error (nil value), got:", err)
	}
}

func TestConcurrentDecode(t *testing.T) {
	data := app(hdr(2), guardRecord(), rec(tagUnknown, []byte{9, 9, 9}))
	ref := decode(t, fcb.Decoder{}, data)

	const goroutines = 8
	const iterations = 25

	errCh := make(chan error, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				f, _, err := fcb.Decoder{}.Decode(bytes.NewReader(data))
				if err != nil {
					errCh <- err
					return
				}
				if diffs := fcbfile.DiffFiles(ref, f); len(diffs) > 0 {
					errCh <- errors.New("decode differs: " + strings.Join(diffs, "; "))
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func TestDump(t *testing.T) {
	data := app(hdr(2), guardRecord(), rec(tagUnknown, []byte{0xAA, 0xBB}))
	var out strings.Builder
	warn, err := fcb.Decoder{}.Dump(&out, bytes.NewReader(data))
	if err != nil {
		t.Fatal("dump:", err)
	}
	if warn != nil {
		t.Fatal("dump warning:", warn)
	}
	s := out.String()
	for _, want := range []string{
		"Compressed: false",
		"Roots: 2",
		"Entity",
		"hidName",
		"\"Guard\"",
		"opaque",
		fcbfile.FormatHash(tagUnknown),
	} {
		if !strings.Contains(s, want) {
			t.Errorf("dump missing %q:\n%s", want, s)
		}
	}
}
