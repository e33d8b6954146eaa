package fcbfile

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type of an attribute value. The numeric value of a
// Kind is the tag byte used by the binary container, so the constants below
// are stable and must not be reordered.
type Kind byte

const (
	KindInvalid    Kind = 0
	KindBool       Kind = 1
	KindInt8       Kind = 2
	KindUInt8      Kind = 3
	KindInt16      Kind = 4
	KindUInt16     Kind = 5
	KindInt32      Kind = 6
	KindUInt32     Kind = 7
	KindInt64      Kind = 8
	KindUInt64     Kind = 9
	KindFloat32    Kind = 10
	KindFloat64    Kind = 11
	KindHash32     Kind = 12
	KindHash64     Kind = 13
	KindId32       Kind = 14
	KindId64       Kind = 15
	KindString     Kind = 16
	KindBinHex     Kind = 17
	KindVector2    Kind = 18
	KindVector3    Kind = 19
	KindVector4    Kind = 20
	KindQuaternion Kind = 21
)

// String returns the name of the kind as it appears in the markup dialect's
// value-<Kind> attribute.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Boolean"
	case KindInt8:
		return "Int8"
	case KindUInt8:
		return "UInt8"
	case KindInt16:
		return "Int16"
	case KindUInt16:
		return "UInt16"
	case KindInt32:
		return "Int32"
	case KindUInt32:
		return "UInt32"
	case KindInt64:
		return "Int64"
	case KindUInt64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindHash32:
		return "Hash32"
	case KindHash64:
		return "Hash64"
	case KindId32:
		return "Id32"
	case KindId64:
		return "Id64"
	case KindString:
		return "String"
	case KindBinHex:
		return "BinHex"
	case KindVector2:
		return "Vector2"
	case KindVector3:
		return "Vector3"
	case KindVector4:
		return "Vector4"
	case KindQuaternion:
		return "Quaternion"
	}
	return "Invalid"
}

// KindFromString returns a Kind from its name, or KindInvalid if the name
// is not known.
func KindFromString(s string) Kind {
	switch s {
	case "Boolean":
		return KindBool
	case "Int8":
		return KindInt8
	case "UInt8":
		return KindUInt8
	case "Int16":
		return KindInt16
	case "UInt16":
		return KindUInt16
	case "Int32":
		return KindInt32
	case "UInt32":
		return KindUInt32
	case "Int64":
		return KindInt64
	case "UInt64":
		return KindUInt64
	case "Float32":
		return KindFloat32
	case "Float64":
		return KindFloat64
	case "Hash32":
		return KindHash32
	case "Hash64":
		return KindHash64
	case "Id32":
		return KindId32
	case "Id64":
		return KindId64
	case "String":
		return KindString
	case "BinHex":
		return KindBinHex
	case "Vector2":
		return KindVector2
	case "Vector3":
		return KindVector3
	case "Vector4":
		return KindVector4
	case "Quaternion":
		return KindQuaternion
	}
	return KindInvalid
}

// Valid returns whether the kind is one of the defined value kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && k <= KindQuaternion
}

// Size returns the number of bytes the raw form of a value of this kind
// occupies, or -1 if the kind is variable-length (String, BinHex). Returns
// 0 for KindInvalid.
func (k Kind) Size() int {
	switch k {
	case KindBool, KindInt8, KindUInt8:
		return 1
	case KindInt16, KindUInt16:
		return 2
	case KindInt32, KindUInt32, KindFloat32, KindHash32, KindId32:
		return 4
	case KindInt64, KindUInt64, KindFloat64, KindHash64, KindId64:
		return 8
	case KindVector2:
		return 8
	case KindVector3:
		return 12
	case KindVector4, KindQuaternion:
		return 16
	case KindString, KindBinHex:
		return -1
	}
	return 0
}

////////////////////////////////////////////////////////////////

// Value holds the value of an attribute. Every kind has a concrete type
// implementing Value, named with a "Value" prefix.
type Value interface {
	// Kind returns an identifier indicating the kind of the value.
	Kind() Kind

	// String returns the canonical text form of the value, as used by the
	// markup dialect's typed attribute.
	String() string

	// Copy returns a copy of the value.
	Copy() Value

	// Bytes returns the raw little-endian form of the value. For strings
	// this includes the terminating NUL; length prefixes are the container's
	// concern and are not included.
	Bytes() []byte
}

// NewValue returns a new Value of the given Kind, initialized to its zero
// value. Returns nil if the kind is invalid.
func NewValue(k Kind) Value {
	switch k {
	case KindBool:
		return ValueBool(false)
	case KindInt8:
		return ValueInt8(0)
	case KindUInt8:
		return ValueUInt8(0)
	case KindInt16:
		return ValueInt16(0)
	case KindUInt16:
		return ValueUInt16(0)
	case KindInt32:
		return ValueInt32(0)
	case KindUInt32:
		return ValueUInt32(0)
	case KindInt64:
		return ValueInt64(0)
	case KindUInt64:
		return ValueUInt64(0)
	case KindFloat32:
		return ValueFloat32(0)
	case KindFloat64:
		return ValueFloat64(0)
	case KindHash32:
		return ValueHash32(0)
	case KindHash64:
		return ValueHash64(0)
	case KindId32:
		return ValueId32(0)
	case KindId64:
		return ValueId64(0)
	case KindString:
		return ValueString("")
	case KindBinHex:
		return ValueBinHex(nil)
	case KindVector2:
		return ValueVector2{}
	case KindVector3:
		return ValueVector3{}
	case KindVector4:
		return ValueVector4{}
	case KindQuaternion:
		return ValueQuaternion{}
	}
	return nil
}

// ValueFromBytes decodes the raw little-endian form of a value of the given
// kind. Fixed-width kinds require b to have exactly the kind's size. String
// requires at least one byte, the last of which must be the NUL terminator.
// BinHex accepts any length. The returned value does not alias b.
func ValueFromBytes(k Kind, b []byte) (Value, error) {
	if n := k.Size(); n >= 0 && len(b) != n {
		return nil, fmt.Errorf("%s value has length %d, expected %d", k, len(b), n)
	}
	switch k {
	case KindBool:
		return ValueBool(b[0] != 0), nil
	case KindInt8:
		return ValueInt8(b[0]), nil
	case KindUInt8:
		return ValueUInt8(b[0]), nil
	case KindInt16:
		return ValueInt16(binary.LittleEndian.Uint16(b)), nil
	case KindUInt16:
		return ValueUInt16(binary.LittleEndian.Uint16(b)), nil
	case KindInt32:
		return ValueInt32(binary.LittleEndian.Uint32(b)), nil
	case KindUInt32:
		return ValueUInt32(binary.LittleEndian.Uint32(b)), nil
	case KindInt64:
		return ValueInt64(binary.LittleEndian.Uint64(b)), nil
	case KindUInt64:
		return ValueUInt64(binary.LittleEndian.Uint64(b)), nil
	case KindFloat32:
		return ValueFloat32(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case KindFloat64:
		return ValueFloat64(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case KindHash32:
		return ValueHash32(binary.LittleEndian.Uint32(b)), nil
	case KindHash64:
		return ValueHash64(binary.LittleEndian.Uint64(b)), nil
	case KindId32:
		return ValueId32(binary.LittleEndian.Uint32(b)), nil
	case KindId64:
		return ValueId64(binary.LittleEndian.Uint64(b)), nil
	case KindString:
		if len(b) == 0 || b[len(b)-1] != 0 {
			return nil, fmt.Errorf("string value is not NUL-terminated")
		}
		return ValueString(b[:len(b)-1]), nil
	case KindBinHex:
		return ValueBinHex(b).Copy(), nil
	case KindVector2:
		return ValueVector2{
			X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		}, nil
	case KindVector3:
		return ValueVector3{
			X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		}, nil
	case KindVector4:
		return ValueVector4{
			X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
			W: math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
		}, nil
	case KindQuaternion:
		return ValueQuaternion{
			X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
			W: math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
		}, nil
	}
	return nil, fmt.Errorf("invalid value kind %d", byte(k))
}

// ParseValue parses the canonical text form of a value of the given kind,
// inverting Value.String. BinHex text is hexadecimal.
func ParseValue(k Kind, s string) (Value, error) {
	wrap := func(err error) error {
		return fmt.Errorf("bad %s value %q: %w", k, s, err)
	}
	switch k {
	case KindBool:
		switch {
		case strings.EqualFold(s, "true") || s == "1":
			return ValueBool(true), nil
		case strings.EqualFold(s, "false") || s == "0":
			return ValueBool(false), nil
		}
		return nil, fmt.Errorf("bad %s value %q", k, s)
	case KindInt8:
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueInt8(v), nil
	case KindUInt8:
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueUInt8(v), nil
	case KindInt16:
		v, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueInt16(v), nil
	case KindUInt16:
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueUInt16(v), nil
	case KindInt32:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueInt32(v), nil
	case KindUInt32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueUInt32(v), nil
	case KindInt64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueInt64(v), nil
	case KindUInt64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueUInt64(v), nil
	case KindFloat32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueFloat32(v), nil
	case KindFloat64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueFloat64(v), nil
	case KindHash32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueHash32(v), nil
	case KindHash64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueHash64(v), nil
	case KindId32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueId32(v), nil
	case KindId64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueId64(v), nil
	case KindString:
		return ValueString(s), nil
	case KindBinHex:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueBinHex(b), nil
	case KindVector2:
		f, err := parseFloats(s, 2)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueVector2{X: f[0], Y: f[1]}, nil
	case KindVector3:
		f, err := parseFloats(s, 3)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueVector3{X: f[0], Y: f[1], Z: f[2]}, nil
	case KindVector4:
		f, err := parseFloats(s, 4)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueVector4{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
	case KindQuaternion:
		f, err := parseFloats(s, 4)
		if err != nil {
			return nil, wrap(err)
		}
		return ValueQuaternion{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
	}
	return nil, fmt.Errorf("invalid value kind %d", byte(k))
}

// formatFloat32 renders a float32 using the shortest decimal form that
// parses back to the same bit pattern.
func formatFloat32(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatFloat64(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseFloats(s string, n int) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d components, got %d", n, len(parts))
	}
	f := make([]float32, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		f[i] = float32(v)
	}
	return f, nil
}

func appendFloat32(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}

////////////////////////////////////////////////////////////////

type ValueBool bool

func (ValueBool) Kind() Kind {
	return KindBool
}
func (t ValueBool) String() string {
	if t {
		return "True"
	}
	return "False"
}
func (t ValueBool) Copy() Value {
	return t
}
func (t ValueBool) Bytes() []byte {
	if t {
		return []byte{1}
	}
	return []byte{0}
}

////////////////

type ValueInt8 int8

func (ValueInt8) Kind() Kind {
	return KindInt8
}
func (t ValueInt8) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueInt8) Copy() Value {
	return t
}
func (t ValueInt8) Bytes() []byte {
	return []byte{byte(t)}
}

////////////////

type ValueUInt8 uint8

func (ValueUInt8) Kind() Kind {
	return KindUInt8
}
func (t ValueUInt8) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueUInt8) Copy() Value {
	return t
}
func (t ValueUInt8) Bytes() []byte {
	return []byte{byte(t)}
}

////////////////

type ValueInt16 int16

func (ValueInt16) Kind() Kind {
	return KindInt16
}
func (t ValueInt16) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueInt16) Copy() Value {
	return t
}
func (t ValueInt16) Bytes() []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(t))
}

////////////////

type ValueUInt16 uint16

func (ValueUInt16) Kind() Kind {
	return KindUInt16
}
func (t ValueUInt16) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueUInt16) Copy() Value {
	return t
}
func (t ValueUInt16) Bytes() []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(t))
}

////////////////

type ValueInt32 int32

func (ValueInt32) Kind() Kind {
	return KindInt32
}
func (t ValueInt32) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueInt32) Copy() Value {
	return t
}
func (t ValueInt32) Bytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(t))
}

////////////////

type ValueUInt32 uint32

func (ValueUInt32) Kind() Kind {
	return KindUInt32
}
func (t ValueUInt32) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueUInt32) Copy() Value {
	return t
}
func (t ValueUInt32) Bytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(t))
}

////////////////

type ValueInt64 int64

func (ValueInt64) Kind() Kind {
	return KindInt64
}
func (t ValueInt64) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueInt64) Copy() Value {
	return t
}
func (t ValueInt64) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(t))
}

////////////////

type ValueUInt64 uint64

func (ValueUInt64) Kind() Kind {
	return KindUInt64
}
func (t ValueUInt64) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueUInt64) Copy() Value {
	return t
}
func (t ValueUInt64) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(t))
}

////////////////

type ValueFloat32 float32

func (ValueFloat32) Kind() Kind {
	return KindFloat32
}
func (t ValueFloat32) String() string {
	return formatFloat32(float32(t))
}
func (t ValueFloat32) Copy() Value {
	return t
}
func (t ValueFloat32) Bytes() []byte {
	return appendFloat32(nil, float32(t))
}

////////////////

type ValueFloat64 float64

func (ValueFloat64) Kind() Kind {
	return KindFloat64
}
func (t ValueFloat64) String() string {
	return formatFloat64(float64(t))
}
func (t ValueFloat64) Copy() Value {
	return t
}
func (t ValueFloat64) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(float64(t)))
}

////////////////

// ValueHash32 holds a 32-bit name hash used as data, such as a resource or
// archetype key.
type ValueHash32 uint32

func (ValueHash32) Kind() Kind {
	return KindHash32
}
func (t ValueHash32) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueHash32) Copy() Value {
	return t
}
func (t ValueHash32) Bytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(t))
}

////////////////

type ValueHash64 uint64

func (ValueHash64) Kind() Kind {
	return KindHash64
}
func (t ValueHash64) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueHash64) Copy() Value {
	return t
}
func (t ValueHash64) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(t))
}

////////////////

// ValueId32 holds a 32-bit identity used by small reference spaces such as
// sector numbers.
type ValueId32 uint32

func (ValueId32) Kind() Kind {
	return KindId32
}
func (t ValueId32) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueId32) Copy() Value {
	return t
}
func (t ValueId32) Bytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(t))
}

////////////////

// ValueId64 holds a 64-bit identity. Entity identities and the references
// that point at them use this kind; id 0 is the null reference.
type ValueId64 uint64

func (ValueId64) Kind() Kind {
	return KindId64
}
func (t ValueId64) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueId64) Copy() Value {
	return t
}
func (t ValueId64) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(t))
}

////////////////

type ValueString string

func (ValueString) Kind() Kind {
	return KindString
}
func (t ValueString) String() string {
	return string(t)
}
func (t ValueString) Copy() Value {
	return t
}

// Bytes returns the string bytes followed by the terminating NUL.
func (t ValueString) Bytes() []byte {
	return append([]byte(t), 0)
}

////////////////

type ValueBinHex []byte

func (ValueBinHex) Kind() Kind {
	return KindBinHex
}

// String returns the uppercase hexadecimal form of the bytes.
func (t ValueBinHex) String() string {
	return strings.ToUpper(hex.EncodeToString(t))
}
func (t ValueBinHex) Copy() Value {
	c := make(ValueBinHex, len(t))
	copy(c, t)
	return c
}
func (t ValueBinHex) Bytes() []byte {
	c := make([]byte, len(t))
	copy(c, t)
	return c
}

////////////////

type ValueVector2 struct {
	X, Y float32
}

func (ValueVector2) Kind() Kind {
	return KindVector2
}
func (t ValueVector2) String() string {
	return formatFloat32(t.X) + "," + formatFloat32(t.Y)
}
func (t ValueVector2) Copy() Value {
	return t
}
func (t ValueVector2) Bytes() []byte {
	b := appendFloat32(nil, t.X)
	return appendFloat32(b, t.Y)
}

////////////////

type ValueVector3 struct {
	X, Y, Z float32
}

func (ValueVector3) Kind() Kind {
	return KindVector3
}
func (t ValueVector3) String() string {
	return formatFloat32(t.X) + "," + formatFloat32(t.Y) + "," + formatFloat32(t.Z)
}
func (t ValueVector3) Copy() Value {
	return t
}
func (t ValueVector3) Bytes() []byte {
	b := appendFloat32(nil, t.X)
	b = appendFloat32(b, t.Y)
	return appendFloat32(b, t.Z)
}

////////////////

type ValueVector4 struct {
	X, Y, Z, W float32
}

func (ValueVector4) Kind() Kind {
	return KindVector4
}
func (t ValueVector4) String() string {
	return formatFloat32(t.X) + "," + formatFloat32(t.Y) + "," +
		formatFloat32(t.Z) + "," + formatFloat32(t.W)
}
func (t ValueVector4) Copy() Value {
	return t
}
func (t ValueVector4) Bytes() []byte {
	b := appendFloat32(nil, t.X)
	b = appendFloat32(b, t.Y)
	b = appendFloat32(b, t.Z)
	return appendFloat32(b, t.W)
}

////////////////

type ValueQuaternion struct {
	X, Y, Z, W float32
}

func (ValueQuaternion) Kind() Kind {
	return KindQuaternion
}
func (t ValueQuaternion) String() string {
	return formatFloat32(t.X) + "," + formatFloat32(t.Y) + "," +
		formatFloat32(t.Z) + "," + formatFloat32(t.W)
}
func (t ValueQuaternion) Copy() Value {
	return t
}
func (t ValueQuaternion) Bytes() []byte {
	b := appendFloat32(nil, t.X)
	b = appendFloat32(b, t.Y)
	b = appendFloat32(b, t.Z)
	return appendFloat32(b, t.W)
}
