package declare

import (
	"github.com/duniatools/fcbfile"
)

func normInt(v interface{}) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return int64(v)
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	}

	return 0
}

func normUint(v interface{}) uint64 {
	switch v := v.(type) {
	case int:
		return uint64(v)
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return uint64(v)
	case int8:
		return uint64(v)
	case int16:
		return uint64(v)
	case int32:
		return uint64(v)
	case int64:
		return uint64(v)
	case float32:
		return uint64(v)
	case float64:
		return uint64(v)
	}

	return 0
}

func normFloat32(v interface{}) float32 {
	switch v := v.(type) {
	case int:
		return float32(v)
	case uint:
		return float32(v)
	case uint8:
		return float32(v)
	case uint16:
		return float32(v)
	case uint32:
		return float32(v)
	case uint64:
		return float32(v)
	case int8:
		return float32(v)
	case int16:
		return float32(v)
	case int32:
		return float32(v)
	case int64:
		return float32(v)
	case float32:
		return float32(v)
	case float64:
		return float32(v)
	}

	return 0
}

func normFloat64(v interface{}) float64 {
	switch v := v.(type) {
	case int:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return float64(v)
	}

	return 0
}

func normBool(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// arg returns the i'th argument, or nil when there are not enough; the
// norm helpers turn nil into the zero of their type.
func arg(v []interface{}, i int) interface{} {
	if i < len(v) {
		return v[i]
	}
	return nil
}

// value builds the fcbfile.Value of a kind from loosely typed arguments.
func value(k fcbfile.Kind, v []interface{}) fcbfile.Value {
	if len(v) == 1 {
		if val, ok := v[0].(fcbfile.Value); ok && val.Kind() == k {
			return val
		}
	}
	switch k {
	case fcbfile.KindBool:
		return fcbfile.ValueBool(normBool(arg(v, 0)))
	case fcbfile.KindInt8:
		return fcbfile.ValueInt8(normInt(arg(v, 0)))
	case fcbfile.KindUInt8:
		return fcbfile.ValueUInt8(normUint(arg(v, 0)))
	case fcbfile.KindInt16:
		return fcbfile.ValueInt16(normInt(arg(v, 0)))
	case fcbfile.KindUInt16:
		return fcbfile.ValueUInt16(normUint(arg(v, 0)))
	case fcbfile.KindInt32:
		return fcbfile.ValueInt32(normInt(arg(v, 0)))
	case fcbfile.KindUInt32:
		return fcbfile.ValueUInt32(normUint(arg(v, 0)))
	case fcbfile.KindInt64:
		return fcbfile.ValueInt64(normInt(arg(v, 0)))
	case fcbfile.KindUInt64:
		return fcbfile.ValueUInt64(normUint(arg(v, 0)))
	case fcbfile.KindFloat32:
		return fcbfile.ValueFloat32(normFloat32(arg(v, 0)))
	case fcbfile.KindFloat64:
		return fcbfile.ValueFloat64(normFloat64(arg(v, 0)))
	case fcbfile.KindHash32:
		return fcbfile.ValueHash32(normUint(arg(v, 0)))
	case fcbfile.KindHash64:
		return fcbfile.ValueHash64(normUint(arg(v, 0)))
	case fcbfile.KindId32:
		return fcbfile.ValueId32(normUint(arg(v, 0)))
	case fcbfile.KindId64:
		return fcbfile.ValueId64(normUint(arg(v, 0)))
	case fcbfile.KindString:
		switch s := arg(v, 0).(type) {
		case string:
			return fcbfile.ValueString(s)
		case []byte:
			return fcbfile.ValueString(s)
		}
		return fcbfile.ValueString("")
	case fcbfile.KindBinHex:
		switch b := arg(v, 0).(type) {
		case []byte:
			return fcbfile.ValueBinHex(b)
		case string:
			return fcbfile.ValueBinHex(b)
		}
		return fcbfile.ValueBinHex(nil)
	case fcbfile.KindVector2:
		return fcbfile.ValueVector2{
			X: normFloat32(arg(v, 0)),
			Y: normFloat32(arg(v, 1)),
		}
	case fcbfile.KindVector3:
		return fcbfile.ValueVector3{
			X: normFloat32(arg(v, 0)),
			Y: normFloat32(arg(v, 1)),
			Z: normFloat32(arg(v, 2)),
		}
	case fcbfile.KindVector4:
		return fcbfile.ValueVector4{
			X: normFloat32(arg(v, 0)),
			Y: normFloat32(arg(v, 1)),
			Z: normFloat32(arg(v, 2)),
			W: normFloat32(arg(v, 3)),
		}
	case fcbfile.KindQuaternion:
		return fcbfile.ValueQuaternion{
			X: normFloat32(arg(v, 0)),
			Y: normFloat32(arg(v, 1)),
			Z: normFloat32(arg(v, 2)),
			W: normFloat32(arg(v, 3)),
		}
	}
	return nil
}
