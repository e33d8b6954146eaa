package fcb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/anaminus/parse"
	"golang.org/x/text/encoding/charmap"

	"github.com/duniatools/fcbfile"
)

// readString reads a length-prefixed string record into data. The length
// counts the terminating NUL. Legacy strings are transcoded from
// Windows-1252 to UTF-8.
func readString(fr *parse.BinaryReader, legacy bool, data *fcbfile.ValueString) bool {
	if fr.Err() != nil {
		return true
	}
	start := fr.N()
	var length uint32
	if fr.Number(&length) {
		return true
	}
	if length == 0 {
		return fr.Add(0, EncodingError{
			Offset: start,
			Cause:  errors.New("string record has no terminator"),
		})
	}
	b := make([]byte, length)
	if fr.Bytes(b) {
		return true
	}
	if b[len(b)-1] != 0 {
		return fr.Add(0, EncodingError{
			Offset: start,
			Cause:  errors.New("string is not NUL-terminated"),
		})
	}
	body := b[:len(b)-1]
	if i := bytes.IndexByte(body, 0); i >= 0 {
		return fr.Add(0, EncodingError{
			Offset: start,
			Cause:  fmt.Errorf("string ends after %d of %d declared bytes", i, len(body)),
		})
	}
	if legacy {
		t, err := charmap.Windows1252.NewDecoder().Bytes(body)
		if fr.Add(0, err) {
			return true
		}
		body = t
	}
	*data = fcbfile.ValueString(body)
	return false
}

// writeString writes the wire form of a string value. Legacy strings are
// transcoded back to Windows-1252.
func writeString(fw *parse.BinaryWriter, v fcbfile.ValueString, legacy bool) bool {
	if fw.Err() != nil {
		return true
	}
	body := []byte(v)
	if legacy {
		t, err := charmap.Windows1252.NewEncoder().Bytes(body)
		if err != nil {
			return fw.Add(0, EncodingError{
				Offset: -1,
				Cause:  fmt.Errorf("string %q: %s", string(v), err.Error()),
			})
		}
		body = t
	}
	if i := bytes.IndexByte(body, 0); i >= 0 {
		return fw.Add(0, EncodingError{
			Offset: -1,
			Cause:  fmt.Errorf("string %q contains NUL at %d", string(v), i),
		})
	}
	if fw.Number(uint32(len(body) + 1)) {
		return true
	}
	if fw.Bytes(body) {
		return true
	}
	return fw.Number(uint8(0))
}

// readValue reads the wire form of a value of kind k into data. Returns true
// if reading cannot continue, with the cause left on the cursor.
func readValue(fr *parse.BinaryReader, k fcbfile.Kind, legacy bool, data *fcbfile.Value) bool {
	if fr.Err() != nil {
		return true
	}
	switch k {
	case fcbfile.KindString:
		var s fcbfile.ValueString
		if readString(fr, legacy, &s) {
			return true
		}
		*data = s
		return false
	case fcbfile.KindBinHex:
		var length uint32
		if fr.Number(&length) {
			return true
		}
		b := make(fcbfile.ValueBinHex, length)
		if fr.Bytes(b) {
			return true
		}
		*data = b
		return false
	}
	size := k.Size()
	if size <= 0 {
		return fr.Add(0, MalformedError{
			Offset: fr.N(),
			Cause:  fmt.Errorf("unknown value kind 0x%02X", byte(k)),
		})
	}
	b := make([]byte, size)
	if fr.Bytes(b) {
		return true
	}
	v, err := fcbfile.ValueFromBytes(k, b)
	if fr.Add(0, err) {
		return true
	}
	*data = v
	return false
}

// writeValue writes the wire form of v.
func writeValue(fw *parse.BinaryWriter, v fcbfile.Value, legacy bool) bool {
	if fw.Err() != nil {
		return true
	}
	switch v := v.(type) {
	case fcbfile.ValueString:
		return writeString(fw, v, legacy)
	case fcbfile.ValueBinHex:
		if fw.Number(uint32(len(v))) {
			return true
		}
		return fw.Bytes(v)
	}
	return fw.Bytes(v.Bytes())
}
