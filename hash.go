package fcbfile

import (
	"fmt"
	"hash/crc32"
	"strconv"
)

// HashName returns the 32-bit hash of a class or field name as used by the
// binary container: the ones' complement CRC-32 (IEEE polynomial, JAMCRC
// finalization) of the lowercased name. Hashing is case-insensitive for
// ASCII names.
func HashName(name string) uint32 {
	b := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return ^crc32.ChecksumIEEE(b)
}

// FormatHash renders a name hash as eight uppercase hexadecimal digits,
// the form used by the markup dialect's hash attribute.
func FormatHash(h uint32) string {
	return fmt.Sprintf("%08X", h)
}

// ParseHash parses the hexadecimal form produced by FormatHash.
func ParseHash(s string) (uint32, error) {
	h, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad name hash %q: %w", s, err)
	}
	return uint32(h), nil
}
