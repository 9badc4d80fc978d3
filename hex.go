package xsession

import "strings"

const hexDigits = "0123456789ABCDEF"

// Hex renders b as uppercase hexadecimal with no group separator.
func Hex(b []byte) string {
	return FormatHex(b, "")
}

// FormatHex renders b as uppercase hexadecimal in groups of two bytes,
// writing sep between groups. FormatHex([]byte{0xde, 0xad, 0xbe, 0xef}, ":")
// yields "DEAD:BEEF". Intended for display and comparison, not transport.
func FormatHex(b []byte, sep string) string {
	var sb strings.Builder
	sb.Grow(len(b)*2 + (len(b)/2)*len(sep))
	for i, c := range b {
		if i > 0 && i%2 == 0 {
			sb.WriteString(sep)
		}
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0F])
	}
	return sb.String()
}
