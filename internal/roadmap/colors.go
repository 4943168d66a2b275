package roadmap

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateHexColor accepts a 3- or 6-digit hex color, with or without a
// leading "#", and returns the bare digits. Anything else returns "".
func ValidateHexColor(color string) string {
	clean := strings.TrimPrefix(color, "#")
	if len(clean) != 3 && len(clean) != 6 {
		return ""
	}
	for _, c := range clean {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return ""
		}
	}
	return clean
}

// NormalizeHex expands a 3-digit hex color to 6 digits ("abc" → "aabbcc").
func NormalizeHex(hex string) string {
	if len(hex) != 3 {
		return hex
	}
	var b strings.Builder
	for _, c := range hex {
		b.WriteRune(c)
		b.WriteRune(c)
	}
	return b.String()
}

// HexToRGBA renders a hex color as a CSS rgba() value with the given alpha.
func HexToRGBA(hex string, alpha float64) string {
	n := NormalizeHex(hex)
	r, _ := strconv.ParseUint(n[0:2], 16, 8)
	g, _ := strconv.ParseUint(n[2:4], 16, 8)
	b, _ := strconv.ParseUint(n[4:6], 16, 8)
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, trimFloat(alpha))
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
