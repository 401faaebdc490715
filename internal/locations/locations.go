package locations

import "strings"

// The six site/sector codes offered to users, in keyboard order.
// Two codes per work front: oriente and poniente.
var codes = []string{"BR-OR", "BR-PON", "TALL-OR", "TALL-PON", "LOE-OR", "LOE-PON"}

// Codes returns the valid location codes in display order.
func Codes() []string {
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// IsValid reports whether code is one of the six accepted location codes.
func IsValid(code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// GroupFor maps a location code to its human-readable work front name.
// Unknown prefixes map to "N/A".
func GroupFor(code string) string {
	switch {
	case strings.HasPrefix(code, "TALL"):
		return "TALLERES"
	case strings.HasPrefix(code, "BR"):
		return "BREMEN"
	case strings.HasPrefix(code, "LOE"):
		return "LO ERRAZURIZ"
	default:
		return "N/A"
	}
}
