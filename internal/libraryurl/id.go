package libraryurl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDWidth is the zero-padded width of a library id.
const IDWidth = 5

// PadLibraryID renders id as a non-negative decimal left-padded with zeros to
// IDWidth. Longer ids keep their natural width. Values that are not integers
// coerce to 0; negative values clamp to 0.
func PadLibraryID(id any) string {
	return padDigits(normalizeID(id))
}

// NormalizeID renders id as a decimal string without padding, or "" when id
// carries no usable value.
func NormalizeID(id any) string {
	if id == nil {
		return ""
	}
	if s, ok := id.(string); ok && strings.TrimSpace(s) == "" {
		return ""
	}
	return normalizeID(id)
}

func normalizeID(id any) string {
	switch v := id.(type) {
	case nil:
		return "0"
	case int:
		return clampInt(int64(v))
	case int32:
		return clampInt(int64(v))
	case int64:
		return clampInt(v)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return "0"
		}
		return strconv.FormatFloat(math.Trunc(v), 'f', 0, 64)
	case string:
		return normalizeDigits(strings.TrimSpace(v))
	case fmt.Stringer:
		return normalizeDigits(strings.TrimSpace(v.String()))
	default:
		return "0"
	}
}

func clampInt(v int64) string {
	if v < 0 {
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

// normalizeDigits strips leading zeros from an all-digit string. Strings are
// not parsed into integers so ids of any length survive.
func normalizeDigits(s string) string {
	if s == "" || !AllDigits(s) {
		return "0"
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

func padDigits(s string) string {
	if len(s) >= IDWidth {
		return s
	}
	return strings.Repeat("0", IDWidth-len(s)) + s
}

// AllDigits reports whether s is a non-empty run of ASCII digits.
func AllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
