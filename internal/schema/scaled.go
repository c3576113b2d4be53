package schema

import (
	"strconv"
	"strings"
)

// FormatScaled renders a scaled integer as a decimal string.
func FormatScaled(value int64, scale Scale) string {
	if scale <= 0 {
		return strconv.FormatInt(value, 10)
	}
	neg := value < 0
	if neg {
		value = -value
	}
	digits := strconv.FormatInt(value, 10)
	if len(digits) <= int(scale) {
		digits = strings.Repeat("0", int(scale)-len(digits)+1) + digits
	}
	cut := len(digits) - int(scale)
	out := digits[:cut] + "." + digits[cut:]
	out = strings.TrimRight(out, "0")
	out = strings.TrimRight(out, ".")
	if neg {
		out = "-" + out
	}
	return out
}

// ScaledFromString converts a decimal string into a scaled integer,
// truncating toward zero past the given precision.
func ScaledFromString(s string, scale Scale) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(s, ".")
	if int(scale) < len(fracPart) {
		fracPart = fracPart[:scale]
	}
	for len(fracPart) < int(scale) {
		fracPart += "0"
	}
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return 0
	}
	value, err := strconv.ParseInt(combined, 10, 64)
	if err != nil {
		return 0
	}
	if neg {
		value = -value
	}
	return value
}
