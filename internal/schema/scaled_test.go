package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatScaled(t *testing.T) {
	assert.Equal(t, "65000.12", FormatScaled(6_500_012, 2))
	assert.Equal(t, "0.25", FormatScaled(2_500, 4))
	assert.Equal(t, "100", FormatScaled(10_000, 2))
	assert.Equal(t, "0.01", FormatScaled(1, 2))
	assert.Equal(t, "-3.5", FormatScaled(-350, 2))
	assert.Equal(t, "42", FormatScaled(42, 0))
	assert.Equal(t, "0", FormatScaled(0, 2))
}

func TestScaledFromString(t *testing.T) {
	assert.Equal(t, int64(6_500_012), ScaledFromString("65000.12", 2))
	assert.Equal(t, int64(2_500), ScaledFromString("0.25", 4))
	assert.Equal(t, int64(10_000), ScaledFromString("100", 2))
	assert.Equal(t, int64(-350), ScaledFromString("-3.50", 2))
	assert.Equal(t, int64(42), ScaledFromString("42.9", 0))
	assert.Equal(t, int64(0), ScaledFromString("", 2))
	assert.Equal(t, int64(0), ScaledFromString("junk", 2))
}

func TestScaledRoundTripTruncates(t *testing.T) {
	// Excess precision truncates toward zero, never rounds up.
	assert.Equal(t, int64(123), ScaledFromString("1.2399", 2))
	assert.Equal(t, "1.23", FormatScaled(123, 2))
}
