package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDR_DotThousands(t *testing.T) {
	v, err := ParseIDR("100.000")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), v)
}

func TestParseIDR_CommaThousands(t *testing.T) {
	v, err := ParseIDR("100,000")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), v)
}

func TestParseIDR_Plain(t *testing.T) {
	v, err := ParseIDR("100000")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), v)
}

func TestParseIDR_PrefixAndFractionDropped(t *testing.T) {
	v, err := ParseIDR("Rp 50.000,50")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), v)
}

func TestParseIDR_IDRPrefix(t *testing.T) {
	v, err := ParseIDR("IDR 250000")
	require.NoError(t, err)
	assert.Equal(t, int64(250000), v)
}

func TestParseIDR_Invalid(t *testing.T) {
	_, err := ParseIDR("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseIDR_Empty(t *testing.T) {
	_, err := ParseIDR("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseIDR_Zero(t *testing.T) {
	_, err := ParseIDR("0")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseIDR_Negative(t *testing.T) {
	_, err := ParseIDR("-100")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseIDR_TooLarge(t *testing.T) {
	_, err := ParseIDR("99999999999999")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseIDR_AtMax(t *testing.T) {
	v, err := ParseIDR("1000000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxIDR), v)
}
