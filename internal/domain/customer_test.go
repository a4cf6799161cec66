package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCustomerCode(t *testing.T) {
	tests := []struct {
		rank int
		want string
	}{
		{0, "aaaa"},
		{1, "aaab"},
		{25, "aaaz"},
		{26, "aaba"},
		{27, "aabb"},
		{26 * 26, "abaa"},
		{MaxCustomerCodes - 1, "zzzz"},
	}

	for _, tc := range tests {
		got, err := EncodeCustomerCode(tc.rank)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)

		back, err := DecodeCustomerCode(got)
		require.NoError(t, err)
		assert.Equal(t, tc.rank, back)
	}
}

func TestEncodeCustomerCode_OutOfRange(t *testing.T) {
	_, err := EncodeCustomerCode(-1)
	assert.ErrorIs(t, err, ErrCustomerCodeExhausted)
	_, err = EncodeCustomerCode(MaxCustomerCodes)
	assert.ErrorIs(t, err, ErrCustomerCodeExhausted)
}

func TestEncodeCustomerCode_Injective(t *testing.T) {
	seen := make(map[string]int, 30)
	for rank := 0; rank < 30; rank++ {
		code, err := EncodeCustomerCode(rank)
		require.NoError(t, err)
		prev, dup := seen[code]
		require.False(t, dup, "rank %d collides with %d", rank, prev)
		seen[code] = rank
	}
}

func TestDecodeCustomerCode_Invalid(t *testing.T) {
	for _, code := range []string{"", "aaa", "aaaaa", "aa1a", "àaaa"} {
		_, err := DecodeCustomerCode(code)
		assert.ErrorIs(t, err, ErrInvalidCustomerCode, code)
	}
	rank, err := DecodeCustomerCode(" AABA ")
	require.NoError(t, err)
	assert.Equal(t, 26, rank)
}

func TestNextCustomerCode(t *testing.T) {
	next, err := NextCustomerCode("")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", next)

	next, err = NextCustomerCode("aaaz")
	require.NoError(t, err)
	assert.Equal(t, "aaba", next)

	_, err = NextCustomerCode("zzzz")
	assert.ErrorIs(t, err, ErrCustomerCodeExhausted)
}
