package safe_random

import (
	"math/big"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomBytes(t *testing.T) {
	n := 32
	b, err := GenerateRandomBytes(n)
	require.NoError(t, err)
	assert.Len(t, b, n)

	// 极不可能全为零
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	assert.False(t, allZero, "GenerateRandomBytes 返回了全零数据")
}

func TestGenerateRandomInt(t *testing.T) {
	max := big.NewInt(100)
	for i := 0; i < 100; i++ {
		n, err := GenerateRandomInt(max)
		require.NoError(t, err)
		assert.True(t, n.Sign() >= 0 && n.Cmp(max) < 0, "value %v out of [0, %v)", n, max)
	}

	_, err := GenerateRandomInt(big.NewInt(0))
	assert.Error(t, err)
}

func TestGenerateReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}
	// 36^8 空间内 200 次几乎不可能重复
	assert.Greater(t, len(seen), 195)
}

func TestGenerateStringInvalid(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		alphabet string
	}{
		{"zero length", 0, "AB"},
		{"negative length", -1, "AB"},
		{"empty alphabet", 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateString(tt.n, tt.alphabet)
			assert.Error(t, err)
		})
	}
}
