package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharset(t *testing.T) {
	assert.Len(t, Charset, 62)
	seen := make(map[rune]bool)
	for _, r := range Charset {
		assert.False(t, seen[r], "duplicate character %q", r)
		seen[r] = true
	}
}

func TestNewGeneratorLength(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLength},
		{5, DefaultLength},
		{6, 6},
		{7, 7},
		{8, 8},
		{9, DefaultLength},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewGenerator(tt.in).Length(), "NewGenerator(%d)", tt.in)
	}
}

func TestGenerate(t *testing.T) {
	for _, length := range []int{6, 7, 8} {
		g := NewGenerator(length)
		for i := 0; i < 500; i++ {
			code, err := g.Generate()
			require.NoError(t, err)
			require.Len(t, code, length)
			for _, r := range code {
				require.True(t, strings.ContainsRune(Charset, r), "unexpected character %q in %q", r, code)
			}
		}
	}
}

func TestGenerateSpreadsAcrossCharset(t *testing.T) {
	g := NewGenerator(DefaultLength)
	seen := make(map[rune]bool)
	for i := 0; i < 2000; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		for _, r := range code {
			seen[r] = true
		}
	}
	// 12000 次抽样几乎必然覆盖全部 62 个字符
	assert.Len(t, seen, len(Charset))
}
