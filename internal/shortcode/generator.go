package shortcode

import (
	"crypto/rand"
	"math/big"
)

const (
	// Charset 包含用于生成短码的所有字符
	Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// DefaultLength 是生成的短码的默认长度
	DefaultLength = 6
	// MinLength 和 MaxLength 限定短码长度
	MinLength = 6
	MaxLength = 8
)

var charsetSize = big.NewInt(int64(len(Charset)))

// Generator 生成随机短码，不保证唯一，唯一性由存储层保证
type Generator struct {
	length int
}

// NewGenerator 创建生成器，长度超出 [MinLength, MaxLength] 时使用 DefaultLength
func NewGenerator(length int) *Generator {
	if length < MinLength || length > MaxLength {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Length 返回生成的短码长度
func (g *Generator) Length() int {
	return g.length
}

// Generate 生成一个候选短码
func (g *Generator) Generate() (string, error) {
	return generateRandomString(g.length)
}

// generateRandomString 使用加密安全的随机数生成器生成一个给定长度的字符串
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}
