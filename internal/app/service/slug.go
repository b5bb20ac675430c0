package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SlugGenerator derives a short base62 slug from a link id.
type SlugGenerator struct {
	numChars int
	elements string
}

func NewSlugGenerator(numChars int) *SlugGenerator {
	return &SlugGenerator{
		numChars: numChars,
		elements: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	}
}

// Generate hashes seed with SHA-256 and keeps the first numChars base62 digits.
func (g *SlugGenerator) Generate(seed string) string {
	hash := sha256.Sum256([]byte(seed))
	encoded := g.base16ToBase62(hex.EncodeToString(hash[:]))

	if len(encoded) < g.numChars {
		encoded = strings.Repeat("0", g.numChars-len(encoded)) + encoded
	}
	return encoded[:g.numChars]
}

// base16ToBase62 folds the hex digest into a uint64 and writes it in base62.
func (g *SlugGenerator) base16ToBase62(hexString string) string {
	var value uint64
	for _, char := range hexString {
		if char >= '0' && char <= '9' {
			value = value*16 + uint64(char-'0')
		} else if char >= 'a' && char <= 'f' {
			value = value*16 + uint64(char-'a'+10)
		}
	}

	var sb []byte
	for value > 0 {
		sb = append([]byte{g.elements[value%62]}, sb...)
		value /= 62
	}
	return string(sb)
}
