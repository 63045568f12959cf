package shard

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength       = 8
)

// encodeBase36 converts data to a base36 string of exactly length characters,
// keeping the least significant digits.
func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// hashID derives a shard id from its level, title and content. The nonce is
// bumped on collisions; with a deterministic creation order the result is
// still reproducible.
func hashID(levelType, title, content string, nonce int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", levelType, title, content, nonce)))
	return fmt.Sprintf("%s-%s", levelType, encodeBase36(sum[:6], idLength))
}
