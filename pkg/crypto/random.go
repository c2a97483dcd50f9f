package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

var (
	randomRead = rand.Read
	randomInt  = rand.Int
)

// GenerateRandomToken generates a hex token from length random bytes
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := randomRead(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateSessionID generates a 32-character session identifier
func GenerateSessionID() (string, error) {
	return GenerateRandomToken(16)
}

// RandomString draws n characters uniformly from alphabet
func RandomString(alphabet string, n int) (string, error) {
	if alphabet == "" {
		return "", errors.New("empty alphabet")
	}
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := randomInt(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to draw random character: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// RandomDigits draws n decimal digits
func RandomDigits(n int) (string, error) {
	return RandomString("0123456789", n)
}
