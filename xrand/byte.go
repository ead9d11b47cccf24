package xrand

import (
	"crypto/rand"
	"fmt"
)

// Letters is the URL-safe alphanumeric set used for generated tokens.
const Letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateRandomBytes returns a random alphanumeric string of length.
func GenerateRandomBytes(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be a positive integer: %d", length)
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %v", err)
	}

	for i := 0; i < length; i++ {
		bytes[i] = Letters[int(bytes[i])%len(Letters)]
	}

	return string(bytes), nil
}
