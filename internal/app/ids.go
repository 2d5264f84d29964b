package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomCode returns a 6-character uppercase alphanumeric room code. The
// 36^6 space makes collisions improbable enough that codes are not checked
// for uniqueness before use.
func newRoomCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}

// newID returns byteLen random bytes hex-encoded. Used for anonymous
// participant identities and reconnect tokens.
func newID(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
