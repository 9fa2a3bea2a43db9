package utils

import (
	"crypto/rand"
	"math/big"
)

const tokenCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRandomToken returns a short code suitable for typing from an e-mail.
func GenerateRandomToken(length int) (string, error) {
	max := big.NewInt(int64(len(tokenCharset)))
	token := make([]byte, length)
	for i := range token {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		token[i] = tokenCharset[n.Int64()]
	}
	return string(token), nil
}
