package model

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashURL returns the hex SHA3-256 digest of a URL. It keys the recheck
// cache and the verdict history.
func HashURL(url string) string {
	sum := sha3.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
