package registry

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// EncodeID derives the content address of an entry from its source
// locator: a 16-byte BLAKE2b digest of the locator's UTF-8 bytes, hex
// encoded. The id depends only on where the document lives, never on what
// it says, so re-registering a changed document at the same locator updates
// the existing entry instead of creating a new one.
func EncodeID(locator string) (string, error) {
	if locator == "" {
		return "", inputErrorf("missing source locator")
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(locator))
	return hex.EncodeToString(h.Sum(nil)), nil
}
