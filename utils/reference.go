package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateCode returns 2n uppercase hex characters from crypto/rand.
func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateReference builds a merchant reference number for a new ticket
// purchase. References are unguessable; artifact URLs are addressed by
// them without a further auth layer.
func GenerateReference() (string, error) {
	code, err := GenerateCode(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UNITE-%s", code), nil
}
