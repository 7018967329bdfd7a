package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// RandomCode returns n random decimal digits drawn from crypto/rand.  It is
// used for password reset and account verification codes.
func RandomCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
