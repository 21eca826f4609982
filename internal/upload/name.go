package upload

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"pinworld/internal/apperror"
)

const (
	suffixLen = 6
	base36    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// FileName builds "{unix ms}-{6 base-36 chars}.{ext}" from the original name.
// ext is the text after the last dot; a name without one is rejected.
func FileName(original string, now time.Time, rnd io.Reader) (string, error) {
	i := strings.LastIndexByte(original, '.')
	if i < 0 || i == len(original)-1 {
		return "", apperror.Validation("name", fmt.Sprintf("file %q has no extension", original))
	}
	ext := original[i+1:]

	suffix, err := randomSuffix(rnd)
	if err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), suffix, ext), nil
}

func randomSuffix(rnd io.Reader) (string, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	max := big.NewInt(int64(len(base36)))
	var b strings.Builder
	b.Grow(suffixLen)
	for i := 0; i < suffixLen; i++ {
		n, err := rand.Int(rnd, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}
