package ingest

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Fingerprint identifies file content for the duplicate upload policy
func Fingerprint(content []byte) string {
	h1, h2 := murmur3.Sum128(content)
	return fmt.Sprintf("%016x%016x", h1, h2)
}
