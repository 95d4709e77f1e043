package hasher

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ID returns the 16-hex-char xxHash64 of s.  Placeholder handles use it as
// their cache identity, so two widgets given the same hash string share one
// decoded entry.
func ID(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// ContentHash computes the xxHash64 of data as hex, truncated to hexLen
// characters when 0 < hexLen < 16.
func ContentHash(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncate(h.Sum64(), hexLen), nil
}

func truncate(sum uint64, hexLen int) string {
	full := fmt.Sprintf("%016x", sum)
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
