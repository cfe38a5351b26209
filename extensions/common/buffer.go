package common

import (
	"io"

	pool "github.com/libp2p/go-buffer-pool"
)

// DrainAll reads r to completion into a contiguous byte slice, staging
// through a pooled buffer, then closes r. A nil reader yields a nil slice,
// not an error.
func DrainAll(r io.ReadCloser) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	defer r.Close()

	buf := pool.NewBuffer(nil)
	defer buf.Reset()

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
