// ABOUTME: Lossy UTF-8 decoding of raw socket reads.
// ABOUTME: Carries partial runes across reads and replaces invalid bytes.

package agent

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decoder turns successive reads into text. It is not safe for concurrent
// use; each receive loop owns one.
type decoder struct {
	t       transform.Transformer
	pending []byte
}

func newDecoder() *decoder {
	return &decoder{t: unicode.UTF8.NewDecoder()}
}

// decode converts p, prefixed by any bytes held back from the previous
// call. With atEOF false an incomplete trailing rune is held back; with
// atEOF true it is replaced.
func (d *decoder) decode(p []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(src, d.pending...)
	src = append(src, p...)
	d.pending = d.pending[:0]

	// Each invalid byte can grow into a 3-byte U+FFFD.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	var out []byte
	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		break
	}
	d.pending = append(d.pending, src...)
	return string(out)
}

// flush returns whatever was held back, with incomplete runes replaced.
func (d *decoder) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	return d.decode(nil, true)
}
