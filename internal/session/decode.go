package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the output encoding assumed when none is configured.
const DefaultEncoding = "utf-8"

// 7-Zip writes in the console code page on Windows; the OEM code pages are
// not part of the WHATWG index so they are resolved here first.
var oemCodePages = map[string]encoding.Encoding{
	"cp437":  charmap.CodePage437,
	"ibm437": charmap.CodePage437,
	"cp850":  charmap.CodePage850,
	"ibm850": charmap.CodePage850,
	"cp852":  charmap.CodePage852,
	"cp866":  charmap.CodePage866,
}

// LookupEncoding resolves an encoding name such as "utf-8", "cp850" or
// "windows-1252".
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	}
	if enc, ok := oemCodePages[key]; ok {
		return enc, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, fmt.Errorf("output encoding %q: %w", name, err)
	}
	return enc, nil
}

type textDecoder struct {
	enc encoding.Encoding
	// stream converts stdout to UTF-8 ahead of line splitting, so code units
	// wider than a byte (UTF-16) never straddle a line break. pending holds
	// the bytes of a code unit cut off at the end of a chunk.
	stream  transform.Transformer
	pending []byte
}

func newTextDecoder(enc encoding.Encoding) textDecoder {
	if enc == nil {
		enc = unicode.UTF8
	}
	return textDecoder{enc: enc, stream: enc.NewDecoder()}
}

// decode converts one self-contained buffer into text. Undecodable input
// falls back to a UTF-8 sanitized copy rather than failing.
func (d *textDecoder) decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		out = raw
	}
	return validText(out)
}

// feed converts the next chunk of a stream to UTF-8. With atEOF set any
// incomplete trailing code unit is flushed as a replacement character.
func (d *textDecoder) feed(chunk []byte, atEOF bool) []byte {
	if len(chunk) == 0 && len(d.pending) == 0 {
		return nil
	}
	src := append(d.pending, chunk...)
	d.pending = nil
	dst := make([]byte, 4*len(src)+utf8.UTFMax)
	var out []byte
	for len(src) > 0 {
		nDst, nSrc, err := d.stream.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		if err == nil {
			break
		}
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		if errors.Is(err, transform.ErrShortSrc) && !atEOF {
			d.pending = append([]byte(nil), src...)
			return out
		}
		// Keep the undecodable remainder; lines are sanitized later.
		out = append(out, src...)
		d.stream.Reset()
		return out
	}
	if atEOF {
		d.stream.Reset()
	}
	return out
}

func validText(b []byte) string {
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(b)
}
