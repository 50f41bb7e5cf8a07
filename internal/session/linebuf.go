package session

import "bytes"

// LineBuffer accumulates raw output chunks and yields complete lines.
//
// Lines end at "\n", "\r\n" or a bare "\r". A run of backspaces also ends a
// line: 7-Zip redraws its progress indicator by backspacing over the previous
// value, so each redraw becomes its own line. Whitespace-only fragments
// between backspace runs are dropped.
type LineBuffer struct {
	partial []byte
	skipLF  bool
}

// Feed appends chunk and returns the lines it completed, without their
// terminators. An incomplete trailing line is kept for the next call.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	var lines [][]byte
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]
		if b.skipLF {
			b.skipLF = false
			if c == '\n' {
				continue
			}
		}
		switch c {
		case '\n':
			lines = append(lines, b.take())
		case '\r':
			lines = append(lines, b.take())
			b.skipLF = true
		case '\b':
			for i+1 < len(chunk) && chunk[i+1] == '\b' {
				i++
			}
			if line := b.take(); len(bytes.TrimSpace(line)) > 0 {
				lines = append(lines, line)
			}
		default:
			b.partial = append(b.partial, c)
		}
	}
	return lines
}

// Flush returns the pending partial line, if any, and resets the buffer.
func (b *LineBuffer) Flush() ([]byte, bool) {
	b.skipLF = false
	line := b.take()
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, false
	}
	return line, true
}

// Pending reports the number of buffered bytes not yet part of a line.
func (b *LineBuffer) Pending() int {
	return len(b.partial)
}

func (b *LineBuffer) take() []byte {
	line := b.partial
	b.partial = nil
	if line == nil {
		return []byte{}
	}
	return line
}
