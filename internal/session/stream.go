package session

import "fmt"

// StreamKind identifies which process pipe a chunk was read from.
type StreamKind uint8

const (
	Stdout StreamKind = 1
	Stderr StreamKind = 2
)

func (k StreamKind) String() string {
	switch k {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", uint8(k))
	}
}

// ParseStreamKind is the inverse of StreamKind.String.
func ParseStreamKind(name string) (StreamKind, bool) {
	switch name {
	case "stdout":
		return Stdout, true
	case "stderr":
		return Stderr, true
	}
	return 0, false
}

// Feed routes a chunk to OnStdout or OnStderr.
func (s *Session) Feed(kind StreamKind, chunk []byte) error {
	switch kind {
	case Stdout:
		s.OnStdout(chunk)
	case Stderr:
		s.OnStderr(chunk)
	default:
		return fmt.Errorf("feed: unknown stream %d", uint8(kind))
	}
	return nil
}
