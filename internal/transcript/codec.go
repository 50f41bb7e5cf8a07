package transcript

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// ErrDigestMismatch is returned when a stored transcript does not hash to
// its recorded digest.
var ErrDigestMismatch = errors.New("transcript digest mismatch")

// Compression identifies how an encoded transcript payload is compressed.
// The values are stored in the history database.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name as used in configuration.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown transcript compression %q", name)
	}
}

// Encoded is a serialized transcript ready for storage.
type Encoded struct {
	// Compression is the algorithm actually applied. Payloads that do not
	// shrink are stored uncompressed regardless of the requested algorithm.
	Compression Compression
	RawSize     int
	Digest      [32]byte
	Payload     []byte
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transcript: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("transcript: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transcript: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("transcript: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes t and compresses it with the requested algorithm.
func Encode(t *Transcript, compression Compression) (Encoded, error) {
	raw, err := encMode.Marshal(t)
	if err != nil {
		return Encoded{}, fmt.Errorf("encode transcript: %w", err)
	}
	out := Encoded{
		Compression: CompressionNone,
		RawSize:     len(raw),
		Digest:      blake3.Sum256(raw),
		Payload:     raw,
	}
	var compressed []byte
	switch compression {
	case CompressionNone:
		return out, nil
	case CompressionZstd:
		compressed = zstdEncoder.EncodeAll(raw, nil)
	case CompressionLZ4:
		compressed, err = compressLZ4(raw)
		if err != nil {
			return Encoded{}, err
		}
	default:
		return Encoded{}, fmt.Errorf("encode transcript: unsupported compression %d", compression)
	}
	if len(compressed) == 0 || len(compressed) >= len(raw) {
		return out, nil
	}
	out.Compression = compression
	out.Payload = compressed
	return out, nil
}

// Decode reverses Encode and verifies the digest.
func Decode(enc Encoded) (*Transcript, error) {
	var raw []byte
	switch enc.Compression {
	case CompressionNone:
		raw = enc.Payload
	case CompressionZstd:
		var err error
		raw, err = zstdDecoder.DecodeAll(enc.Payload, make([]byte, 0, enc.RawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	case CompressionLZ4:
		raw = make([]byte, enc.RawSize)
		n, err := lz4.UncompressBlock(enc.Payload, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		raw = raw[:n]
	default:
		return nil, fmt.Errorf("decode transcript: unsupported compression %d", enc.Compression)
	}
	if len(raw) != enc.RawSize {
		return nil, fmt.Errorf("decode transcript: got %d bytes, expected %d", len(raw), enc.RawSize)
	}
	if blake3.Sum256(raw) != enc.Digest {
		return nil, ErrDigestMismatch
	}
	var t Transcript
	if err := decMode.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &t, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return destination[:written], nil
}
