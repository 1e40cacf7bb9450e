package intern

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/stringpool/pkg/safeconv"
)

// Snapshot framing constants.
const (
	// snapshotVersion is bumped on incompatible format changes.
	snapshotVersion = 1

	// snapshotFlagLZ4 marks an LZ4 block-compressed payload.
	snapshotFlagLZ4 = 1 << 0

	// maxSnapshotStrings bounds decoded counts to reject corrupt headers
	// before allocating.
	maxSnapshotStrings = math.MaxInt32
)

// snapshotMagic identifies a stringpool snapshot stream.
var snapshotMagic = [4]byte{'S', 'P', 'S', 'N'}

// ErrSnapshotFormat is returned when a snapshot stream is malformed or
// of an unsupported version.
var ErrSnapshotFormat = errors.New("intern: malformed snapshot")

// Source is any interner flavor or view that can be snapshotted: its
// ordered (key, string) pairs fully describe it, because reinterning the
// strings in order reproduces the keys.
type Source[K Key] interface {
	All() iter.Seq2[K, string]
	Len() int
}

// SnapshotOption configures snapshot encoding.
type SnapshotOption func(*snapshotConfig)

// snapshotConfig holds encoding parameters.
type snapshotConfig struct {
	compress bool
}

// WithCompression enables LZ4 block compression of the string payload.
func WithCompression() SnapshotOption {
	return func(c *snapshotConfig) {
		c.compress = true
	}
}

// WriteSnapshot serializes src as its ordered list of interned strings.
// Reading the snapshot back reproduces the same keys, provided src has
// no discarded tentative keys (a ThreadedInterner that saw insert races
// re-keys densely on restore).
func WriteSnapshot[K Key](w io.Writer, src Source[K], opts ...SnapshotOption) error {
	var cfg snapshotConfig

	for _, opt := range opts {
		opt(&cfg)
	}

	payload := encodePayload(src)

	header := make([]byte, 0, len(snapshotMagic)+2+3*binary.MaxVarintLen64)
	header = append(header, snapshotMagic[:]...)
	header = append(header, snapshotVersion)

	flags := byte(0)
	if cfg.compress {
		flags |= snapshotFlagLZ4
	}

	header = append(header, flags)
	header = binary.AppendUvarint(header, uint64(src.Len()))
	header = binary.AppendUvarint(header, uint64(len(payload)))

	body := payload

	if cfg.compress {
		compressed := make([]byte, lz4.CompressBlockBound(len(payload)))

		n, err := lz4.CompressBlock(payload, compressed, nil)
		if err != nil {
			return fmt.Errorf("snapshot: compress: %w", err)
		}

		if n == 0 {
			// Incompressible payload; store it raw instead.
			flags &^= snapshotFlagLZ4
			header[len(snapshotMagic)+1] = flags
		} else {
			body = compressed[:n]
		}
	}

	if flags&snapshotFlagLZ4 != 0 {
		header = binary.AppendUvarint(header, uint64(len(body)))
	}

	_, err := w.Write(header)
	if err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	_, err = w.Write(body)
	if err != nil {
		return fmt.Errorf("snapshot: write payload: %w", err)
	}

	return nil
}

// encodePayload frames every string as a uvarint length plus raw bytes,
// in ascending key order.
func encodePayload[K Key](src Source[K]) []byte {
	var buf bytes.Buffer

	var lenBuf [binary.MaxVarintLen64]byte

	for _, s := range src.All() {
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		buf.Write(lenBuf[:n])
		buf.WriteString(s)
	}

	return buf.Bytes()
}

// ReadSnapshot reconstructs an interner by interning each snapshot
// string in order. Construction options (capacity, limits, hasher) apply
// to the new interner; a capacity is derived from the snapshot when none
// is given.
func ReadSnapshot[K Key](r io.Reader, opts ...Option) (*Interner[K], error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}

	count, payload, err := decodeFraming(raw)
	if err != nil {
		return nil, err
	}

	interner := New[K](append([]Option{
		WithCapacity(Capacity{Strings: safeconv.MustUint64ToInt(count), Bytes: len(payload)}),
	}, opts...)...)

	for range count {
		length, n := binary.Uvarint(payload)
		if n <= 0 || length > uint64(len(payload)-n) {
			return nil, fmt.Errorf("%w: truncated string frame", ErrSnapshotFormat)
		}

		payload = payload[n:]

		_, err = interner.GetOrIntern(string(payload[:length]))
		if err != nil {
			return nil, fmt.Errorf("snapshot: reintern: %w", err)
		}

		payload = payload[length:]
	}

	return interner, nil
}

// decodeFraming validates the header and returns the string count and
// the decompressed payload.
func decodeFraming(raw []byte) (uint64, []byte, error) {
	headerLen := len(snapshotMagic) + 2
	if len(raw) < headerLen {
		return 0, nil, fmt.Errorf("%w: short header", ErrSnapshotFormat)
	}

	if !bytes.Equal(raw[:len(snapshotMagic)], snapshotMagic[:]) {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrSnapshotFormat)
	}

	version := raw[len(snapshotMagic)]
	if version != snapshotVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotFormat, version)
	}

	flags := raw[len(snapshotMagic)+1]
	rest := raw[headerLen:]

	count, n := binary.Uvarint(rest)
	if n <= 0 || count > maxSnapshotStrings {
		return 0, nil, fmt.Errorf("%w: bad string count", ErrSnapshotFormat)
	}

	rest = rest[n:]

	rawSize, n := binary.Uvarint(rest)
	if n <= 0 || rawSize > math.MaxInt32 {
		return 0, nil, fmt.Errorf("%w: bad payload size", ErrSnapshotFormat)
	}

	rest = rest[n:]

	if flags&snapshotFlagLZ4 == 0 {
		if uint64(len(rest)) < rawSize {
			return 0, nil, fmt.Errorf("%w: truncated payload", ErrSnapshotFormat)
		}

		return count, rest[:rawSize], nil
	}

	compSize, n := binary.Uvarint(rest)
	if n <= 0 || uint64(len(rest)-n) < compSize {
		return 0, nil, fmt.Errorf("%w: truncated compressed payload", ErrSnapshotFormat)
	}

	rest = rest[n:]

	payload := make([]byte, rawSize)

	written, err := lz4.UncompressBlock(rest[:compSize], payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSnapshotFormat, err)
	}

	if uint64(written) != rawSize {
		return 0, nil, fmt.Errorf("%w: decompressed size mismatch", ErrSnapshotFormat)
	}

	return count, payload, nil
}
