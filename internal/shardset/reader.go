package shardset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"framelabel/internal/services"
)

// Records are stored in TFRecord framing: an 8-byte little-endian payload
// length, the masked CRC32-C of those length bytes, the payload, and the
// masked CRC32-C of the payload.
const (
	lengthHeaderSize = 12
	payloadCRCSize   = 4
	crcMaskDelta     = 0xa282ead8

	// maxRecordSize bounds the payload allocation. Frame records are a few
	// kilobytes; a length beyond this is framing corruption, not data.
	maxRecordSize = 256 << 20
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Reader streams raw records from a single shard file in storage order.
type Reader struct {
	file   *os.File
	buf    *bufio.Reader
	path   string
	offset int64
}

// OpenReader opens a shard for sequential record reads.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "shardset", "open shard", path, err)
	}
	return &Reader{file: file, buf: bufio.NewReaderSize(file, 1<<20), path: path}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Next returns the next record payload, or io.EOF at the end of the shard.
// Framing corruption is reported as a validation error naming the offset.
func (r *Reader) Next() ([]byte, error) {
	header := make([]byte, lengthHeaderSize)
	if _, err := io.ReadFull(r.buf, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, r.corrupt("read record header", err)
	}

	length := binary.LittleEndian.Uint64(header[:8])
	lengthCRC := binary.LittleEndian.Uint32(header[8:12])
	if maskedCRC(header[:8]) != lengthCRC {
		return nil, r.corrupt("length checksum mismatch", nil)
	}
	if length > maxRecordSize {
		return nil, r.corrupt(fmt.Sprintf("record length %d exceeds %d", length, maxRecordSize), nil)
	}

	payload := make([]byte, length+payloadCRCSize)
	if _, err := io.ReadFull(r.buf, payload); err != nil {
		return nil, r.corrupt("read record payload", err)
	}

	data := payload[:length]
	payloadCRC := binary.LittleEndian.Uint32(payload[length:])
	if maskedCRC(data) != payloadCRC {
		return nil, r.corrupt("payload checksum mismatch", nil)
	}

	r.offset += int64(lengthHeaderSize) + int64(length) + payloadCRCSize
	return data, nil
}

func (r *Reader) corrupt(detail string, err error) error {
	return services.Wrap(services.ErrValidation, "shardset", "read record",
		fmt.Sprintf("%s at offset %d in %s", detail, r.offset, r.path), err)
}

// maskedCRC computes the masked CRC32-C used by the TFRecord container.
func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + crcMaskDelta
}

// AppendRecord writes one record in TFRecord framing. It exists for tooling
// and tests that synthesize shards.
func AppendRecord(w io.Writer, payload []byte) error {
	header := make([]byte, lengthHeaderSize)
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:12], maskedCRC(header[:8]))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	footer := make([]byte, payloadCRCSize)
	binary.LittleEndian.PutUint32(footer, maskedCRC(payload))
	_, err := w.Write(footer)
	return err
}
