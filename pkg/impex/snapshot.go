package impex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/syloe1/lightDb/pkg/compression"
	"github.com/syloe1/lightDb/pkg/logger"
)

// Snapshot stream layout, little-endian:
//
//	[8]  magic "LDBSNAP1"
//	[16] snapshot id (UUID bytes)
//	[1]  compression algorithm
//	[4]  record count
//	[4]  compressed payload length
//	[32] BLAKE2b-256 checksum of the compressed payload
//	[..] compressed payload: per record, 4-byte length + bytes
var magic = []byte("LDBSNAP1")

const headerSize = 8 + 16 + 1 + 4 + 4 + 32

// Info describes an exported or imported snapshot
type Info struct {
	ID        uuid.UUID
	Records   int
	Algorithm compression.Algorithm
}

// Export writes every record payload to w as a checksummed, compressed
// snapshot and returns its descriptor
func Export(w io.Writer, records [][]byte, algorithm compression.Algorithm) (Info, error) {
	var payload bytes.Buffer
	for _, rec := range records {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		payload.Write(lenBuf[:])
		payload.Write(rec)
	}

	compressed, err := compression.NewCompressor(algorithm).Compress(payload.Bytes())
	if err != nil {
		return Info{}, fmt.Errorf("snapshot compression failed: %w", err)
	}

	info := Info{
		ID:        uuid.New(),
		Records:   len(records),
		Algorithm: algorithm,
	}
	checksum := blake2b.Sum256(compressed)

	header := make([]byte, 0, headerSize)
	header = append(header, magic...)
	header = append(header, info.ID[:]...)
	header = append(header, byte(algorithm))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(records)))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(compressed)))
	header = append(header, checksum[:]...)

	if _, err := w.Write(header); err != nil {
		return Info{}, fmt.Errorf("snapshot header write failed: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return Info{}, fmt.Errorf("snapshot payload write failed: %w", err)
	}

	logger.Infof("exported snapshot %s: %d records, %s, %d bytes compressed",
		info.ID, info.Records, algorithm, len(compressed))
	return info, nil
}

// Import reads a snapshot stream, verifies its checksum, and returns the
// record payloads in their original order
func Import(r io.Reader) ([][]byte, Info, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, Info{}, fmt.Errorf("snapshot header read failed: %w", err)
	}
	if !bytes.Equal(header[:8], magic) {
		return nil, Info{}, fmt.Errorf("not a snapshot file: bad magic")
	}

	var info Info
	copy(info.ID[:], header[8:24])
	info.Algorithm = compression.Algorithm(header[24])
	info.Records = int(binary.LittleEndian.Uint32(header[25:29]))
	compressedLen := binary.LittleEndian.Uint32(header[29:33])
	var checksum [32]byte
	copy(checksum[:], header[33:65])

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, Info{}, fmt.Errorf("snapshot payload read failed: %w", err)
	}
	if blake2b.Sum256(compressed) != checksum {
		return nil, Info{}, fmt.Errorf("snapshot %s checksum mismatch", info.ID)
	}

	payload, err := compression.NewCompressor(info.Algorithm).Decompress(compressed)
	if err != nil {
		return nil, Info{}, fmt.Errorf("snapshot decompression failed: %w", err)
	}

	records := make([][]byte, 0, info.Records)
	for offset := 0; len(records) < info.Records; {
		if offset+4 > len(payload) {
			return nil, Info{}, fmt.Errorf("snapshot truncated after %d records", len(records))
		}
		recLen := int(binary.LittleEndian.Uint32(payload[offset : offset+4]))
		offset += 4
		if offset+recLen > len(payload) {
			return nil, Info{}, fmt.Errorf("snapshot truncated after %d records", len(records))
		}
		rec := make([]byte, recLen)
		copy(rec, payload[offset:offset+recLen])
		records = append(records, rec)
		offset += recLen
	}

	logger.Infof("imported snapshot %s: %d records, %s", info.ID, info.Records, info.Algorithm)
	return records, info, nil
}
