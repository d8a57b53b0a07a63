package shardset_test

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framelabel/internal/services"
	"framelabel/internal/shardset"
)

func writeShard(t *testing.T, path string, payloads ...[]byte) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create shard: %v", err)
	}
	defer file.Close()
	for _, payload := range payloads {
		if err := shardset.AppendRecord(file, payload); err != nil {
			t.Fatalf("append record: %v", err)
		}
	}
}

func TestResolveSortsLexicographically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.tfrecord", "a.tfrecord", "b.tfrecord"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	shards, err := shardset.Resolve(filepath.Join(dir, "*.tfrecord"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(shards) != 3 {
		t.Fatalf("expected 3 shards, got %d", len(shards))
	}
	want := []string{"a.tfrecord", "b.tfrecord", "c.tfrecord"}
	for i, shard := range shards {
		if filepath.Base(shard.Path) != want[i] {
			t.Fatalf("shard %d = %s, want %s", i, filepath.Base(shard.Path), want[i])
		}
		if shard.SequenceIndex != i {
			t.Fatalf("shard %d has sequence index %d", i, shard.SequenceIndex)
		}
	}
}

func TestResolveEmptyPatternIsNotFound(t *testing.T) {
	_, err := shardset.Resolve(filepath.Join(t.TempDir(), "*.tfrecord"))
	if err == nil {
		t.Fatal("expected error for empty match set")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.tfrecord")
	payloads := [][]byte{[]byte("frame-0"), []byte("frame-1"), []byte("frame-2")}
	writeShard(t, path, payloads...)

	reader, err := shardset.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer reader.Close()

	for i, want := range payloads {
		got, err := reader.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if string(got) != string(want) {
			t.Fatalf("record %d = %q, want %q", i, got, want)
		}
	}
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderDetectsPayloadCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.tfrecord")
	writeShard(t, path, []byte("frame-payload"))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read shard: %v", err)
	}
	raw[14] ^= 0xff // flip a payload byte, leave framing intact
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("rewrite shard: %v", err)
	}

	reader, err := shardset.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer reader.Close()

	_, err = reader.Next()
	if err == nil {
		t.Fatal("expected checksum error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestReaderRejectsOversizedRecordLength(t *testing.T) {
	// A header whose length field is absurd but whose CRC validates must be
	// rejected as framing corruption, not turned into a huge allocation.
	// Near max uint64 the payload size computation would also wrap around.
	header := make([]byte, 12)
	binary.LittleEndian.PutUint64(header[:8], math.MaxUint64-3)
	crc := crc32.Checksum(header[:8], crc32.MakeTable(crc32.Castagnoli))
	binary.LittleEndian.PutUint32(header[8:12], ((crc>>15)|(crc<<17))+0xa282ead8)

	path := filepath.Join(t.TempDir(), "shard.tfrecord")
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}

	reader, err := shardset.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer reader.Close()

	_, err = reader.Next()
	if err == nil {
		t.Fatal("expected framing error for oversized length")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected length-limit detail, got %v", err)
	}
}
