// Package recfile reads and writes run-record files: a durable snapshot
// of one completed (or aborted) run - which method ran, the bindings it
// ran with, and every sample recorded.
//
// Format: MAGIC(4) | VERSION(2, little-endian) | BODY_LEN(8) | BODY | HASH(32)
//
// The body is deterministically CBOR-encoded; the trailing BLAKE2b-256
// hash covers everything before it and is verified on read, so a
// truncated or tampered record fails loudly instead of loading partially.
package recfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/voltsweep/voltsweep/core/invariant"
)

const (
	// Magic identifies a voltsweep run record.
	Magic = "VREC"

	// Version is the format version (major.minor in one uint16).
	Version uint16 = 0x0001

	// maxBodyLen caps the body size accepted on read (64 MiB). A record
	// holds samples, not raw traces; anything larger is corrupt.
	maxBodyLen = 64 << 20
)

// Record is the persisted body of a run-record file.
type Record struct {
	Method     string            `cbor:"method"`
	Bindings   map[string]string `cbor:"bindings"`
	Samples    []Sample          `cbor:"samples"`
	StartedAt  time.Time         `cbor:"started_at"`
	FinishedAt time.Time         `cbor:"finished_at"`
	Completed  bool              `cbor:"completed"`
}

// Sample is one recorded (setpoint, reading) pair.
type Sample struct {
	Voltage float64 `cbor:"v"`
	Current float64 `cbor:"i"`
}

var encMode cbor.EncMode

func init() {
	// Deterministic encoding: the same record always produces the same
	// bytes, so record hashes are stable across writes. Times carry their
	// full precision as RFC 3339 strings.
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = mode
}

// Write writes rec to w and returns the 32-byte BLAKE2b-256 file hash.
func Write(w io.Writer, rec *Record) ([32]byte, error) {
	invariant.NotNil(w, "w")
	invariant.NotNil(rec, "rec")

	var hash [32]byte

	body, err := encMode.Marshal(rec)
	if err != nil {
		return hash, fmt.Errorf("encoding record body: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(Magic)
	if err := binary.Write(&buf, binary.LittleEndian, Version); err != nil {
		return hash, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(body))); err != nil {
		return hash, err
	}
	buf.Write(body)

	hash = blake2b.Sum256(buf.Bytes())
	buf.Write(hash[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return hash, fmt.Errorf("writing record: %w", err)
	}
	return hash, nil
}

// Read decodes a record from r, verifying magic, version and hash.
func Read(r io.Reader) (*Record, error) {
	invariant.NotNil(r, "r")

	header := make([]byte, len(Magic)+2+8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading record header: %w", err)
	}
	if string(header[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("not a run record (bad magic %q)", header[:len(Magic)])
	}
	version := binary.LittleEndian.Uint16(header[len(Magic):])
	if version != Version {
		return nil, fmt.Errorf("unsupported record version 0x%04x", version)
	}
	bodyLen := binary.LittleEndian.Uint64(header[len(Magic)+2:])
	if bodyLen > maxBodyLen {
		return nil, fmt.Errorf("record body length %d exceeds limit", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading record body: %w", err)
	}
	var stored [32]byte
	if _, err := io.ReadFull(r, stored[:]); err != nil {
		return nil, fmt.Errorf("reading record hash: %w", err)
	}

	computed := blake2b.Sum256(append(header, body...))
	if computed != stored {
		return nil, fmt.Errorf("record hash mismatch: file is corrupt or truncated")
	}

	var rec Record
	if err := cbor.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decoding record body: %w", err)
	}
	return &rec, nil
}

// WriteFile writes rec to path atomically via a temp file + rename.
func WriteFile(path string, rec *Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := Write(f, rec); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile reads a record from path.
func ReadFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
