// Package database implements the append-only callsite database: a
// raw sequence of 8-byte native-endian hashes, no header, no framing.
// Records are encoded and decoded directly with binary.LittleEndian
// over a fixed-width byte slice.
package database

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/fenwick-labs/failinj/internal/fingerprint"
)

const recordSize = 8

// Store is the on-disk callsite database.
type Store struct {
	path string
	file *os.File
}

// Open opens (creating if necessary) the database file at path for
// reading and appending. A failure here is always an engine-internal
// error: the caller should treat it as fatal.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	return &Store{path: path, file: f}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.file.Close()
}

// Load reads every record from the start of the file in order,
// calling fn once per hash. Loading stops, without error, the moment
// two consecutive zero records are read after at least one non-empty
// read has already happened; a defensive bail against reading from a
// pathological (e.g. /dev/full-like) file, per the database's load
// contract. Any other read error is fatal.
func (s *Store) Load(fn func(fingerprint.Hash)) error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek database %q: %w", s.path, err)
	}

	buf := make([]byte, recordSize)
	sawAnyRecord := false
	prevWasZero := false

	for {
		_, err := io.ReadFull(s.file, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read database %q: %w", s.path, err)
		}

		h := binary.LittleEndian.Uint64(buf)
		if h == 0 {
			if sawAnyRecord && prevWasZero {
				break
			}
			prevWasZero = true
		} else {
			prevWasZero = false
		}

		fn(fingerprint.Hash(h))
		sawAnyRecord = true
	}

	// Restore the append position regardless of where Load's reads left
	// the offset; O_APPEND makes this a formality but keeps behavior
	// explicit rather than relying on the flag alone.
	_, err := s.file.Seek(0, io.SeekEnd)
	return err
}

// Append writes one 8-byte record and flushes it to disk. Both a
// write failure and a flush failure are fatal engine-internal errors.
func (s *Store) Append(h fingerprint.Hash) error {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint64(buf, uint64(h))

	if _, err := s.file.Write(buf); err != nil {
		return fmt.Errorf("append database %q: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("flush database %q: %w", s.path, err)
	}
	return nil
}
