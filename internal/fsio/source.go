package fsio

import (
	"fmt"
	"os"
	"path/filepath"
)

// Source is the sender's view of the file being transferred: metadata
// plus random-access chunk reads.
type Source struct {
	file *os.File
	info os.FileInfo
}

// OpenSource opens path for reading and stats it. The caller must Close
// the returned Source when done.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting source file: %w", err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("opening source file: %s is a directory", path)
	}
	return &Source{file: f, info: fi}, nil
}

// Name returns the base filename (not the full path) — this is what goes
// on the wire inside FileInfo.filename.
func (s *Source) Name() string {
	return filepath.Base(s.info.Name())
}

// Size returns the file size in bytes.
func (s *Source) Size() uint64 {
	return uint64(s.info.Size())
}

// Mode returns the portable permission bits, matching FileInfo.file_mode.
func (s *Source) Mode() uint32 {
	return uint32(s.info.Mode().Perm())
}

// ModTime returns the file's modification time as a Unix timestamp.
func (s *Source) ModTime() uint64 {
	return uint64(s.info.ModTime().Unix())
}

// ReadChunk reads up to len(buf) bytes starting at offset, returning the
// number of bytes actually read. The final chunk of a file is expected to
// be short; that is not an error here.
func (s *Source) ReadChunk(offset uint64, buf []byte) (int, error) {
	n, err := s.file.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return 0, fmt.Errorf("reading chunk at offset %d: %w", offset, err)
	}
	return n, nil
}

// Close releases the underlying file handle.
func (s *Source) Close() error {
	return s.file.Close()
}
