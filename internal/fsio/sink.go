package fsio

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink is the receiver's atomic-write collaborator: every chunk is
// written to a temp file inside outputDir, and the temp file is renamed
// to its final name only once every chunk has been received and
// acknowledged. Any failure along the way removes the temp file.
type Sink struct {
	file      *os.File
	tempPath  string
	finalPath string
}

// NewSink creates a temp file inside outputDir for the (already
// sanitized) filename. The temp name is fixed and dot-prefixed
// ("."+name+".tmp") rather than randomized: this revision only ever runs
// one transfer at a time, so there's no concurrent transfer to collide
// with and the name stays predictable for anyone inspecting outputDir
// mid-transfer.
func NewSink(outputDir, sanitizedFilename string) (*Sink, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	tempPath := filepath.Join(outputDir, "."+sanitizedFilename+".tmp")
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &Sink{
		file:      f,
		tempPath:  tempPath,
		finalPath: filepath.Join(outputDir, sanitizedFilename),
	}, nil
}

// WriteChunk writes data at offset in the temp file via pwrite-at-offset
// semantics.
func (s *Sink) WriteChunk(offset uint64, data []byte) error {
	if _, err := s.file.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("writing chunk at offset %d: %w", offset, err)
	}
	return nil
}

// Commit syncs and renames the temp file to its final name. Rename is
// atomic on the same filesystem, which outputDir and the temp file always
// share since both are created under outputDir.
func (s *Sink) Commit() (string, error) {
	if err := s.file.Sync(); err != nil {
		s.Abort()
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		os.Remove(s.tempPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(s.tempPath, s.finalPath); err != nil {
		os.Remove(s.tempPath)
		return "", fmt.Errorf("renaming temp file to %s: %w", s.finalPath, err)
	}
	return s.finalPath, nil
}

// Abort closes and deletes the temp file. Safe to call after a failed
// Commit or directly on any transfer failure.
func (s *Sink) Abort() error {
	s.file.Close()
	return os.Remove(s.tempPath)
}

// FinalPath returns the path the file will have once Commit succeeds.
func (s *Sink) FinalPath() string {
	return s.finalPath
}
