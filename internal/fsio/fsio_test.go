package fsio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFilenameRejectsTraversal(t *testing.T) {
	cases := []string{"../etc/passwd", "a/../../b", ".."}
	for _, c := range cases {
		if _, err := SanitizeFilename(c); err == nil {
			t.Errorf("SanitizeFilename(%q) should reject path traversal", c)
		}
	}
}

func TestSanitizeFilenameRejectsAbsolutePaths(t *testing.T) {
	cases := []string{"/etc/passwd", `\windows\system32`, "C:\\secrets.txt"}
	for _, c := range cases {
		if _, err := SanitizeFilename(c); err == nil {
			t.Errorf("SanitizeFilename(%q) should reject absolute paths", c)
		}
	}
}

func TestSanitizeFilenameReplacesSeparators(t *testing.T) {
	got, err := SanitizeFilename("sub/dir/report.pdf")
	if err != nil {
		t.Fatalf("SanitizeFilename: %v", err)
	}
	if got != "sub_dir_report.pdf" {
		t.Fatalf("got %q, want sub_dir_report.pdf", got)
	}
}

func TestSanitizeFilenameDropsDisallowedChars(t *testing.T) {
	got, err := SanitizeFilename("weird name!@#.txt")
	if err != nil {
		t.Fatalf("SanitizeFilename: %v", err)
	}
	if got != "weirdname.txt" {
		t.Fatalf("got %q, want weirdname.txt", got)
	}
}

func TestSanitizeFilenameRejectsEmptyResult(t *testing.T) {
	if _, err := SanitizeFilename("!!!"); err == nil {
		t.Fatal("expected an all-disallowed-character filename to be rejected")
	}
}

func TestSourceReadChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")
	content := bytes.Repeat([]byte{0x42}, 1000)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	if src.Size() != 1000 {
		t.Fatalf("Size() = %d, want 1000", src.Size())
	}

	buf := make([]byte, 400)
	n, err := src.ReadChunk(0, buf)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if n != 400 || !bytes.Equal(buf, content[:400]) {
		t.Fatalf("first chunk mismatch")
	}

	lastBuf := make([]byte, 400)
	n, err = src.ReadChunk(800, lastBuf)
	if err != nil {
		t.Fatalf("ReadChunk (tail): %v", err)
	}
	if n != 200 {
		t.Fatalf("tail chunk length = %d, want 200", n)
	}
}

func TestSinkCommitAtomicRename(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, "output.bin")
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	data := []byte("chunk-one-")
	if err := sink.WriteChunk(0, data); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := sink.WriteChunk(uint64(len(data)), []byte("chunk-two!")); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	finalPath, err := sink.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if finalPath != filepath.Join(dir, "output.bin") {
		t.Fatalf("final path = %q", finalPath)
	}

	got, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "chunk-one-chunk-two!" {
		t.Fatalf("committed content = %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file to remain, found %d entries", len(entries))
	}
}

func TestSinkAbortRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, "partial.bin")
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	tempPath := sink.tempPath
	if err := sink.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Fatalf("temp file should be removed after Abort, stat err = %v", err)
	}
}

func TestHasSpaceFor(t *testing.T) {
	dir := t.TempDir()
	ok, err := HasSpaceFor(dir, 1)
	if err != nil {
		t.Fatalf("HasSpaceFor: %v", err)
	}
	if !ok {
		t.Fatal("expected at least 1 byte free on the test filesystem")
	}
}
