// Package fsio is the filesystem collaborator behind both roles: it
// exposes the source file to the sender and materializes the received
// file atomically on the receiver side.
package fsio

import (
	"errors"
	"strings"
)

// ErrInvalidFilename is returned by SanitizeFilename when the input can't
// be turned into a safe path component at all (empty after stripping, or
// a rejected traversal/absolute-path attempt).
var ErrInvalidFilename = errors.New("fsio: invalid filename")

// SanitizeFilename rejects path traversal and absolute-path attempts and
// otherwise narrows name to a safe character set: letters, digits, '-',
// '_', '.'; path separators are replaced with '_' rather than dropped,
// everything else is dropped.
func SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidFilename
	}
	if strings.Contains(name, "..") {
		return "", ErrInvalidFilename
	}
	if name[0] == '/' || name[0] == '\\' {
		return "", ErrInvalidFilename
	}
	if len(name) >= 2 && name[1] == ':' && name[0] >= 'A' && name[0] <= 'Z' {
		return "", ErrInvalidFilename
	}

	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			b.WriteRune(c)
		case c == '/' || c == '\\':
			b.WriteByte('_')
		}
	}
	sanitized := b.String()
	if sanitized == "" {
		return "", ErrInvalidFilename
	}
	return sanitized, nil
}
