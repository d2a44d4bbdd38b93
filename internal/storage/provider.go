// Package storage reads and writes the markdown files of a vault
// directory used for note import and export.
package storage

import "time"

// File describes one markdown file of a vault.
type File struct {
	// Path is relative to the vault root and always uses forward slashes.
	Path     string
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns every .md file under dir (relative to vault root).
	List(dir string) ([]File, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}
