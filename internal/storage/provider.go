// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for vault file operations. Paths are always
// relative to the provider's root; the same abstraction backs the notes
// vault and the transcript inbox.
type Provider interface {
	// List returns metadata for every file under dir carrying the given
	// extension (e.g. ".md", ".json").
	List(dir, ext string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
