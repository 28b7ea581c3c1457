// Package storage defines the deck vault file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for deck vault file operations. Paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every .md deck file under dir.
	List(dir string) ([]models.DeckMetadata, error)
	// Read returns the raw bytes of the deck file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the deck file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
