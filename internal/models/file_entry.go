package models

import "time"

// FileType distinguishes files from directories in a listing.
type FileType string

const (
	// FileTypeFile is a regular file entry.
	FileTypeFile FileType = "file"
	// FileTypeDir is a directory entry.
	FileTypeDir FileType = "dir"
)

// FileEntry is one entry of a recursive listing of a backup source, either
// the transfer endpoint or the local store.
type FileEntry struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Type       FileType  `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}
