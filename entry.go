package hvp

import "os"

// EntryKind distinguishes files from directories in the unified tree that
// Archive exposes, independent of which on-disk variant produced it.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

// FileEntry describes one payload file: its name, its position and size
// within the archive's data region, its declared checksum, and whether the
// payload bytes are compressed on disk (zlib for Variant A, LZO1X for
// Variants B and C).
type FileEntry struct {
	Name             string
	Compressed       bool
	CompressedSize   uint32
	UncompressedSize uint32
	Checksum         int32
	Offset           uint32

	update *Update
}

// SetUpdate queues data as this file's replacement payload for the next
// Rebuild.
func (f *FileEntry) SetUpdate(data []byte) {
	f.update = &Update{Data: data}
}

// SetUpdatePath queues the contents of a filesystem path as this file's
// replacement payload. The path is read lazily, in Rebuild, rather than
// immediately.
func (f *FileEntry) SetUpdatePath(path string) {
	f.update = &Update{Path: path}
}

// ClearUpdate discards any pending update queued via SetUpdate.
func (f *FileEntry) ClearUpdate() { f.update = nil }

// HasUpdate reports whether a replacement payload is queued.
func (f *FileEntry) HasUpdate() bool { return f.update != nil }

// DirEntry describes one directory node and its children, in on-disk
// order. Children are a mix of FileEntry and DirEntry nodes via Entry.
type DirEntry struct {
	Name     string
	Children []*Entry
}

// Entry is one node of the unified archive tree, regardless of which
// variant produced it.
type Entry struct {
	Kind EntryKind
	File *FileEntry
	Dir  *DirEntry
}

// IsDir reports whether e is a directory node.
func (e *Entry) IsDir() bool { return e.Kind == KindDir }

// Update is a file's queued replacement payload, attached via
// FileEntry.SetUpdate/SetUpdatePath and consumed by Rebuild. Exactly one of
// Data or Path is set.
type Update struct {
	Data []byte
	Path string
}

// Bytes materializes the replacement payload, reading Path from disk if
// Data wasn't supplied directly.
func (u *Update) Bytes() ([]byte, error) {
	if u.Data != nil {
		return u.Data, nil
	}
	return os.ReadFile(u.Path)
}

// FullFileEntry bundles a FileEntry with the full slash-separated path to
// it from the archive root, as produced by iteration.
type FullFileEntry struct {
	Path  string
	Entry *FileEntry
}
