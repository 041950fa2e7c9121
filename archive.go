package hvp

import (
	"encoding/binary"
	"fmt"

	"github.com/obscure-tools/hvparchive/internal/checksum"
)

func checksumOf(data []byte, endian binary.ByteOrder) int32 {
	return checksum.WrappingSum(data, endian)
}

// Metadata summarizes the shape of a mapped archive.
type Metadata struct {
	Variant   Variant
	DirCount  int
	FileCount int
}

// Options configures how NewArchive maps a Provider's raw TOC into the
// unified tree.
type Options struct {
	// NameMap resolves Variant B's CRC32 name hashes. Ignored for other
	// variants.
	NameMap *NameMap
	// SkipCompression makes Rebuild write updated payloads as plaintext,
	// even for entries that were compressed in the source archive. Entries
	// without an update are copied unchanged.
	SkipCompression bool
}

// Archive is the unified, variant-independent view over an HVP container:
// a tree of Entry nodes, plus the Provider it was mapped from (whose raw
// TOC Rebuild clones and patches offsets back into).
type Archive struct {
	provider *Provider
	opts     Options
	root     []*Entry
	meta     Metadata
}

// NewArchive maps p's parsed TOC into the unified entry tree.
func NewArchive(p *Provider, opts Options) (*Archive, error) {
	a := &Archive{provider: p, opts: opts, meta: Metadata{Variant: p.variant}}

	var root []*Entry
	var err error
	switch p.variant {
	case VariantA:
		root, err = mapVariantA(p)
	case VariantB:
		root, err = mapVariantB(p, opts.NameMap)
	case VariantC:
		root, err = mapVariantC(p)
	default:
		return nil, fmt.Errorf("%w: unhandled variant %v", ErrLoadFailed, p.variant)
	}
	if err != nil {
		return nil, err
	}
	a.root = root
	a.meta.DirCount, a.meta.FileCount = countTree(root)
	return a, nil
}

func countTree(entries []*Entry) (dirs, files int) {
	for _, e := range entries {
		if e.IsDir() {
			dirs++
			cd, cf := countTree(e.Dir.Children)
			dirs += cd
			files += cf
		} else {
			files++
		}
	}
	return dirs, files
}

// Entries returns the top-level entries of the archive tree, read-only.
func (a *Archive) Entries() []*Entry { return a.root }

// EntriesMut returns the top-level entries of the archive tree for
// in-place mutation (e.g. queuing Updates onto FileEntry values reached
// through it).
func (a *Archive) EntriesMut() []*Entry { return a.root }

// Metadata reports the archive's variant and entry counts.
func (a *Archive) Metadata() Metadata { return a.meta }

// Provider returns the Provider this Archive was mapped from.
func (a *Archive) Provider() *Provider { return a.provider }

// EntriesChecksumMatch verifies every file entry's declared checksum
// against a fresh wrapping sum of its on-disk payload bytes.
func (a *Archive) EntriesChecksumMatch() bool {
	it := a.Files()
	for {
		full, ok := it.Next()
		if !ok {
			return true
		}
		var raw []byte
		if full.Entry.UncompressedSize > 0 {
			var err error
			raw, err = a.provider.GetBytes(full.Entry.Offset, full.Entry.CompressedSize)
			if err != nil {
				return false
			}
		}
		if checksumOf(raw, a.provider.endian) != full.Entry.Checksum {
			return false
		}
	}
}
