package hvp

import "fmt"

// mapVariantC converts Variant C's flat entry table into the unified Entry
// tree, resolving names through the embedded names blob and dropping the
// synthetic root directory entry.
func mapVariantC(p *Provider) ([]*Entry, error) {
	entries := p.rawC.Entries
	root := entries[0]
	if root.Dir == nil {
		return nil, fmt.Errorf("%w: root entry is not a directory", ErrLoadFailed)
	}
	lo, hi := root.Dir.entriesRange()
	return mapRawCRange(p.rawC, lo, hi)
}

func mapRawCRange(raw *rawCArchive, lo, hi uint32) ([]*Entry, error) {
	entries := raw.Entries
	out := make([]*Entry, 0, hi-lo)
	for i := lo; i < hi; i++ {
		if int(i) >= len(entries) {
			return nil, fmt.Errorf("%w: entry index %d out of range", ErrLoadFailed, i)
		}
		re := entries[i]
		switch re.Kind {
		case rawCKindFile, rawCKindFileCompressed:
			name, err := raw.Names.nameAt(re.File.NameOffset)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
			}
			out = append(out, &Entry{
				Kind: KindFile,
				File: &FileEntry{
					Name:             name,
					Compressed:       re.Kind == rawCKindFileCompressed,
					CompressedSize:   re.File.CompressedSize,
					UncompressedSize: re.File.UncompressedSize,
					Checksum:         re.File.Checksum,
					Offset:           re.File.Offset,
				},
			})
		case rawCKindDir:
			name, err := raw.Names.nameAt(re.Dir.NameOffset)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
			}
			childLo, childHi := re.Dir.entriesRange()
			children, err := mapRawCRange(raw, childLo, childHi)
			if err != nil {
				return nil, err
			}
			out = append(out, &Entry{
				Kind: KindDir,
				Dir:  &DirEntry{Name: name, Children: children},
			})
		default:
			return nil, fmt.Errorf("%w: unexpected entry kind at index %d", ErrLoadFailed, i)
		}
	}
	return out, nil
}
