package hvp

import "fmt"

// mapVariantB converts Variant B's flat entry table into the unified Entry
// tree, resolving file/dir names through nameMap and dropping the
// synthetic root directory entry.
func mapVariantB(p *Provider, nameMap *NameMap) ([]*Entry, error) {
	entries := p.rawB.Entries
	root := entries[0]
	if root.Dir == nil {
		return nil, fmt.Errorf("%w: root entry is not a directory", ErrLoadFailed)
	}
	lo, hi := root.Dir.entriesRange()
	return mapRawBRange(entries, lo, hi, nameMap)
}

func mapRawBRange(entries []*rawBEntry, lo, hi uint32, nameMap *NameMap) ([]*Entry, error) {
	out := make([]*Entry, 0, hi-lo)
	for i := lo; i < hi; i++ {
		if int(i) >= len(entries) {
			return nil, fmt.Errorf("%w: entry index %d out of range", ErrLoadFailed, i)
		}
		re := entries[i]
		switch re.Kind {
		case rawBKindFile, rawBKindFileCompressed:
			name, ok := nameMap.Lookup(re.NameCRC32)
			if !ok {
				name = fallbackName(re.NameCRC32, false)
				debugf("no name dictionary entry for file crc=%08x, using %s", re.NameCRC32, name)
			}
			out = append(out, &Entry{
				Kind: KindFile,
				File: &FileEntry{
					Name:             name,
					Compressed:       re.Kind == rawBKindFileCompressed,
					CompressedSize:   re.File.CompressedSize,
					UncompressedSize: re.File.UncompressedSize,
					Checksum:         re.File.Checksum,
					Offset:           re.File.Offset,
				},
			})
		case rawBKindDir:
			name, ok := nameMap.Lookup(re.NameCRC32)
			if !ok {
				name = fallbackName(re.NameCRC32, true)
				debugf("no name dictionary entry for dir crc=%08x, using %s", re.NameCRC32, name)
			}
			childLo, childHi := re.Dir.entriesRange()
			children, err := mapRawBRange(entries, childLo, childHi, nameMap)
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
