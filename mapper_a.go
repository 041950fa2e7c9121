package hvp

// mapVariantA converts Variant A's naturally nested raw tree into the
// unified Entry tree with no structural changes.
func mapVariantA(p *Provider) ([]*Entry, error) {
	return mapRawAEntries(p.rawA.Entries), nil
}

func mapRawAEntries(raw []*rawAEntry) []*Entry {
	out := make([]*Entry, 0, len(raw))
	for _, re := range raw {
		switch re.Kind {
		case rawAKindFile:
			out = append(out, &Entry{
				Kind: KindFile,
				File: &FileEntry{
					Name:             re.File.Name,
					Compressed:       re.File.IsCompressed,
					CompressedSize:   re.File.CompressedSize,
					UncompressedSize: re.File.UncompressedSize,
					Checksum:         re.File.Checksum,
					Offset:           re.File.Offset,
				},
			})
		case rawAKindDir:
			out = append(out, &Entry{
				Kind: KindDir,
				Dir: &DirEntry{
					Name:     re.Dir.Name,
					Children: mapRawAEntries(re.Dir.Entries),
				},
			})
		}
	}
	return out
}
