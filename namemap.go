package hvp

import (
	"fmt"
	"strings"

	"github.com/obscure-tools/hvparchive/internal/checksum"
)

// NameMap resolves Variant B's per-entry name_crc32 values against a
// dictionary of known names loaded separately from the archive itself
// (Variant B stores no names at all; the archive author is expected to
// supply the dictionary out of band, e.g. shipped alongside the game).
type NameMap struct {
	byCRC map[uint32]string
}

// NewNameMap builds a NameMap from a list of candidate names, indexing each
// by the CRC32 of its preprocessed byte form.
func NewNameMap(names []string) (*NameMap, error) {
	m := &NameMap{byCRC: make(map[uint32]string, len(names))}
	for _, n := range names {
		crc, err := NameCRC32(n)
		if err != nil {
			return nil, fmt.Errorf("hvp: name %q: %w", n, err)
		}
		m.byCRC[crc] = n
	}
	return m, nil
}

// Lookup returns the name registered for crc, if any.
func (m *NameMap) Lookup(crc uint32) (string, bool) {
	if m == nil {
		return "", false
	}
	name, ok := m.byCRC[crc]
	return name, ok
}

// NameCRC32 computes the dictionary key for name: the name is first
// preprocessed (the single accented character 'é' is folded to its
// Windows-1250 byte value 0xE9; every other character must be plain ASCII)
// and the resulting byte string is CRC32-hashed.
func NameCRC32(name string) (uint32, error) {
	buf := make([]byte, 0, len(name))
	for _, r := range name {
		switch {
		case r == 'é':
			buf = append(buf, 0xE9)
		case r < 0x80:
			buf = append(buf, byte(r))
		default:
			return 0, fmt.Errorf("name contains non-ASCII character %q not representable in the dictionary encoding", r)
		}
	}
	return checksum.CRC32(buf), nil
}

// fallbackName synthesizes a placeholder for an entry whose name_crc32 has
// no dictionary match, so the unified tree still has a usable path
// component. isDir selects between the file and directory placeholder
// forms.
func fallbackName(crc uint32, isDir bool) string {
	var sb strings.Builder
	if isDir {
		fmt.Fprintf(&sb, "unk_folder_%d", crc)
	} else {
		fmt.Fprintf(&sb, "unk_file_%d.dat", crc)
	}
	return sb.String()
}
