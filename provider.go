package hvp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
)

// FileSystem abstracts the minimal filesystem operations Open needs, so
// callers (and tests) can substitute an in-memory implementation instead of
// touching disk.
type FileSystem interface {
	Open(path string) (fs.File, error)
}

type osFS struct{}

func (osFS) Open(p string) (fs.File, error) { return os.Open(p) }

// DefaultFS is the FileSystem used when Open is called without an explicit
// one.
var DefaultFS FileSystem = osFS{}

// Provider owns the memory-mapped bytes of one archive file plus its parsed
// table of contents. Every FileEntry.Offset returned by Archive is an index
// into Provider's data, enabling zero-copy reads of payload bytes.
type Provider struct {
	variant Variant
	endian  binary.ByteOrder
	data    []byte
	mapping *mmapping // non-nil when data is memory-mapped and must be unmapped on Close
	file    *os.File

	rawA *rawAArchive
	rawB *rawBArchive
	rawC *rawCArchive

	// entriesOffset is the byte position immediately after the TOC, where
	// payload data begins.
	entriesOffset int64
}

// Open classifies, parses, and memory-maps path using fsys (DefaultFS if
// nil). hint forces the variant instead of sniffing the magic; pass
// VariantUnknown to autodetect.
func Open(fsys FileSystem, path string, hint Variant) (*Provider, error) {
	if fsys == nil {
		fsys = DefaultFS
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hvp: open %s: %w", path, err)
	}
	osf, ok := f.(*os.File)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("hvp: %s does not support memory mapping", path)
	}

	data, mapping, err := mmapFile(osf)
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("hvp: mmap %s: %w", path, err)
	}

	p, err := newProvider(data, hint)
	if err != nil {
		mapping.unmap()
		osf.Close()
		return nil, err
	}
	p.mapping = mapping
	p.file = osf
	return p, nil
}

// OpenBytes parses an already-loaded in-memory archive image, e.g. for
// tests or for archives assembled in memory by Rebuild. The returned
// Provider does not own an OS file descriptor; Close is a no-op.
func OpenBytes(data []byte, hint Variant) (*Provider, error) {
	return newProvider(data, hint)
}

func newProvider(data []byte, hint Variant) (*Provider, error) {
	variant := hint
	if variant == VariantUnknown {
		if len(data) < 8 {
			return nil, fmt.Errorf("%w: file too small", ErrUnknownArchive)
		}
		variant = DetectVariant(data[:8])
	}
	if variant == VariantUnknown {
		return nil, ErrUnknownArchive
	}

	p := &Provider{variant: variant, data: data}
	r := bytes.NewReader(data)

	switch variant {
	case VariantA:
		endian := detectVariantAEndian(data)
		a, err := parseVariantA(r, endian)
		if err != nil {
			return nil, err
		}
		p.rawA = a
		p.endian = endian

	case VariantB:
		if len(data) < 8 {
			return nil, fmt.Errorf("%w: file too small", ErrLoadFailed)
		}
		endian := detectEndian(data[:8])
		var magic [4]byte
		copy(magic[:], data[:4])
		if _, err := r.Seek(4, 0); err != nil {
			return nil, err
		}
		b, err := parseVariantB(r, endian, magic)
		if err != nil {
			return nil, err
		}
		p.rawB = b
		p.endian = endian

	case VariantC:
		if len(data) < 8 {
			return nil, fmt.Errorf("%w: file too small", ErrLoadFailed)
		}
		endian := detectEndian(data[:8])
		var magic [4]byte
		copy(magic[:], data[:4])
		if _, err := r.Seek(4, 0); err != nil {
			return nil, err
		}
		c, err := parseVariantC(r, endian, magic)
		if err != nil {
			return nil, err
		}
		p.rawC = c
		p.endian = endian
	}

	p.entriesOffset = int64(len(data)) - int64(r.Len())

	if err := p.validateOffsets(); err != nil {
		return nil, err
	}
	return p, nil
}

// detectVariantAEndian returns Variant A's endianness. Unlike B/C, Variant A
// carries no endian marker in its magic. This always returns
// little-endian, matching every known PC release; data is not inspected,
// and there is no hint for selecting big-endian, so big-endian console
// builds are not read correctly.
func detectVariantAEndian(data []byte) binary.ByteOrder {
	return binary.LittleEndian
}

// RawArchive returns the variant-specific parsed TOC as an any, for
// diagnostic tools that need to inspect fields the unified Archive model
// intentionally drops (synthetic root entries, raw checksums, and the
// like).
func (p *Provider) RawArchive() any {
	switch p.variant {
	case VariantA:
		return p.rawA
	case VariantB:
		return p.rawB
	case VariantC:
		return p.rawC
	default:
		return nil
	}
}

// Variant reports which on-disk container shape this Provider parsed.
func (p *Provider) Variant() Variant { return p.variant }

// Endian reports the byte order this archive's multi-byte fields use.
func (p *Provider) Endian() binary.ByteOrder { return p.endian }

// GetBytes returns the raw bytes of a payload region starting at offset
// with the given size. It borrows directly from the memory-mapped (or
// in-memory) archive image; the returned slice is valid only as long as
// the Provider is open.
func (p *Provider) GetBytes(offset, size uint32) ([]byte, error) {
	start := int64(offset)
	end := start + int64(size)
	if start < 0 || end < start || end > int64(len(p.data)) {
		return nil, ErrOffsetOutOfRange
	}
	return p.data[start:end], nil
}

// Len returns the total size of the archive image in bytes.
func (p *Provider) Len() int64 { return int64(len(p.data)) }

// EntriesOffset returns the byte position where payload data begins, i.e.
// immediately after the parsed table of contents.
func (p *Provider) EntriesOffset() int64 { return p.entriesOffset }

// Close releases the memory mapping (and underlying file descriptor) if
// Open mapped one. It is a no-op for Providers built with OpenBytes.
func (p *Provider) Close() error {
	var err error
	if p.mapping != nil {
		err = p.mapping.unmap()
		p.mapping = nil
	}
	if p.file != nil {
		if cerr := p.file.Close(); err == nil {
			err = cerr
		}
		p.file = nil
	}
	return err
}

// validateOffsets checks every file entry's payload range falls inside the
// archive image, per the shared Provider validation step.
func (p *Provider) validateOffsets() error {
	total := int64(len(p.data))
	check := func(offset, size uint32) error {
		if size == 0 {
			return nil
		}
		end := int64(offset) + int64(size)
		if end > total {
			return ErrOffsetOutOfRange
		}
		return nil
	}

	switch p.variant {
	case VariantA:
		var walk func([]*rawAEntry) error
		walk = func(entries []*rawAEntry) error {
			for _, e := range entries {
				if e.Kind == rawAKindFile {
					if e.File.UncompressedSize > 0 {
						if err := check(e.File.Offset, e.File.CompressedSize); err != nil {
							return err
						}
					}
				} else if err := walk(e.Dir.Entries); err != nil {
					return err
				}
			}
			return nil
		}
		return walk(p.rawA.Entries)

	case VariantB:
		for _, e := range p.rawB.Entries {
			if e.File != nil && e.File.UncompressedSize > 0 {
				if err := check(e.File.Offset, e.File.CompressedSize); err != nil {
					return err
				}
			}
		}
		return nil

	case VariantC:
		for _, e := range p.rawC.Entries {
			if e.File != nil && e.File.UncompressedSize > 0 {
				if err := check(e.File.Offset, e.File.CompressedSize); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return nil
}
