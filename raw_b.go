package hvp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/obscure-tools/hvparchive/internal/checksum"
	"github.com/obscure-tools/hvparchive/internal/codec"
)

type rawBHeader struct {
	Magic        [4]byte
	Zero         uint32
	EntriesCount uint32
	EntriesCRC32 uint32
}

type rawBEntryKind uint16

const (
	rawBKindFile           rawBEntryKind = 0
	rawBKindFileCompressed rawBEntryKind = 1
	rawBKindDir            rawBEntryKind = 4
)

type rawBFileEntry struct {
	Checksum         int32
	UncompressedSize uint32
	Offset           uint32
	CompressedSize   uint32
}

type rawBDirEntry struct {
	Count uint32
	Index uint32
}

// rawBEntry is a flat record in Variant B's single entries table; children
// are addressed by index range, not nested inline like Variant A.
type rawBEntry struct {
	NameCRC32 uint32
	Kind      rawBEntryKind
	File      *rawBFileEntry
	Dir       *rawBDirEntry
}

type rawBArchive struct {
	Header  rawBHeader
	Entries []*rawBEntry
	Endian  binary.ByteOrder
}

func parseVariantB(r io.Reader, endian binary.ByteOrder, magic [4]byte) (*rawBArchive, error) {
	hdr := rawBHeader{Magic: magic}
	var err error
	if hdr.Zero, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: header zero: %v", ErrLoadFailed, err)
	}
	if hdr.Zero != 0 {
		return nil, fmt.Errorf("%w: header zero field is non-zero", ErrLoadFailed)
	}
	if hdr.EntriesCount, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: entries_count: %v", ErrLoadFailed, err)
	}
	if hdr.EntriesCount == 0 {
		return nil, fmt.Errorf("%w: invalid archive, not a hvp file (entries_count == 0)", ErrLoadFailed)
	}
	if hdr.EntriesCRC32, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: entries_crc32: %v", ErrLoadFailed, err)
	}

	entries := make([]*rawBEntry, 0, hdr.EntriesCount)
	for i := uint32(0); i < hdr.EntriesCount; i++ {
		e, err := readRawBEntry(r, endian)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if crc := checksum.CRC32(marshalRawBEntries(entries, endian)); crc != hdr.EntriesCRC32 {
		return nil, fmt.Errorf("%w: entries_crc32 mismatch: have %08x want %08x", ErrLoadFailed, crc, hdr.EntriesCRC32)
	}

	a := &rawBArchive{Header: hdr, Entries: entries, Endian: endian}
	if err := a.validateRootEntry(); err != nil {
		return nil, err
	}
	return a, nil
}

func readRawBEntry(r io.Reader, endian binary.ByteOrder) (*rawBEntry, error) {
	nameCRC32, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: name_crc32: %v", ErrLoadFailed, err)
	}
	kindU16, err := codec.ReadU16(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: entry kind: %v", ErrLoadFailed, err)
	}
	e := &rawBEntry{NameCRC32: nameCRC32, Kind: rawBEntryKind(kindU16)}

	switch e.Kind {
	case rawBKindFile, rawBKindFileCompressed:
		fe := &rawBFileEntry{}
		zero, err := codec.ReadU16(r, endian)
		if err != nil {
			return nil, fmt.Errorf("%w: file zero: %v", ErrLoadFailed, err)
		}
		if zero != 0 {
			return nil, fmt.Errorf("%w: file entry zero field is non-zero", ErrLoadFailed)
		}
		if fe.Checksum, err = codec.ReadI32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: checksum: %v", ErrLoadFailed, err)
		}
		if fe.UncompressedSize, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: uncompressed_size: %v", ErrLoadFailed, err)
		}
		if fe.Offset, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: offset: %v", ErrLoadFailed, err)
		}
		if fe.CompressedSize, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: compressed_size: %v", ErrLoadFailed, err)
		}
		e.File = fe
	case rawBKindDir:
		de := &rawBDirEntry{}
		zero1, err := codec.ReadU16(r, endian)
		if err != nil {
			return nil, fmt.Errorf("%w: dir zero1: %v", ErrLoadFailed, err)
		}
		if zero1 != 0 {
			return nil, fmt.Errorf("%w: dir entry zero1 field is non-zero", ErrLoadFailed)
		}
		zero2, err := codec.ReadU32(r, endian)
		if err != nil {
			return nil, fmt.Errorf("%w: dir zero2: %v", ErrLoadFailed, err)
		}
		if zero2 != 0 {
			return nil, fmt.Errorf("%w: dir entry zero2 field is non-zero", ErrLoadFailed)
		}
		zero3, err := codec.ReadU32(r, endian)
		if err != nil {
			return nil, fmt.Errorf("%w: dir zero3: %v", ErrLoadFailed, err)
		}
		if zero3 != 0 {
			return nil, fmt.Errorf("%w: dir entry zero3 field is non-zero", ErrLoadFailed)
		}
		if de.Count, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: dir count: %v", ErrLoadFailed, err)
		}
		if de.Count == 0 {
			return nil, fmt.Errorf("%w: invalid archive, not a hvp file (dir count == 0)", ErrLoadFailed)
		}
		if de.Index, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: dir index: %v", ErrLoadFailed, err)
		}
		e.Dir = de
	default:
		return nil, fmt.Errorf("%w: unknown entry kind %d", ErrLoadFailed, kindU16)
	}
	return e, nil
}

// validateRootEntry checks that entries[0] is the synthetic root directory
// that every Variant B archive is required to carry.
func (a *rawBArchive) validateRootEntry() error {
	if len(a.Entries) == 0 {
		return fmt.Errorf("%w: archive has no entries", ErrLoadFailed)
	}
	root := a.Entries[0]
	if root.Kind != rawBKindDir || root.NameCRC32 != 0 || root.Dir == nil || root.Dir.Index != 1 {
		return fmt.Errorf("%w: archive is missing the synthetic root directory entry", ErrLoadFailed)
	}
	return nil
}

// entriesRange returns the half-open index range [index, index+count) of a
// directory's children within the flat entries table.
func (de *rawBDirEntry) entriesRange() (lo, hi uint32) {
	return de.Index, de.Index + de.Count
}

func writeVariantB(w io.Writer, a *rawBArchive) error {
	endian := a.Endian
	if _, err := w.Write(a.Header.Magic[:]); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, 0); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, uint32(len(a.Entries))); err != nil {
		return err
	}

	crc := checksum.CRC32(marshalRawBEntries(a.Entries, endian))
	if err := codec.WriteU32(w, endian, crc); err != nil {
		return err
	}
	_, err := w.Write(marshalRawBEntries(a.Entries, endian))
	return err
}

func marshalRawBEntries(entries []*rawBEntry, endian binary.ByteOrder) []byte {
	var buf writeBuf
	for _, e := range entries {
		writeRawBEntry(&buf, e, endian)
	}
	return buf.Bytes()
}

// writeBuf is a minimal growable byte buffer, used where a Write that can
// never fail lets the per-field write calls skip error propagation.
type writeBuf struct{ b []byte }

func (w *writeBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
func (w *writeBuf) Bytes() []byte { return w.b }

func writeRawBEntry(w io.Writer, e *rawBEntry, endian binary.ByteOrder) {
	_ = codec.WriteU32(w, endian, e.NameCRC32)
	_ = codec.WriteU16(w, endian, uint16(e.Kind))
	switch e.Kind {
	case rawBKindFile, rawBKindFileCompressed:
		fe := e.File
		_ = codec.WriteU16(w, endian, 0)
		_ = codec.WriteI32(w, endian, fe.Checksum)
		_ = codec.WriteU32(w, endian, fe.UncompressedSize)
		_ = codec.WriteU32(w, endian, fe.Offset)
		_ = codec.WriteU32(w, endian, fe.CompressedSize)
	case rawBKindDir:
		de := e.Dir
		_ = codec.WriteU16(w, endian, 0)
		_ = codec.WriteU32(w, endian, 0)
		_ = codec.WriteU32(w, endian, 0)
		_ = codec.WriteU32(w, endian, de.Count)
		_ = codec.WriteU32(w, endian, de.Index)
	}
}

func (a *rawBArchive) clone() *rawBArchive {
	out := &rawBArchive{Header: a.Header, Endian: a.Endian}
	out.Entries = make([]*rawBEntry, len(a.Entries))
	for i, e := range a.Entries {
		ne := &rawBEntry{NameCRC32: e.NameCRC32, Kind: e.Kind}
		if e.File != nil {
			f := *e.File
			ne.File = &f
		}
		if e.Dir != nil {
			d := *e.Dir
			ne.Dir = &d
		}
		out.Entries[i] = ne
	}
	return out
}
