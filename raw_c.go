package hvp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/obscure-tools/hvparchive/internal/checksum"
	"github.com/obscure-tools/hvparchive/internal/codec"
)

type rawCHeader struct {
	Magic        [4]byte
	Zero         uint32
	EntriesCount uint32
	EntriesCRC32 uint32
}

type rawCEntryKind uint32

const (
	rawCKindFile           rawCEntryKind = 0
	rawCKindFileCompressed rawCEntryKind = 1
	rawCKindDir            rawCEntryKind = 4
)

// rawCFileEntry has no zero-padding field, unlike Variant B's file record,
// and stores a name_offset into the archive's embedded names blob rather
// than a CRC32 dictionary lookup.
type rawCFileEntry struct {
	Checksum         int32
	UncompressedSize uint32
	NameOffset       uint32
	Offset           uint32
	CompressedSize   uint32
}

type rawCDirEntry struct {
	NameOffset uint32
	Count      uint32
	Index      uint32
}

type rawCEntry struct {
	NameCRC32 uint32
	Kind      rawCEntryKind
	File      *rawCFileEntry
	Dir       *rawCDirEntry
}

// rawCNames is the NUL-terminated UTF-8 blob that sits between the header
// and the entries table in Variant C archives.
type rawCNames struct {
	Bytes []byte
}

func (n *rawCNames) nameAt(offset uint32) (string, error) {
	return codec.NameFromNulBuf(n.Bytes, offset)
}

type rawCArchive struct {
	Header  rawCHeader
	Entries []*rawCEntry
	Names   rawCNames
	Endian  binary.ByteOrder
}

func parseVariantC(r io.Reader, endian binary.ByteOrder, magic [4]byte) (*rawCArchive, error) {
	hdr := rawCHeader{Magic: magic}
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

	namesLen, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: names bytes_len: %v", ErrLoadFailed, err)
	}
	namesBlob := make([]byte, namesLen)
	if _, err := io.ReadFull(r, namesBlob); err != nil {
		return nil, fmt.Errorf("%w: names blob: %v", ErrLoadFailed, err)
	}

	entries := make([]*rawCEntry, 0, hdr.EntriesCount)
	for i := uint32(0); i < hdr.EntriesCount; i++ {
		e, err := readRawCEntry(r, endian)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if crc := checksum.CRC32(marshalRawCEntries(entries, endian)); crc != hdr.EntriesCRC32 {
		return nil, fmt.Errorf("%w: entries_crc32 mismatch: have %08x want %08x", ErrLoadFailed, crc, hdr.EntriesCRC32)
	}

	a := &rawCArchive{Header: hdr, Entries: entries, Names: rawCNames{Bytes: namesBlob}, Endian: endian}
	if err := a.validateRootEntry(); err != nil {
		return nil, err
	}
	if err := a.validateNameOffsets(); err != nil {
		return nil, err
	}
	return a, nil
}

func readRawCEntry(r io.Reader, endian binary.ByteOrder) (*rawCEntry, error) {
	nameCRC32, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: name_crc32: %v", ErrLoadFailed, err)
	}
	kindU32, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: entry kind: %v", ErrLoadFailed, err)
	}
	e := &rawCEntry{NameCRC32: nameCRC32, Kind: rawCEntryKind(kindU32)}

	switch e.Kind {
	case rawCKindFile, rawCKindFileCompressed:
		fe := &rawCFileEntry{}
		if fe.Checksum, err = codec.ReadI32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: checksum: %v", ErrLoadFailed, err)
		}
		if fe.UncompressedSize, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: uncompressed_size: %v", ErrLoadFailed, err)
		}
		if fe.NameOffset, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: name_offset: %v", ErrLoadFailed, err)
		}
		if fe.Offset, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: offset: %v", ErrLoadFailed, err)
		}
		if fe.CompressedSize, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: compressed_size: %v", ErrLoadFailed, err)
		}
		e.File = fe
	case rawCKindDir:
		de := &rawCDirEntry{}
		zero1, err := codec.ReadU32(r, endian)
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
		if de.NameOffset, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: dir name_offset: %v", ErrLoadFailed, err)
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
		return nil, fmt.Errorf("%w: unknown entry kind %d", ErrLoadFailed, kindU32)
	}
	return e, nil
}

func (a *rawCArchive) validateRootEntry() error {
	if len(a.Entries) == 0 {
		return fmt.Errorf("%w: archive has no entries", ErrLoadFailed)
	}
	root := a.Entries[0]
	if root.Kind != rawCKindDir || root.NameCRC32 != 0 || root.Dir == nil || root.Dir.Index != 1 {
		return fmt.Errorf("%w: archive is missing the synthetic root directory entry", ErrLoadFailed)
	}
	return nil
}

func (a *rawCArchive) validateNameOffsets() error {
	for i, e := range a.Entries {
		var off uint32
		switch e.Kind {
		case rawCKindFile, rawCKindFileCompressed:
			off = e.File.NameOffset
		case rawCKindDir:
			if i == 0 {
				continue // synthetic root carries no real name
			}
			off = e.Dir.NameOffset
		}
		if int(off) > len(a.Names.Bytes) {
			return fmt.Errorf("%w: entry %d: name offset %d exceeds names blob length %d", ErrOffsetOutOfRange, i, off, len(a.Names.Bytes))
		}
		if _, err := a.Names.nameAt(off); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrLoadFailed, i, err)
		}
	}
	return nil
}

func (de *rawCDirEntry) entriesRange() (lo, hi uint32) {
	return de.Index, de.Index + de.Count
}

func writeVariantC(w io.Writer, a *rawCArchive) error {
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

	entryBytes := marshalRawCEntries(a.Entries, endian)
	crc := checksum.CRC32(entryBytes)
	if err := codec.WriteU32(w, endian, crc); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, uint32(len(a.Names.Bytes))); err != nil {
		return err
	}
	if _, err := w.Write(a.Names.Bytes); err != nil {
		return err
	}
	_, err := w.Write(entryBytes)
	return err
}

func marshalRawCEntries(entries []*rawCEntry, endian binary.ByteOrder) []byte {
	var buf writeBuf
	for _, e := range entries {
		writeRawCEntry(&buf, e, endian)
	}
	return buf.Bytes()
}

func writeRawCEntry(w io.Writer, e *rawCEntry, endian binary.ByteOrder) {
	_ = codec.WriteU32(w, endian, e.NameCRC32)
	_ = codec.WriteU32(w, endian, uint32(e.Kind))
	switch e.Kind {
	case rawCKindFile, rawCKindFileCompressed:
		fe := e.File
		_ = codec.WriteI32(w, endian, fe.Checksum)
		_ = codec.WriteU32(w, endian, fe.UncompressedSize)
		_ = codec.WriteU32(w, endian, fe.NameOffset)
		_ = codec.WriteU32(w, endian, fe.Offset)
		_ = codec.WriteU32(w, endian, fe.CompressedSize)
	case rawCKindDir:
		de := e.Dir
		_ = codec.WriteU32(w, endian, 0)
		_ = codec.WriteU32(w, endian, 0)
		_ = codec.WriteU32(w, endian, de.NameOffset)
		_ = codec.WriteU32(w, endian, de.Count)
		_ = codec.WriteU32(w, endian, de.Index)
	}
}

func (a *rawCArchive) clone() *rawCArchive {
	out := &rawCArchive{Header: a.Header, Endian: a.Endian}
	out.Names.Bytes = append([]byte(nil), a.Names.Bytes...)
	out.Entries = make([]*rawCEntry, len(a.Entries))
	for i, e := range a.Entries {
		ne := &rawCEntry{NameCRC32: e.NameCRC32, Kind: e.Kind}
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
