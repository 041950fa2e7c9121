package hvp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/obscure-tools/hvparchive/internal/checksum"
	"github.com/obscure-tools/hvparchive/internal/codec"
)

var magicAFull = []byte("HV PackFile\x00")

// rawAHeader is Variant A's fixed 20-byte header (two u16 versions and four
// u32 fields), following the 12-byte magic.
type rawAHeader struct {
	MajorVersion uint16
	MinorVersion uint16
	RootCount    uint32
	AllCount     uint32
	FileCount    uint32
	DataOffset   uint32
}

// rawACrc32 holds the optional pair of CRC32 checksums present when
// MinorVersion == 1. Both are always computed with big-endian word order,
// independent of the archive's own endianness.
type rawACrc32 struct {
	Header  uint32
	Entries uint32
}

// rawAEntryKind tags whether a rawAEntry is a directory or a file.
type rawAEntryKind byte

const (
	rawAKindDir  rawAEntryKind = 0
	rawAKindFile rawAEntryKind = 1
)

type rawAFileEntry struct {
	IsCompressed     bool
	CompressedSize   uint32
	UncompressedSize uint32
	Checksum         int32
	Offset           uint32
	Name             string
}

type rawADirEntry struct {
	Name    string
	Entries []*rawAEntry
}

// rawAEntry is a single node of Variant A's nested entry tree. EntrySize is
// the on-disk byte count preceding the entry's tag byte; it is preserved
// verbatim from the parsed archive rather than recomputed on write, since
// nothing guarantees it equals len(tag)+len(fields)+len(children).
type rawAEntry struct {
	Kind      rawAEntryKind
	EntrySize uint32
	File      *rawAFileEntry
	Dir       *rawADirEntry
}

// rawAArchive is the fully parsed Variant A table of contents.
type rawAArchive struct {
	Header   rawAHeader
	Checksum *rawACrc32 // nil when MinorVersion != 1
	Entries  []*rawAEntry
	Endian   binary.ByteOrder
}

func parseVariantA(r io.Reader, endian binary.ByteOrder) (*rawAArchive, error) {
	var magic [12]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrLoadFailed, err)
	}
	if !bytes.Equal(magic[:], magicAFull) {
		return nil, fmt.Errorf("%w: bad variant A magic", ErrLoadFailed)
	}

	var hdr rawAHeader
	var err error
	if hdr.MajorVersion, err = codec.ReadU16(r, endian); err != nil {
		return nil, fmt.Errorf("%w: major_version: %v", ErrLoadFailed, err)
	}
	if hdr.MinorVersion, err = codec.ReadU16(r, endian); err != nil {
		return nil, fmt.Errorf("%w: minor_version: %v", ErrLoadFailed, err)
	}
	if hdr.RootCount, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: root_count: %v", ErrLoadFailed, err)
	}
	if hdr.RootCount == 0 {
		return nil, fmt.Errorf("%w: invalid archive, not a hvp file (root_count == 0)", ErrLoadFailed)
	}
	if hdr.AllCount, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: all_count: %v", ErrLoadFailed, err)
	}
	if hdr.AllCount == 0 {
		return nil, fmt.Errorf("%w: invalid archive, not a hvp file (all_count == 0)", ErrLoadFailed)
	}
	if hdr.FileCount, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: file_count: %v", ErrLoadFailed, err)
	}
	if hdr.FileCount == 0 {
		return nil, fmt.Errorf("%w: invalid archive, not a hvp file (file_count == 0)", ErrLoadFailed)
	}
	if hdr.DataOffset, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: data_offset: %v", ErrLoadFailed, err)
	}
	if hdr.DataOffset == 0 {
		return nil, fmt.Errorf("%w: invalid archive, not a hvp file (data_offset == 0)", ErrLoadFailed)
	}

	var chk *rawACrc32
	if hdr.MinorVersion == 1 {
		chk = &rawACrc32{}
		if chk.Header, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: header_crc: %v", ErrLoadFailed, err)
		}
		if chk.Entries, err = codec.ReadU32(r, endian); err != nil {
			return nil, fmt.Errorf("%w: entries_crc: %v", ErrLoadFailed, err)
		}
	}

	entries := make([]*rawAEntry, 0, hdr.RootCount)
	for i := uint32(0); i < hdr.RootCount; i++ {
		e, err := readRawAEntry(r, endian)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return &rawAArchive{Header: hdr, Checksum: chk, Entries: entries, Endian: endian}, nil
}

func readRawAEntry(r io.Reader, endian binary.ByteOrder) (*rawAEntry, error) {
	entrySize, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: entry_size: %v", ErrLoadFailed, err)
	}
	if entrySize == 0 {
		return nil, fmt.Errorf("%w: invalid entry in archive (entry_size == 0)", ErrLoadFailed)
	}
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, fmt.Errorf("%w: entry tag: %v", ErrLoadFailed, err)
	}

	switch rawAEntryKind(tag[0]) {
	case rawAKindFile:
		fe, err := readRawAFileEntry(r, endian)
		if err != nil {
			return nil, err
		}
		return &rawAEntry{Kind: rawAKindFile, EntrySize: entrySize, File: fe}, nil
	case rawAKindDir:
		de, err := readRawADirEntry(r, endian)
		if err != nil {
			return nil, err
		}
		return &rawAEntry{Kind: rawAKindDir, EntrySize: entrySize, Dir: de}, nil
	default:
		return nil, fmt.Errorf("%w: unknown entry tag %d", ErrLoadFailed, tag[0])
	}
}

func readRawAFileEntry(r io.Reader, endian binary.ByteOrder) (*rawAFileEntry, error) {
	fe := &rawAFileEntry{}
	isCompressed, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: is_compressed: %v", ErrLoadFailed, err)
	}
	fe.IsCompressed = isCompressed != 0
	if fe.CompressedSize, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: compressed_size: %v", ErrLoadFailed, err)
	}
	if fe.UncompressedSize, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: uncompressed_size: %v", ErrLoadFailed, err)
	}
	if fe.Checksum, err = codec.ReadI32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: checksum: %v", ErrLoadFailed, err)
	}
	if fe.Offset, err = codec.ReadU32(r, endian); err != nil {
		return nil, fmt.Errorf("%w: offset: %v", ErrLoadFailed, err)
	}
	if fe.Name, err = codec.ReadString(r, endian); err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrLoadFailed, err)
	}
	return fe, nil
}

func readRawADirEntry(r io.Reader, endian binary.ByteOrder) (*rawADirEntry, error) {
	zero, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: dir zero: %v", ErrLoadFailed, err)
	}
	if zero != 0 {
		return nil, fmt.Errorf("%w: dir entry zero field is non-zero", ErrLoadFailed)
	}
	count, err := codec.ReadU32(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: dir count: %v", ErrLoadFailed, err)
	}
	name, err := codec.ReadString(r, endian)
	if err != nil {
		return nil, fmt.Errorf("%w: dir name: %v", ErrLoadFailed, err)
	}
	de := &rawADirEntry{Name: name, Entries: make([]*rawAEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		child, err := readRawAEntry(r, endian)
		if err != nil {
			return nil, err
		}
		de.Entries = append(de.Entries, child)
	}
	return de, nil
}

// writeVariantA serializes a (possibly patched) archive back to w, always
// using a.Endian for multi-byte fields and always recomputing the
// checksums block (if present) with big-endian word order.
func writeVariantA(w io.Writer, a *rawAArchive) error {
	if _, err := w.Write(magicAFull); err != nil {
		return err
	}
	endian := a.Endian
	if err := codec.WriteU16(w, endian, a.Header.MajorVersion); err != nil {
		return err
	}
	if err := codec.WriteU16(w, endian, a.Header.MinorVersion); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, a.Header.RootCount); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, a.Header.AllCount); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, a.Header.FileCount); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, a.Header.DataOffset); err != nil {
		return err
	}

	if a.Header.MinorVersion == 1 {
		var hbuf bytes.Buffer
		hbuf.Write(magicAFull)
		if err := writeRawAHeaderFields(&hbuf, a.Header, binary.BigEndian); err != nil {
			return err
		}
		var ebuf bytes.Buffer
		for _, e := range a.Entries {
			if err := writeRawAEntry(&ebuf, e, binary.BigEndian); err != nil {
				return err
			}
		}
		chk := rawACrc32{
			Header:  checksum.CRC32(hbuf.Bytes()),
			Entries: checksum.CRC32(ebuf.Bytes()),
		}
		if err := codec.WriteU32(w, endian, chk.Header); err != nil {
			return err
		}
		if err := codec.WriteU32(w, endian, chk.Entries); err != nil {
			return err
		}
	}

	for _, e := range a.Entries {
		if err := writeRawAEntry(w, e, endian); err != nil {
			return err
		}
	}
	return nil
}

func writeRawAHeaderFields(w io.Writer, h rawAHeader, endian binary.ByteOrder) error {
	if err := codec.WriteU16(w, endian, h.MajorVersion); err != nil {
		return err
	}
	if err := codec.WriteU16(w, endian, h.MinorVersion); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, h.RootCount); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, h.AllCount); err != nil {
		return err
	}
	if err := codec.WriteU32(w, endian, h.FileCount); err != nil {
		return err
	}
	return codec.WriteU32(w, endian, h.DataOffset)
}

func writeRawAEntry(w io.Writer, e *rawAEntry, endian binary.ByteOrder) error {
	var body bytes.Buffer
	body.WriteByte(byte(e.Kind))
	switch e.Kind {
	case rawAKindFile:
		fe := e.File
		isCompressed := uint32(0)
		if fe.IsCompressed {
			isCompressed = 1
		}
		if err := codec.WriteU32(&body, endian, isCompressed); err != nil {
			return err
		}
		if err := codec.WriteU32(&body, endian, fe.CompressedSize); err != nil {
			return err
		}
		if err := codec.WriteU32(&body, endian, fe.UncompressedSize); err != nil {
			return err
		}
		if err := codec.WriteI32(&body, endian, fe.Checksum); err != nil {
			return err
		}
		if err := codec.WriteU32(&body, endian, fe.Offset); err != nil {
			return err
		}
		if err := codec.WriteString(&body, endian, fe.Name); err != nil {
			return err
		}
	case rawAKindDir:
		de := e.Dir
		if err := codec.WriteU32(&body, endian, 0); err != nil {
			return err
		}
		if err := codec.WriteU32(&body, endian, uint32(len(de.Entries))); err != nil {
			return err
		}
		if err := codec.WriteString(&body, endian, de.Name); err != nil {
			return err
		}
		for _, child := range de.Entries {
			if err := writeRawAEntry(&body, child, endian); err != nil {
				return err
			}
		}
	}
	if err := codec.WriteU32(w, endian, e.EntrySize); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

func (a *rawAArchive) clone() *rawAArchive {
	out := &rawAArchive{Header: a.Header, Endian: a.Endian}
	if a.Checksum != nil {
		c := *a.Checksum
		out.Checksum = &c
	}
	out.Entries = cloneRawAEntries(a.Entries)
	return out
}

func cloneRawAEntries(entries []*rawAEntry) []*rawAEntry {
	out := make([]*rawAEntry, len(entries))
	for i, e := range entries {
		ne := &rawAEntry{Kind: e.Kind, EntrySize: e.EntrySize}
		if e.File != nil {
			f := *e.File
			ne.File = &f
		}
		if e.Dir != nil {
			ne.Dir = &rawADirEntry{Name: e.Dir.Name, Entries: cloneRawAEntries(e.Dir.Entries)}
		}
		out[i] = ne
	}
	return out
}
