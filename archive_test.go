package hvp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/obscure-tools/hvparchive/internal/checksum"
)

// memSink is a minimal in-memory io.WriteSeeker, standing in for a real
// file in tests that exercise Rebuild.
type memSink struct {
	buf []byte
	pos int
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, errors.New("memSink: bad whence")
	}
	np := base + offset
	if np < 0 {
		return 0, errors.New("memSink: negative position")
	}
	m.pos = int(np)
	return np, nil
}

// buildVariantB assembles a minimal well-formed Variant B archive image:
// a synthetic root directory with a single uncompressed file child.
func buildVariantB(t *testing.T, payload []byte) []byte {
	t.Helper()
	endian := binary.LittleEndian
	root := &rawBEntry{NameCRC32: 0, Kind: rawBKindDir, Dir: &rawBDirEntry{Count: 1, Index: 1}}
	crc, err := NameCRC32("hello.dat")
	if err != nil {
		t.Fatal(err)
	}
	file := &rawBEntry{
		NameCRC32: crc,
		Kind:      rawBKindFile,
		File: &rawBFileEntry{
			Checksum:         checksum.WrappingSum(payload, endian),
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
		},
	}
	archive := &rawBArchive{
		Header:  rawBHeader{Magic: [4]byte{0, 0, 4, 0}},
		Entries: []*rawBEntry{root, file},
		Endian:  endian,
	}

	var toc bytes.Buffer
	if err := writeVariantB(&toc, archive); err != nil {
		t.Fatal(err)
	}
	file.File.Offset = uint32(toc.Len())

	var out bytes.Buffer
	if err := writeVariantB(&out, archive); err != nil {
		t.Fatal(err)
	}
	out.Write(payload)
	return out.Bytes()
}

func TestVariantBRoundTripNoUpdates(t *testing.T) {
	payload := []byte("hello, world! this is file content.")
	data := buildVariantB(t, payload)

	p, err := OpenBytes(data, VariantB)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	nameMap, err := NewNameMap([]string{"hello.dat"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewArchive(p, Options{NameMap: nameMap})
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	meta := a.Metadata()
	if meta.FileCount != 1 || meta.DirCount != 0 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	files := a.Files().All()
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].Path != "hello.dat" {
		t.Fatalf("got path %q", files[0].Path)
	}
	if !bytes.Equal(mustDecode(t, p, files[0].Entry), payload) {
		t.Fatal("decoded payload mismatch")
	}

	if !a.EntriesChecksumMatch() {
		t.Fatal("expected checksum match")
	}

	sink := &memSink{}
	if err := a.Rebuild(sink, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if diff := cmp.Diff(data, sink.buf); diff != "" {
		t.Fatalf("rebuild without updates should be byte-identical (-want +got):\n%s", diff)
	}
}

func TestVariantBRebuildWithUpdate(t *testing.T) {
	payload := []byte("original content")
	data := buildVariantB(t, payload)

	p, err := OpenBytes(data, VariantB)
	if err != nil {
		t.Fatal(err)
	}
	nameMap, _ := NewNameMap([]string{"hello.dat"})
	a, err := NewArchive(p, Options{NameMap: nameMap})
	if err != nil {
		t.Fatal(err)
	}

	files := a.FilesMut().All()
	newData := []byte("replaced content, a bit longer than the original")
	files[0].Entry.SetUpdate(newData)

	sink := &memSink{}
	if err := a.Rebuild(sink, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	p2, err := OpenBytes(sink.buf, VariantB)
	if err != nil {
		t.Fatalf("reopen rebuilt archive: %v", err)
	}
	a2, err := NewArchive(p2, Options{NameMap: nameMap})
	if err != nil {
		t.Fatal(err)
	}
	got := a2.Files().All()
	if len(got) != 1 {
		t.Fatalf("got %d files, want 1", len(got))
	}
	decoded := mustDecode(t, p2, got[0].Entry)
	if !bytes.Equal(decoded, newData) {
		t.Fatalf("got %q, want %q", decoded, newData)
	}
	if !a2.EntriesChecksumMatch() {
		t.Fatal("expected checksum match after rebuild with update")
	}
}

// assignEntrySizesA computes each Variant A entry's entry_size field
// bottom-up: a directory's size depends on its already-sized children, but
// the field itself is always 4 bytes wide so self-sizing before children
// are assigned would still measure correctly; this walks post-order anyway
// to keep every written entry_size meaningful.
func assignEntrySizesA(e *rawAEntry, endian binary.ByteOrder) {
	if e.Dir != nil {
		for _, c := range e.Dir.Entries {
			assignEntrySizesA(c, endian)
		}
	}
	var buf bytes.Buffer
	if err := writeRawAEntry(&buf, e, endian); err != nil {
		panic(err)
	}
	e.EntrySize = uint32(buf.Len() - 4)
}

// buildVariantA assembles a minimal well-formed Variant A archive image
// with MinorVersion 1, so the header/entries CRC pair (and its
// magic-inclusive checksum) is exercised.
func buildVariantA(t *testing.T, payload []byte) []byte {
	t.Helper()
	endian := binary.LittleEndian
	file := &rawAEntry{
		Kind: rawAKindFile,
		File: &rawAFileEntry{
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			Checksum:         checksum.WrappingSum(payload, endian),
			Name:             "hello.dat",
		},
	}
	assignEntrySizesA(file, endian)

	archive := &rawAArchive{
		Header: rawAHeader{
			MajorVersion: 1,
			MinorVersion: 1,
			RootCount:    1,
			AllCount:     1,
			FileCount:    1,
			DataOffset:   1,
		},
		Entries: []*rawAEntry{file},
		Endian:  endian,
	}

	var toc bytes.Buffer
	if err := writeVariantA(&toc, archive); err != nil {
		t.Fatal(err)
	}
	file.File.Offset = uint32(toc.Len())
	archive.Header.DataOffset = uint32(toc.Len())

	var out bytes.Buffer
	if err := writeVariantA(&out, archive); err != nil {
		t.Fatal(err)
	}
	out.Write(payload)
	return out.Bytes()
}

func TestVariantARoundTripNoUpdates(t *testing.T) {
	payload := []byte("variant A payload bytes for round trip testing.")
	data := buildVariantA(t, payload)

	p, err := OpenBytes(data, VariantA)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	a, err := NewArchive(p, Options{})
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	files := a.Files().All()
	if len(files) != 1 || files[0].Path != "hello.dat" {
		t.Fatalf("unexpected files: %+v", files)
	}
	if !bytes.Equal(mustDecode(t, p, files[0].Entry), payload) {
		t.Fatal("decoded payload mismatch")
	}
	if !a.EntriesChecksumMatch() {
		t.Fatal("expected checksum match")
	}

	sink := &memSink{}
	if err := a.Rebuild(sink, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if diff := cmp.Diff(data, sink.buf); diff != "" {
		t.Fatalf("rebuild without updates should be byte-identical (-want +got):\n%s", diff)
	}
}

func TestVariantAEmptyFileChecksum(t *testing.T) {
	data := buildVariantA(t, nil)
	p, err := OpenBytes(data, VariantA)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	a, err := NewArchive(p, Options{})
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	if !a.EntriesChecksumMatch() {
		t.Fatal("expected empty file to checksum as an empty byte slice")
	}
}

// buildVariantC assembles a minimal well-formed Variant C archive image: a
// synthetic root directory with a single uncompressed file child, plus the
// names blob Variant C stores inline between its header and entries. The
// payload starts and ends on a 4-byte boundary, as Variant C rebuilds lay
// it out.
func buildVariantC(t *testing.T, payload []byte) []byte {
	t.Helper()
	endian := binary.LittleEndian
	names := append([]byte("hello.dat"), 0)
	crc, err := NameCRC32("hello.dat")
	if err != nil {
		t.Fatal(err)
	}
	root := &rawCEntry{NameCRC32: 0, Kind: rawCKindDir, Dir: &rawCDirEntry{Count: 1, Index: 1}}
	file := &rawCEntry{
		NameCRC32: crc,
		Kind:      rawCKindFile,
		File: &rawCFileEntry{
			Checksum:         checksum.WrappingSum(payload, endian),
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			NameOffset:       0,
		},
	}
	archive := &rawCArchive{
		Header:  rawCHeader{Magic: [4]byte{0, 0, 5, 0}},
		Entries: []*rawCEntry{root, file},
		Names:   rawCNames{Bytes: names},
		Endian:  endian,
	}

	var toc bytes.Buffer
	if err := writeVariantC(&toc, archive); err != nil {
		t.Fatal(err)
	}
	aligned := (toc.Len() + 3) &^ 3
	file.File.Offset = uint32(aligned)

	var out bytes.Buffer
	if err := writeVariantC(&out, archive); err != nil {
		t.Fatal(err)
	}
	out.Write(make([]byte, aligned-out.Len()))
	out.Write(payload)
	for out.Len()%4 != 0 {
		out.WriteByte(0)
	}
	return out.Bytes()
}

func TestVariantCRoundTripNoUpdates(t *testing.T) {
	payload := []byte("variant C payload content for round trip testing.")
	data := buildVariantC(t, payload)

	p, err := OpenBytes(data, VariantC)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	a, err := NewArchive(p, Options{})
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	files := a.Files().All()
	if len(files) != 1 || files[0].Path != "hello.dat" {
		t.Fatalf("unexpected files: %+v", files)
	}
	if !bytes.Equal(mustDecode(t, p, files[0].Entry), payload) {
		t.Fatal("decoded payload mismatch")
	}
	if !a.EntriesChecksumMatch() {
		t.Fatal("expected checksum match")
	}

	sink := &memSink{}
	if err := a.Rebuild(sink, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if diff := cmp.Diff(data, sink.buf); diff != "" {
		t.Fatalf("rebuild without updates should be byte-identical (-want +got):\n%s", diff)
	}
}

func TestParseVariantBRejectsCorruptEntriesCRC(t *testing.T) {
	data := buildVariantB(t, []byte("payload"))
	// entries_crc32 sits right after the 12-byte header (magic + zero +
	// entries_count), flip a byte to desync it from the entry table.
	data[13] ^= 0xFF

	if _, err := OpenBytes(data, VariantB); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("got %v, want ErrLoadFailed", err)
	}
}

func TestParseVariantCRejectsCorruptEntriesCRC(t *testing.T) {
	data := buildVariantC(t, []byte("payload"))
	data[13] ^= 0xFF

	if _, err := OpenBytes(data, VariantC); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("got %v, want ErrLoadFailed", err)
	}
}

func mustDecode(t *testing.T, p *Provider, fe *FileEntry) []byte {
	t.Helper()
	out, err := DecodePayload(p, fe)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	return out
}
